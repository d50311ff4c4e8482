package solution

import (
	"context"
	"encoding/json"

	"github.com/medrex/dlt-consent/internal/identity"
	"github.com/medrex/dlt-consent/internal/ledger"
	"github.com/medrex/dlt-consent/internal/tokenizer"
	"github.com/medrex/dlt-consent/pkg/types"
)

// checkUpdate applies the ownership and immutability rules of an update
func checkUpdate(storedSecret, secret string, storedRole, role types.Role) error {
	if storedSecret == "" {
		return types.NewUnauthorizedError(types.ErrCodeUnauthorized, "record has no secret")
	}
	if secret != storedSecret {
		return types.NewImmutableFieldError("secret")
	}
	if role != "" && role != storedRole {
		return types.NewImmutableFieldError("role")
	}
	return nil
}

// Organizations

func (s *Service) registerOrg(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var org types.Organization
	if err := decode(payload, &org); err != nil {
		return nil, err
	}
	if err := requireFields("id", org.ID, "secret", org.Secret); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	orgToken, err := s.token(ctx, org.ID, "org")
	if err != nil {
		return nil, err
	}

	existing, err := ledger.Fetch[types.Organization](ctx, s.ledger, lc, ledger.GetOrgRequest{OrgID: orgToken})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	if existing != nil {
		return nil, types.NewConflictError(types.ErrCodeAlreadyRegistered, "org already registered")
	}

	return s.writeOrg(ctx, lc, &org, orgToken, false)
}

func (s *Service) updateOrg(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var org types.Organization
	if err := decode(payload, &org); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	orgToken, err := s.token(ctx, org.ID, "org")
	if err != nil {
		return nil, err
	}

	existing, err := ledger.Fetch[types.Organization](ctx, s.ledger, lc, ledger.GetOrgRequest{OrgID: orgToken})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	if existing == nil {
		return nil, notFound("org")
	}
	if err := checkUpdate(existing.Secret, org.Secret, existing.Role, org.Role); err != nil {
		return nil, err
	}
	org.Secret = existing.Secret

	return s.writeOrg(ctx, lc, &org, orgToken, true)
}

func (s *Service) writeOrg(ctx context.Context, lc types.Caller, org *types.Organization, orgToken string, update bool) (*types.Response, error) {
	org.Role = types.RoleOrg
	org.Status = types.StatusActive

	_, err := s.identity.RegisterIdentity(ctx, &types.IdentityRequest{
		ID:           orgToken,
		Secret:       org.Secret,
		Role:         types.RoleOrg,
		Org:          orgToken,
		FailIfExists: !update,
	})
	if err != nil {
		return nil, types.NewCollaboratorError(types.ErrCodeIdentityError, msgCAFailed, err)
	}

	record := *org
	if err := s.deidentify(ctx, &record); err != nil {
		return nil, partialFailure(err)
	}

	tx, err := s.ledger.Invoke(ctx, lc, ledger.RegisterOrgRequest{Org: &record, AllowUpdate: update})
	if err != nil {
		return nil, partialFailure(err)
	}
	if _, err := s.ledger.Invoke(ctx, lc, ledger.PutUserInOrgRequest{UserID: record.ID, OrgID: record.ID, IsAdmin: true}); err != nil {
		return nil, partialFailure(err)
	}

	if update {
		return respond("org updated", tx, nil), nil
	}
	return respond("org registered", tx, nil), nil
}

func (s *Service) getOrg(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p orgParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	orgToken, err := s.token(ctx, p.OrgID, "org")
	if err != nil {
		return nil, err
	}

	org, err := ledger.Fetch[types.Organization](ctx, s.ledger, lc, ledger.GetOrgRequest{OrgID: orgToken})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	if org == nil {
		return nil, notFound("org")
	}
	if err := s.reidentify(ctx, org); err != nil {
		return nil, err
	}
	org.Secret = ""

	return respond("org found", nil, org), nil
}

func (s *Service) getOrgs(ctx context.Context, caller types.Caller, _ json.RawMessage) (*types.Response, error) {
	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}

	orgs, err := ledger.FetchList[types.Organization](ctx, s.ledger, lc, ledger.GetOrgsRequest{})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	orgs = tokenizer.DetokenizeEach(ctx, s.tokens, orgs)
	for i := range orgs {
		orgs[i].Secret = ""
	}

	return respond("orgs found", nil, orgs), nil
}

// Users

func (s *Service) registerUser(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var user types.User
	if err := decode(payload, &user); err != nil {
		return nil, err
	}
	return s.registerUserRecord(ctx, caller, &user)
}

func (s *Service) registerUserRecord(ctx context.Context, caller types.Caller, user *types.User) (*types.Response, error) {
	if err := requireFields("id", user.ID, "secret", user.Secret, "role", string(user.Role)); err != nil {
		return nil, err
	}
	if !user.Role.Valid() {
		return nil, types.NewValidationError(types.ErrCodeInvalidInput, "invalid role", map[string]interface{}{"field": "role"})
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	userToken, err := s.token(ctx, user.ID, "user")
	if err != nil {
		return nil, err
	}

	existing, err := ledger.Fetch[types.User](ctx, s.ledger, lc, ledger.GetUserRequest{UserID: userToken})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	if existing != nil {
		return respond("user already registered", nil, nil), nil
	}

	return s.writeUser(ctx, lc, user, userToken, false)
}

func (s *Service) updateUser(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var user types.User
	if err := decode(payload, &user); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	userToken, err := s.token(ctx, user.ID, "user")
	if err != nil {
		return nil, err
	}

	existing, err := ledger.Fetch[types.User](ctx, s.ledger, lc, ledger.GetUserRequest{UserID: userToken})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	if existing == nil {
		return nil, notFound("user")
	}
	if err := checkUpdate(existing.Secret, user.Secret, existing.Role, user.Role); err != nil {
		return nil, err
	}
	user.Secret = existing.Secret
	user.Role = existing.Role

	return s.writeUser(ctx, lc, &user, userToken, true)
}

func (s *Service) writeUser(ctx context.Context, lc types.Caller, user *types.User, userToken string, update bool) (*types.Response, error) {
	orgToken, err := s.tokens.Tokenize(ctx, user.Org)
	if err != nil {
		return nil, tokenizerFailure(err)
	}

	attrs, err := s.identity.RegisterIdentity(ctx, &types.IdentityRequest{
		ID:           userToken,
		Secret:       user.Secret,
		Role:         user.Role,
		Org:          orgToken,
		PrivateKey:   user.PrivateKey,
		PublicKey:    user.PublicKey,
		SymKey:       user.SymKey,
		FailIfExists: !update,
	})
	if err != nil {
		return nil, types.NewCollaboratorError(types.ErrCodeIdentityError, msgCAFailed, err)
	}

	record := *user
	prv, pub, sym := identity.Partition(attrs)
	if prv != "" {
		record.PrivateKey = prv
	}
	if pub != "" {
		record.PublicKey = pub
	}
	if sym != "" {
		record.SymKey = sym
	}
	record.Status = types.StatusActive

	if err := s.deidentify(ctx, &record); err != nil {
		return nil, partialFailure(err)
	}

	tx, err := s.ledger.Invoke(ctx, lc, ledger.RegisterUserRequest{User: &record, AllowUpdate: update})
	if err != nil {
		return nil, partialFailure(err)
	}
	if record.Role == types.RoleOrg {
		if _, err := s.ledger.Invoke(ctx, lc, ledger.PutUserInOrgRequest{UserID: record.ID, OrgID: record.Org, IsAdmin: true}); err != nil {
			return nil, partialFailure(err)
		}
	}

	if update {
		return respond("user updated", tx, nil), nil
	}
	return respond("user registered", tx, nil), nil
}

func (s *Service) getUser(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p userParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	userToken, err := s.token(ctx, p.UserID, "user")
	if err != nil {
		return nil, err
	}

	user, err := ledger.Fetch[types.User](ctx, s.ledger, lc, ledger.GetUserRequest{UserID: userToken})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	if user == nil {
		return nil, notFound("user")
	}
	if err := s.reidentify(ctx, user); err != nil {
		return nil, err
	}
	stripUser(user)

	return respond("user found", nil, user), nil
}

func (s *Service) getUsers(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p usersParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	orgToken, err := s.token(ctx, p.OrgID, "org")
	if err != nil {
		return nil, err
	}

	users, err := ledger.FetchList[types.User](ctx, s.ledger, lc, ledger.GetUsersRequest{OrgID: orgToken, Role: p.Role})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	users = tokenizer.DetokenizeEach(ctx, s.tokens, users)
	for i := range users {
		stripUser(&users[i])
	}

	return respond("users found", nil, users), nil
}

func stripUser(u *types.User) {
	u.Secret = ""
	u.PrivateKey = ""
	u.SymKey = ""
}

func (s *Service) putUserInOrg(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p membershipParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields("user_id", p.UserID, "org_id", p.OrgID); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.TokenizeFields(ctx, &p.UserID, &p.OrgID); err != nil {
		return nil, tokenizerFailure(err)
	}

	tx, err := s.ledger.Invoke(ctx, lc, ledger.PutUserInOrgRequest{UserID: p.UserID, OrgID: p.OrgID, IsAdmin: p.IsAdmin})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond("user added to org", tx, nil), nil
}

func (s *Service) removeUserFromOrg(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p membershipParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields("user_id", p.UserID, "org_id", p.OrgID); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.TokenizeFields(ctx, &p.UserID, &p.OrgID); err != nil {
		return nil, tokenizerFailure(err)
	}

	tx, err := s.ledger.Invoke(ctx, lc, ledger.RemoveUserFromOrgRequest{UserID: p.UserID, OrgID: p.OrgID})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond("user removed from org", tx, nil), nil
}

// Services

func (s *Service) registerService(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var svc types.Service
	if err := decode(payload, &svc); err != nil {
		return nil, err
	}
	if err := requireFields("service_id", svc.ServiceID, "org_id", svc.OrgID, "secret", svc.Secret); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	svcToken, err := s.token(ctx, svc.ServiceID, "service")
	if err != nil {
		return nil, err
	}

	existing, err := ledger.Fetch[types.Service](ctx, s.ledger, lc, ledger.GetServiceRequest{ServiceID: svcToken})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	if existing != nil {
		return nil, types.NewConflictError(types.ErrCodeAlreadyRegistered, "service already registered")
	}

	now := s.timestamp()
	svc.CreateDate = now
	svc.UpdateDate = now
	return s.writeService(ctx, lc, &svc, svcToken, false)
}

func (s *Service) updateService(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var svc types.Service
	if err := decode(payload, &svc); err != nil {
		return nil, err
	}
	if err := requireFields("org_id", svc.OrgID); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	svcToken, err := s.token(ctx, svc.ServiceID, "service")
	if err != nil {
		return nil, err
	}

	existing, err := ledger.Fetch[types.Service](ctx, s.ledger, lc, ledger.GetServiceRequest{ServiceID: svcToken})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	if existing == nil {
		return nil, notFound("service")
	}
	if err := checkUpdate(existing.Secret, svc.Secret, existing.Role, svc.Role); err != nil {
		return nil, err
	}
	svc.Secret = existing.Secret
	svc.CreateDate = existing.CreateDate
	svc.UpdateDate = s.timestamp()

	return s.writeService(ctx, lc, &svc, svcToken, true)
}

func (s *Service) writeService(ctx context.Context, lc types.Caller, svc *types.Service, svcToken string, update bool) (*types.Response, error) {
	svc.Role = types.RoleService
	svc.Status = types.StatusActive
	if svc.Datatypes == nil {
		svc.Datatypes = []types.ServiceDatatype{}
	}

	orgToken, err := s.tokens.Tokenize(ctx, svc.OrgID)
	if err != nil {
		return nil, tokenizerFailure(err)
	}

	_, err = s.identity.RegisterIdentity(ctx, &types.IdentityRequest{
		ID:           svcToken,
		Secret:       svc.Secret,
		Role:         types.RoleService,
		Org:          orgToken,
		FailIfExists: !update,
	})
	if err != nil {
		return nil, types.NewCollaboratorError(types.ErrCodeIdentityError, msgCAFailed, err)
	}

	record := *svc
	if err := s.deidentify(ctx, &record); err != nil {
		return nil, partialFailure(err)
	}

	if update {
		tx, err := s.ledger.Invoke(ctx, lc, ledger.UpdateServiceRequest{Service: &record})
		if err != nil {
			return nil, partialFailure(err)
		}
		return respond("service updated", tx, nil), nil
	}

	tx, err := s.ledger.Invoke(ctx, lc, ledger.RegisterServiceRequest{Service: &record})
	if err != nil {
		return nil, partialFailure(err)
	}
	if _, err := s.ledger.Invoke(ctx, lc, ledger.PutUserInOrgRequest{UserID: record.ServiceID, OrgID: record.OrgID}); err != nil {
		return nil, partialFailure(err)
	}
	return respond("service registered", tx, nil), nil
}

func (s *Service) getService(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p serviceParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	svcToken, err := s.token(ctx, p.ServiceID, "service")
	if err != nil {
		return nil, err
	}

	svc, err := ledger.Fetch[types.Service](ctx, s.ledger, lc, ledger.GetServiceRequest{ServiceID: svcToken})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	if svc == nil {
		return nil, notFound("service")
	}
	if err := s.reidentify(ctx, svc); err != nil {
		return nil, err
	}
	svc.Secret = ""

	return respond("service found", nil, svc), nil
}

func (s *Service) getServicesOfOrg(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p orgParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	orgToken, err := s.token(ctx, p.OrgID, "org")
	if err != nil {
		return nil, err
	}

	services, err := ledger.FetchList[types.Service](ctx, s.ledger, lc, ledger.GetServicesOfOrgRequest{OrgID: orgToken})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	services = tokenizer.DetokenizeEach(ctx, s.tokens, services)
	for i := range services {
		services[i].Secret = ""
	}

	return respond("services found", nil, services), nil
}

func (s *Service) addDatatypeToService(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p serviceDatatypeParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields("datatype_id", p.DatatypeID, "access", p.Access); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	svcToken, err := s.token(ctx, p.ServiceID, "service")
	if err != nil {
		return nil, err
	}

	tx, err := s.ledger.Invoke(ctx, lc, ledger.AddDatatypeToServiceRequest{
		ServiceID: svcToken,
		Binding:   types.ServiceDatatype{DatatypeID: p.DatatypeID, Access: p.Access},
	})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond("datatype added to service", tx, nil), nil
}

func (s *Service) removeDatatypeFromService(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p serviceDatatypeParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields("datatype_id", p.DatatypeID); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	svcToken, err := s.token(ctx, p.ServiceID, "service")
	if err != nil {
		return nil, err
	}

	tx, err := s.ledger.Invoke(ctx, lc, ledger.RemoveDatatypeFromServiceRequest{ServiceID: svcToken, DatatypeID: p.DatatypeID})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond("datatype removed from service", tx, nil), nil
}

// Datatypes

func (s *Service) registerDatatype(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p datatypeParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields("datatype_id", p.DatatypeID); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}

	existing, err := ledger.Fetch[types.Datatype](ctx, s.ledger, lc, ledger.GetDatatypeRequest{DatatypeID: p.DatatypeID})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	if existing != nil {
		return nil, types.NewConflictError(types.ErrCodeAlreadyRegistered, "datatype already registered")
	}

	tx, err := s.ledger.Invoke(ctx, lc, ledger.RegisterDatatypeRequest{
		Datatype: &types.Datatype{DatatypeID: p.DatatypeID, Description: p.Description},
	})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond("datatype registered", tx, nil), nil
}

func (s *Service) updateDatatype(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p datatypeParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields("datatype_id", p.DatatypeID); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}

	existing, err := ledger.Fetch[types.Datatype](ctx, s.ledger, lc, ledger.GetDatatypeRequest{DatatypeID: p.DatatypeID})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	if existing == nil {
		return nil, notFound("datatype")
	}
	existing.Description = p.Description

	tx, err := s.ledger.Invoke(ctx, lc, ledger.UpdateDatatypeRequest{Datatype: existing})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond("datatype updated", tx, nil), nil
}

func (s *Service) getDatatype(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p datatypeParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields("datatype_id", p.DatatypeID); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}

	dt, err := ledger.Fetch[types.Datatype](ctx, s.ledger, lc, ledger.GetDatatypeRequest{DatatypeID: p.DatatypeID})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	if dt == nil {
		return nil, notFound("datatype")
	}
	return respond("datatype found", nil, dt), nil
}

func (s *Service) getAllDatatypes(ctx context.Context, caller types.Caller, _ json.RawMessage) (*types.Response, error) {
	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}

	dts, err := ledger.FetchList[types.Datatype](ctx, s.ledger, lc, ledger.GetAllDatatypesRequest{})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond("datatypes found", nil, dts), nil
}
