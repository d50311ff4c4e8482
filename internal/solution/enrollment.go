package solution

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/medrex/dlt-consent/internal/ledger"
	"github.com/medrex/dlt-consent/internal/tokenizer"
	"github.com/medrex/dlt-consent/pkg/types"
)

func (s *Service) enrollPatient(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p enrollmentParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	return s.enroll(ctx, caller, p)
}

// enroll binds a patient to a service under a fresh enrollment key.
// The self-enrollment check runs before any collaborator is called.
func (s *Service) enroll(ctx context.Context, caller types.Caller, p enrollmentParams) (*types.Response, error) {
	if caller.ID == p.UserID {
		return nil, types.NewValidationError(types.ErrCodeSelfEnrollment, "a user can not enroll itself", map[string]interface{}{"field": "user_id"})
	}
	if err := requireFields("user_id", p.UserID, "service_id", p.ServiceID); err != nil {
		return nil, err
	}

	key, err := s.symmetricKey(ctx)
	if err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}

	status := p.Status
	if status == "" {
		status = types.StatusActive
	}
	enrollment := &types.Enrollment{
		UserID:     p.UserID,
		ServiceID:  p.ServiceID,
		Status:     status,
		EnrollDate: s.timestamp(),
	}
	if err := s.deidentify(ctx, enrollment); err != nil {
		return nil, err
	}

	tx, err := s.ledger.Invoke(ctx, lc, ledger.EnrollPatientRequest{Enrollment: enrollment, KeyBase64: key})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond("patient enrolled", tx, nil), nil
}

func (s *Service) unenrollPatient(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p enrollmentParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if err := requireFields("user_id", p.UserID, "service_id", p.ServiceID); err != nil {
		return nil, err
	}

	lc, err := s.ledgerCaller(ctx, caller)
	if err != nil {
		return nil, err
	}
	if err := s.tokens.TokenizeFields(ctx, &p.ServiceID, &p.UserID); err != nil {
		return nil, tokenizerFailure(err)
	}

	tx, err := s.ledger.Invoke(ctx, lc, ledger.UnenrollPatientRequest{ServiceID: p.ServiceID, UserID: p.UserID})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond("patient unenrolled", tx, nil), nil
}

func (s *Service) getPatientEnrollments(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p enrollmentParams
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

	enrollments, err := ledger.FetchList[types.Enrollment](ctx, s.ledger, lc, ledger.GetPatientEnrollmentsRequest{UserID: userToken, Status: p.Status})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond("enrollments found", nil, tokenizer.DetokenizeEach(ctx, s.tokens, enrollments)), nil
}

func (s *Service) getServiceEnrollments(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p enrollmentParams
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

	enrollments, err := ledger.FetchList[types.Enrollment](ctx, s.ledger, lc, ledger.GetServiceEnrollmentsRequest{ServiceID: svcToken, Status: p.Status})
	if err != nil {
		return nil, ledgerFailure(err)
	}
	return respond("enrollments found", nil, tokenizer.DetokenizeEach(ctx, s.tokens, enrollments)), nil
}

// registerEnrollAndConsent registers a patient, enrolls it in a service and stores its
// default consents. Each consent gets its own key.
func (s *Service) registerEnrollAndConsent(ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error) {
	var p registerEnrollConsentParams
	if err := decode(payload, &p); err != nil {
		return nil, err
	}
	if p.User.Role == "" {
		p.User.Role = types.RolePatient
	}
	if caller.ID == p.User.ID {
		return nil, types.NewValidationError(types.ErrCodeSelfEnrollment, "a user can not enroll itself", map[string]interface{}{"field": "user_id"})
	}
	if err := s.patientConsents.ValidateAll(p.Consents); err != nil {
		return nil, err
	}

	registered, err := s.registerUserRecord(ctx, caller, &p.User)
	if err != nil {
		return nil, err
	}

	enrolled, err := s.enroll(ctx, caller, enrollmentParams{UserID: p.User.ID, ServiceID: p.ServiceID})
	if err != nil {
		return nil, err
	}

	batch, err := s.putConsents(ctx, caller, s.patientConsents, false, p.Consents)
	if err != nil {
		return nil, err
	}

	resp := respond("patient registered, enrolled and consented", nil, map[string]interface{}{
		"registration": registered,
		"enrollment":   enrolled,
		"consents":     batch,
	})
	resp.TxID = enrolled.TxID
	if !batch.Success {
		resp.Message = "patient registered and enrolled, some consents failed"
		resp.Status = http.StatusInternalServerError
	}
	return resp, nil
}
