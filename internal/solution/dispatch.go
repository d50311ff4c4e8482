package solution

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/medrex/dlt-consent/internal/audit"
	"github.com/medrex/dlt-consent/pkg/logger"
	"github.com/medrex/dlt-consent/pkg/types"
)

type handlerFunc func(s *Service, ctx context.Context, caller types.Caller, payload json.RawMessage) (*types.Response, error)

// entry binds an operation to its handler. Operations reading protected data name the
// resource their audit event targets and the payload keys addressing the record read.
type entry struct {
	handle   handlerFunc
	resource string
	keys     []string
}

// Audited resources
const (
	resourceEnrollment = "patientEnrollment"
	resourceConsent    = "consent"
	resourceDecision   = "consentDecision"
	resourceUserData   = "userData"
	resourceOwnerData  = "ownerData"
)

// Payload keys never copied into audit request detail
var redactedKeys = []string{"type", "secret", "password"}

var consentKeys = []string{"owner_id", "target_id", "datatype_id"}

var dispatchTable = [opCount]entry{
	OpRegisterOrg:               {handle: (*Service).registerOrg},
	OpUpdateOrg:                 {handle: (*Service).updateOrg},
	OpGetOrg:                    {handle: (*Service).getOrg},
	OpGetOrgs:                   {handle: (*Service).getOrgs},
	OpRegisterUser:              {handle: (*Service).registerUser},
	OpUpdateUser:                {handle: (*Service).updateUser},
	OpGetUser:                   {handle: (*Service).getUser},
	OpGetUsers:                  {handle: (*Service).getUsers},
	OpPutUserInOrg:              {handle: (*Service).putUserInOrg},
	OpRemoveUserFromOrg:         {handle: (*Service).removeUserFromOrg},
	OpRegisterService:           {handle: (*Service).registerService},
	OpUpdateService:             {handle: (*Service).updateService},
	OpGetService:                {handle: (*Service).getService},
	OpGetServicesOfOrg:          {handle: (*Service).getServicesOfOrg},
	OpAddDatatypeToService:      {handle: (*Service).addDatatypeToService},
	OpRemoveDatatypeFromService: {handle: (*Service).removeDatatypeFromService},
	OpRegisterDatatype:          {handle: (*Service).registerDatatype},
	OpUpdateDatatype:            {handle: (*Service).updateDatatype},
	OpGetDatatype:               {handle: (*Service).getDatatype},
	OpGetAllDatatypes:           {handle: (*Service).getAllDatatypes},

	OpEnrollPatient:            {handle: (*Service).enrollPatient},
	OpUnenrollPatient:          {handle: (*Service).unenrollPatient},
	OpGetPatientEnrollments:    {handle: (*Service).getPatientEnrollments, resource: resourceEnrollment, keys: []string{"user_id"}},
	OpGetServiceEnrollments:    {handle: (*Service).getServiceEnrollments},
	OpRegisterEnrollAndConsent: {handle: (*Service).registerEnrollAndConsent},

	OpPutConsentPatientData:      {handle: (*Service).putConsentPatientData},
	OpPutMultiConsentPatientData: {handle: (*Service).putMultiConsentPatientData},
	OpPutConsentOwnerData:        {handle: (*Service).putConsentOwnerData},
	OpPutMultiConsentOwnerData:   {handle: (*Service).putMultiConsentOwnerData},
	OpGetConsent:                 {handle: (*Service).getConsent, resource: resourceConsent, keys: consentKeys},
	OpGetConsentsWithOwnerID:     {handle: (*Service).getConsentsWithOwnerID, resource: resourceConsent, keys: []string{"owner_id"}},
	OpGetConsentsWithTargetID:    {handle: (*Service).getConsentsWithTargetID, resource: resourceConsent, keys: []string{"target_id"}},
	OpValidateConsent:            {handle: (*Service).validateConsent, resource: resourceDecision, keys: consentKeys},

	OpUploadUserData:               {handle: (*Service).uploadUserData},
	OpUploadOwnerData:              {handle: (*Service).uploadOwnerData},
	OpDownloadUserData:             {handle: (*Service).downloadUserData, resource: resourceUserData, keys: []string{"service_id", "user_id", "datatype_id"}},
	OpDownloadOwnerData:            {handle: (*Service).downloadOwnerData, resource: resourceOwnerData, keys: []string{"service_id", "datatype_id"}},
	OpDownloadOwnerDataAsRequester: {handle: (*Service).downloadOwnerDataAsRequester, resource: resourceOwnerData, keys: []string{"contract_id", "datatype_id"}},

	OpCreateContract:           {handle: (*Service).createContract},
	OpGetContract:              {handle: (*Service).getContract},
	OpGetContracts:             {handle: (*Service).getContracts},
	OpChangeContractTerms:      {handle: (*Service).changeContractTerms},
	OpSignContract:             {handle: (*Service).signContract},
	OpPayContract:              {handle: (*Service).payContract},
	OpVerifyContractPayment:    {handle: (*Service).verifyContractPayment},
	OpTerminateContract:        {handle: (*Service).terminateContract},
	OpGivePermissionByContract: {handle: (*Service).givePermissionByContract},
	OpGetTransactionLogs:       {handle: (*Service).getTransactionLogs},
}

// Audited reports whether calls to op emit a PHI access event
func Audited(op Operation) bool {
	return op >= 0 && op < opCount && dispatchTable[op].resource != ""
}

// ExecuteByName resolves a wire operation name and executes it
func (s *Service) ExecuteByName(ctx context.Context, caller types.Caller, name string, payload json.RawMessage) *types.Response {
	op, ok := ParseOperation(name)
	if !ok {
		resp := errorResponse(types.NewNotFoundError(types.ErrCodeUnknownOperation, "operation "+name+" not found"))
		s.metrics.RecordOperation("unknown", resp.Status)
		return resp
	}
	return s.Execute(ctx, caller, op, payload)
}

// Execute runs one operation for caller. Every failure is rendered into the response;
// collaborator causes are logged and never returned.
func (s *Service) Execute(ctx context.Context, caller types.Caller, op Operation, payload json.RawMessage) *types.Response {
	if op < 0 || op >= opCount {
		return errorResponse(types.NewNotFoundError(types.ErrCodeUnknownOperation, "operation not found"))
	}
	e := dispatchTable[op]

	ctx = context.WithValue(ctx, logger.CallerIDKey, caller.ID)
	ctx, span := s.tracing.StartOperationSpan(ctx, op.String())
	defer span.End()

	resp, err := e.handle(s, ctx, caller, payload)
	if err != nil {
		s.tracing.RecordError(span, err)
		resp = s.failure(ctx, op, err)
	}
	s.metrics.RecordOperation(op.String(), resp.Status)
	s.recordAccess(ctx, caller, op, payload, resp)
	return resp
}

// Reject renders a failure raised before op reached its handler, e.g. an unreadable
// body or an unresolved caller. Audited operations still emit their access event.
func (s *Service) Reject(ctx context.Context, caller types.Caller, op Operation, err error, payload json.RawMessage) *types.Response {
	if op < 0 || op >= opCount {
		return errorResponse(types.AsMedrexError(err))
	}
	ctx = context.WithValue(ctx, logger.CallerIDKey, caller.ID)
	resp := s.failure(ctx, op, err)
	s.metrics.RecordOperation(op.String(), resp.Status)
	s.recordAccess(ctx, caller, op, payload, resp)
	return resp
}

func (s *Service) recordAccess(ctx context.Context, caller types.Caller, op Operation, payload json.RawMessage, resp *types.Response) {
	e := dispatchTable[op]
	if e.resource == "" {
		return
	}
	detail := requestDetail(payload)
	s.audit.Record(ctx, audit.Access{
		InitiatorID: caller.ID,
		Resource:    e.resource,
		Key:         targetKey(e.keys, detail),
		Action:      types.CADFActionRead,
		Message:     op.String() + ": " + resp.Message,
		RequestData: detail,
	}, resp.Status, audit.Outcome(resp.Status))
}

func (s *Service) failure(ctx context.Context, op Operation, err error) *types.Response {
	merr := types.AsMedrexError(err)
	l := s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"component": "solution",
		"operation": op.String(),
		"code":      merr.Code,
	})
	switch merr.Type {
	case types.ErrorTypeCollaborator, types.ErrorTypePartialFailure:
		l.WithError(merr.Cause).Error("Operation failed")
	default:
		l.Info(merr.Message)
	}
	return errorResponse(merr)
}

func errorResponse(merr *types.MedrexError) *types.Response {
	return &types.Response{
		Message: merr.Message,
		Status:  merr.HTTPStatus(),
		Data:    merr,
	}
}

// targetKey joins the addressed payload values in keys order. Absent values stay empty
// so the position of each part is fixed; a payload addressing nothing yields "".
func targetKey(keys []string, detail map[string]interface{}) string {
	parts := make([]string, len(keys))
	found := false
	for i, k := range keys {
		if v, ok := detail[k]; ok && v != nil {
			parts[i] = fmt.Sprint(v)
			found = true
		}
	}
	if !found {
		return ""
	}
	return strings.Join(parts, "/")
}

// requestDetail copies the payload into the audit request detail, minus credentials
func requestDetail(payload json.RawMessage) map[string]interface{} {
	detail := map[string]interface{}{}
	if len(payload) == 0 {
		return detail
	}
	if err := json.Unmarshal(payload, &detail); err != nil {
		return map[string]interface{}{}
	}
	for _, k := range redactedKeys {
		delete(detail, k)
	}
	return detail
}
