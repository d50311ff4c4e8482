package ledger

import (
	"encoding/json"
	"strconv"

	"github.com/medrex/dlt-consent/pkg/types"
)

// Chaincode function names
const (
	FnGetOrg                    = "getOrg"
	FnGetOrgs                   = "getOrgs"
	FnRegisterOrg               = "registerOrg"
	FnGetUser                   = "getUser"
	FnGetUsers                  = "getUsers"
	FnRegisterUser              = "registerUser"
	FnPutUserInOrg              = "putUserInOrg"
	FnRemoveUserFromOrg         = "removeUserFromOrg"
	FnGetService                = "getService"
	FnGetServicesOfOrg          = "getServicesOfOrg"
	FnRegisterService           = "registerService"
	FnUpdateService             = "updateService"
	FnAddDatatypeToService      = "addDatatypeToService"
	FnRemoveDatatypeFromService = "removeDatatypeFromService"
	FnGetDatatype               = "getDatatype"
	FnGetAllDatatypes           = "getAllDatatypes"
	FnRegisterDatatype          = "registerDatatype"
	FnUpdateDatatype            = "updateDatatype"
	FnEnrollPatient             = "enrollPatient"
	FnUnenrollPatient           = "unenrollPatient"
	FnGetPatientEnrollments     = "getPatientEnrollments"
	FnGetServiceEnrollments     = "getServiceEnrollments"
	FnPutConsentPatientData     = "putConsentPatientData"
	FnPutConsentOwnerData       = "putConsentOwnerData"
	FnGetConsent                = "getConsent"
	FnGetConsentsWithOwnerID    = "getConsentsWithOwnerID"
	FnGetConsentsWithTargetID   = "getConsentsWithTargetID"
	FnValidateConsent           = "validateConsent"
	FnUploadUserData            = "uploadUserData"
	FnUploadOwnerData           = "uploadOwnerData"
	FnGetUserData               = "getUserData"
	FnGetOwnerData              = "getOwnerData"
	FnGetOwnerDataWithContract  = "getOwnerDataWithContract"
	FnAddQueryTransactionLog    = "addQueryTransactionLog"
	FnCreateContract            = "createContract"
	FnGetContract               = "getContract"
	FnGetContracts              = "getContracts"
	FnAddContractDetail         = "addContractDetail"
	FnGivePermissionByContract  = "givePermissionByContract"
	FnGetLogs                   = "getLogs"
)

// Request is one ledger call: a fixed function name plus its positional arguments
type Request interface {
	Function() string
	Args() ([]string, error)
}

// QueryRequest is a read-only ledger call
type QueryRequest interface {
	Request
	query()
}

// InvokeRequest is a ledger call that appends a transaction
type InvokeRequest interface {
	Request
	invoke()
}

type queryCall struct{}

func (queryCall) query() {}

type invokeCall struct{}

func (invokeCall) invoke() {}

// Encode is the single boundary where typed requests become wire arguments
func Encode(req Request) (string, []string, error) {
	args, err := req.Args()
	if err != nil {
		return req.Function(), nil, err
	}
	if args == nil {
		args = []string{}
	}
	return req.Function(), args, nil
}

func jsonArg(v interface{}) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func boolArg(b bool) string {
	return strconv.FormatBool(b)
}

func intArg(n int64) string {
	return strconv.FormatInt(n, 10)
}

func windowArgs(w types.DownloadWindow) []string {
	return []string{
		boolArg(w.LatestOnly),
		intArg(w.StartTimestamp),
		intArg(w.EndTimestamp),
		strconv.Itoa(w.MaxNum),
	}
}

// Organizations

// GetOrgRequest reads one organization by id
type GetOrgRequest struct {
	queryCall
	OrgID string
}

func (GetOrgRequest) Function() string          { return FnGetOrg }
func (r GetOrgRequest) Args() ([]string, error) { return []string{r.OrgID}, nil }

// GetOrgsRequest lists every registered organization
type GetOrgsRequest struct {
	queryCall
}

func (GetOrgsRequest) Function() string        { return FnGetOrgs }
func (GetOrgsRequest) Args() ([]string, error) { return nil, nil }

// RegisterOrgRequest creates an organization or, with Update set, rewrites it
type RegisterOrgRequest struct {
	invokeCall
	Org         *types.Organization
	AllowUpdate bool
}

func (RegisterOrgRequest) Function() string { return FnRegisterOrg }
func (r RegisterOrgRequest) Args() ([]string, error) {
	org, err := jsonArg(r.Org)
	if err != nil {
		return nil, err
	}
	return []string{org, boolArg(r.AllowUpdate)}, nil
}

// Users and membership

// GetUserRequest reads one user by id
type GetUserRequest struct {
	queryCall
	UserID string
}

func (GetUserRequest) Function() string          { return FnGetUser }
func (r GetUserRequest) Args() ([]string, error) { return []string{r.UserID}, nil }

// GetUsersRequest lists the users of an organization holding a role
type GetUsersRequest struct {
	queryCall
	OrgID string
	Role  types.Role
}

func (GetUsersRequest) Function() string { return FnGetUsers }
func (r GetUsersRequest) Args() ([]string, error) {
	return []string{r.OrgID, string(r.Role)}, nil
}

// RegisterUserRequest creates a user or, with Update set, rewrites it
type RegisterUserRequest struct {
	invokeCall
	User        *types.User
	AllowUpdate bool
}

func (RegisterUserRequest) Function() string { return FnRegisterUser }
func (r RegisterUserRequest) Args() ([]string, error) {
	user, err := jsonArg(r.User)
	if err != nil {
		return nil, err
	}
	return []string{user, boolArg(r.AllowUpdate)}, nil
}

// PutUserInOrgRequest adds a user to an organization's member list
type PutUserInOrgRequest struct {
	invokeCall
	UserID  string
	OrgID   string
	IsAdmin bool
}

func (PutUserInOrgRequest) Function() string { return FnPutUserInOrg }
func (r PutUserInOrgRequest) Args() ([]string, error) {
	return []string{r.UserID, r.OrgID, boolArg(r.IsAdmin)}, nil
}

// RemoveUserFromOrgRequest drops a user from an organization's member list
type RemoveUserFromOrgRequest struct {
	invokeCall
	UserID string
	OrgID  string
}

func (RemoveUserFromOrgRequest) Function() string { return FnRemoveUserFromOrg }
func (r RemoveUserFromOrgRequest) Args() ([]string, error) {
	return []string{r.UserID, r.OrgID}, nil
}

// Services

// GetServiceRequest reads one service by id
type GetServiceRequest struct {
	queryCall
	ServiceID string
}

func (GetServiceRequest) Function() string          { return FnGetService }
func (r GetServiceRequest) Args() ([]string, error) { return []string{r.ServiceID}, nil }

// GetServicesOfOrgRequest lists the services an organization owns
type GetServicesOfOrgRequest struct {
	queryCall
	OrgID string
}

func (GetServicesOfOrgRequest) Function() string          { return FnGetServicesOfOrg }
func (r GetServicesOfOrgRequest) Args() ([]string, error) { return []string{r.OrgID}, nil }

// RegisterServiceRequest creates a service
type RegisterServiceRequest struct {
	invokeCall
	Service *types.Service
}

func (RegisterServiceRequest) Function() string { return FnRegisterService }
func (r RegisterServiceRequest) Args() ([]string, error) {
	svc, err := jsonArg(r.Service)
	if err != nil {
		return nil, err
	}
	return []string{svc}, nil
}

// UpdateServiceRequest rewrites a service record
type UpdateServiceRequest struct {
	invokeCall
	Service *types.Service
}

func (UpdateServiceRequest) Function() string { return FnUpdateService }
func (r UpdateServiceRequest) Args() ([]string, error) {
	svc, err := jsonArg(r.Service)
	if err != nil {
		return nil, err
	}
	return []string{svc}, nil
}

// AddDatatypeToServiceRequest binds a datatype to a service with an access mode
type AddDatatypeToServiceRequest struct {
	invokeCall
	ServiceID string
	Binding   types.ServiceDatatype
}

func (AddDatatypeToServiceRequest) Function() string { return FnAddDatatypeToService }
func (r AddDatatypeToServiceRequest) Args() ([]string, error) {
	binding, err := jsonArg(r.Binding)
	if err != nil {
		return nil, err
	}
	return []string{r.ServiceID, binding}, nil
}

// RemoveDatatypeFromServiceRequest unbinds a datatype from a service
type RemoveDatatypeFromServiceRequest struct {
	invokeCall
	ServiceID  string
	DatatypeID string
}

func (RemoveDatatypeFromServiceRequest) Function() string { return FnRemoveDatatypeFromService }
func (r RemoveDatatypeFromServiceRequest) Args() ([]string, error) {
	return []string{r.ServiceID, r.DatatypeID}, nil
}

// Datatypes

// GetDatatypeRequest reads one datatype by id
type GetDatatypeRequest struct {
	queryCall
	DatatypeID string
}

func (GetDatatypeRequest) Function() string          { return FnGetDatatype }
func (r GetDatatypeRequest) Args() ([]string, error) { return []string{r.DatatypeID}, nil }

// GetAllDatatypesRequest lists every datatype
type GetAllDatatypesRequest struct {
	queryCall
}

func (GetAllDatatypesRequest) Function() string        { return FnGetAllDatatypes }
func (GetAllDatatypesRequest) Args() ([]string, error) { return nil, nil }

// RegisterDatatypeRequest creates a datatype
type RegisterDatatypeRequest struct {
	invokeCall
	Datatype *types.Datatype
}

func (RegisterDatatypeRequest) Function() string { return FnRegisterDatatype }
func (r RegisterDatatypeRequest) Args() ([]string, error) {
	dt, err := jsonArg(r.Datatype)
	if err != nil {
		return nil, err
	}
	return []string{dt}, nil
}

// UpdateDatatypeRequest rewrites a datatype description
type UpdateDatatypeRequest struct {
	invokeCall
	Datatype *types.Datatype
}

func (UpdateDatatypeRequest) Function() string { return FnUpdateDatatype }
func (r UpdateDatatypeRequest) Args() ([]string, error) {
	dt, err := jsonArg(r.Datatype)
	if err != nil {
		return nil, err
	}
	return []string{dt}, nil
}

// Enrollment

// EnrollPatientRequest enrolls a patient in a service
type EnrollPatientRequest struct {
	invokeCall
	Enrollment *types.Enrollment
	KeyBase64  string
}

func (EnrollPatientRequest) Function() string { return FnEnrollPatient }
func (r EnrollPatientRequest) Args() ([]string, error) {
	enrollment, err := jsonArg(r.Enrollment)
	if err != nil {
		return nil, err
	}
	return []string{enrollment, r.KeyBase64}, nil
}

// UnenrollPatientRequest marks a patient enrollment inactive
type UnenrollPatientRequest struct {
	invokeCall
	ServiceID string
	UserID    string
}

func (UnenrollPatientRequest) Function() string { return FnUnenrollPatient }
func (r UnenrollPatientRequest) Args() ([]string, error) {
	return []string{r.ServiceID, r.UserID}, nil
}

// GetPatientEnrollmentsRequest lists a patient's enrollments, optionally by status
type GetPatientEnrollmentsRequest struct {
	queryCall
	UserID string
	Status string
}

func (GetPatientEnrollmentsRequest) Function() string { return FnGetPatientEnrollments }
func (r GetPatientEnrollmentsRequest) Args() ([]string, error) {
	return []string{r.UserID, r.Status}, nil
}

// GetServiceEnrollmentsRequest lists a service's enrollments, optionally by status
type GetServiceEnrollmentsRequest struct {
	queryCall
	ServiceID string
	Status    string
}

func (GetServiceEnrollmentsRequest) Function() string { return FnGetServiceEnrollments }
func (r GetServiceEnrollmentsRequest) Args() ([]string, error) {
	return []string{r.ServiceID, r.Status}, nil
}

// Consent

// PutConsentRequest stores a consent for patient data or owner data
type PutConsentRequest struct {
	invokeCall
	// OwnerData selects putConsentOwnerData over putConsentPatientData
	OwnerData bool
	Consent   *types.Consent
	KeyBase64 string
}

func (r PutConsentRequest) Function() string {
	if r.OwnerData {
		return FnPutConsentOwnerData
	}
	return FnPutConsentPatientData
}

func (r PutConsentRequest) Args() ([]string, error) {
	c, err := jsonArg(r.Consent)
	if err != nil {
		return nil, err
	}
	return []string{c, r.KeyBase64}, nil
}

// GetConsentRequest reads the consent between one owner, target and datatype
type GetConsentRequest struct {
	queryCall
	OwnerID    string
	TargetID   string
	DatatypeID string
}

func (GetConsentRequest) Function() string { return FnGetConsent }
func (r GetConsentRequest) Args() ([]string, error) {
	return []string{r.OwnerID, r.TargetID, r.DatatypeID}, nil
}

// GetConsentsWithOwnerIDRequest lists consents granted by an owner
type GetConsentsWithOwnerIDRequest struct {
	queryCall
	OwnerID string
}

func (GetConsentsWithOwnerIDRequest) Function() string          { return FnGetConsentsWithOwnerID }
func (r GetConsentsWithOwnerIDRequest) Args() ([]string, error) { return []string{r.OwnerID}, nil }

// GetConsentsWithTargetIDRequest lists consents granted to a target
type GetConsentsWithTargetIDRequest struct {
	queryCall
	TargetID string
}

func (GetConsentsWithTargetIDRequest) Function() string          { return FnGetConsentsWithTargetID }
func (r GetConsentsWithTargetIDRequest) Args() ([]string, error) { return []string{r.TargetID}, nil }

// ValidateConsentRequest asks the ledger for a consent decision
type ValidateConsentRequest struct {
	queryCall
	OwnerID    string
	TargetID   string
	DatatypeID string
	Access     string
	Timestamp  int64
}

func (ValidateConsentRequest) Function() string { return FnValidateConsent }
func (r ValidateConsentRequest) Args() ([]string, error) {
	return []string{r.OwnerID, r.TargetID, r.DatatypeID, r.Access, intArg(r.Timestamp)}, nil
}

// Data

// UploadDataRequest records an upload of user data or owner data
type UploadDataRequest struct {
	invokeCall
	// OwnerData selects uploadOwnerData over uploadUserData
	OwnerData bool
	Record    *types.DataRecord
}

func (r UploadDataRequest) Function() string {
	if r.OwnerData {
		return FnUploadOwnerData
	}
	return FnUploadUserData
}

func (r UploadDataRequest) Args() ([]string, error) {
	rec, err := jsonArg(r.Record)
	if err != nil {
		return nil, err
	}
	return []string{rec}, nil
}

// GetUserDataRequest reads user data under a download window
type GetUserDataRequest struct {
	queryCall
	ServiceID  string
	UserID     string
	DatatypeID string
	Window     types.DownloadWindow
}

func (GetUserDataRequest) Function() string { return FnGetUserData }
func (r GetUserDataRequest) Args() ([]string, error) {
	return append([]string{r.ServiceID, r.UserID, r.DatatypeID}, windowArgs(r.Window)...), nil
}

// GetOwnerDataRequest reads owner data under a download window
type GetOwnerDataRequest struct {
	queryCall
	ServiceID  string
	DatatypeID string
	Window     types.DownloadWindow
}

func (GetOwnerDataRequest) Function() string { return FnGetOwnerData }
func (r GetOwnerDataRequest) Args() ([]string, error) {
	return append([]string{r.ServiceID, r.DatatypeID}, windowArgs(r.Window)...), nil
}

// GetOwnerDataWithContractRequest reads owner data a contract grants access to
type GetOwnerDataWithContractRequest struct {
	queryCall
	ContractID string
	DatatypeID string
	Window     types.DownloadWindow
}

func (GetOwnerDataWithContractRequest) Function() string { return FnGetOwnerDataWithContract }
func (r GetOwnerDataWithContractRequest) Args() ([]string, error) {
	return append([]string{r.ContractID, r.DatatypeID}, windowArgs(r.Window)...), nil
}

// AddQueryTransactionLogRequest appends a download to the query transaction log
type AddQueryTransactionLogRequest struct {
	invokeCall
	TransactionLog json.RawMessage
}

func (AddQueryTransactionLogRequest) Function() string { return FnAddQueryTransactionLog }
func (r AddQueryTransactionLogRequest) Args() ([]string, error) {
	return []string{string(r.TransactionLog)}, nil
}

// Contracts

// CreateContractRequest opens a contract between two services
type CreateContractRequest struct {
	invokeCall
	Contract  *types.Contract
	KeyBase64 string
}

func (CreateContractRequest) Function() string { return FnCreateContract }
func (r CreateContractRequest) Args() ([]string, error) {
	c, err := jsonArg(r.Contract)
	if err != nil {
		return nil, err
	}
	return []string{c, r.KeyBase64}, nil
}

// GetContractRequest reads one contract by id
type GetContractRequest struct {
	queryCall
	ContractID string
}

func (GetContractRequest) Function() string          { return FnGetContract }
func (r GetContractRequest) Args() ([]string, error) { return []string{r.ContractID}, nil }

// GetContractsRequest lists the contracts a service is a party to
type GetContractsRequest struct {
	queryCall
	ServiceID string
	// Party is "owner" or "requester"
	Party string
}

func (GetContractsRequest) Function() string { return FnGetContracts }
func (r GetContractsRequest) Args() ([]string, error) {
	return []string{r.ServiceID, r.Party}, nil
}

// AddContractDetailRequest appends one typed detail entry to a contract
type AddContractDetailRequest struct {
	invokeCall
	ContractID string
	Type       types.ContractDetailType
	Detail     interface{}
	Timestamp  int64
}

func (AddContractDetailRequest) Function() string { return FnAddContractDetail }
func (r AddContractDetailRequest) Args() ([]string, error) {
	detail, err := jsonArg(r.Detail)
	if err != nil {
		return nil, err
	}
	return []string{r.ContractID, string(r.Type), detail, intArg(r.Timestamp)}, nil
}

// GivePermissionByContractRequest grants a contract's requester access to a datatype
type GivePermissionByContractRequest struct {
	invokeCall
	ContractID     string
	MaxNumDownload int
	DatatypeID     string
	Timestamp      int64
}

func (GivePermissionByContractRequest) Function() string { return FnGivePermissionByContract }
func (r GivePermissionByContractRequest) Args() ([]string, error) {
	return []string{r.ContractID, strconv.Itoa(r.MaxNumDownload), r.DatatypeID, intArg(r.Timestamp)}, nil
}

// Transaction logs

// GetLogsRequest reads the transaction logs whose field matches a value within a time range
type GetLogsRequest struct {
	queryCall
	Field     string
	Value     string
	StartTime int64
	EndTime   int64
	MaxNum    int
}

func (GetLogsRequest) Function() string { return FnGetLogs }
func (r GetLogsRequest) Args() ([]string, error) {
	return []string{r.Field, r.Value, intArg(r.StartTime), intArg(r.EndTime), strconv.Itoa(r.MaxNum)}, nil
}
