package types

import "encoding/json"

// Record status values
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// ServiceDatatype binds a datatype to a service with an access mode
type ServiceDatatype struct {
	DatatypeID string `json:"datatype_id"`
	Access     string `json:"access"`
}

// Service represents a data-sharing service owned by an organization
type Service struct {
	ServiceID           string            `json:"service_id"`
	ServiceName         string            `json:"service_name"`
	OrgID               string            `json:"org_id"`
	Email               string            `json:"email"`
	Secret              string            `json:"secret,omitempty"`
	Role                Role              `json:"role"`
	Status              string            `json:"status"`
	Datatypes           []ServiceDatatype `json:"datatypes"`
	PaymentRequired     bool              `json:"payment_required"`
	Summary             string            `json:"summary,omitempty"`
	Terms               json.RawMessage   `json:"terms,omitempty"`
	CreateDate          int64             `json:"create_date"`
	UpdateDate          int64             `json:"update_date"`
	SolutionPrivateData json.RawMessage   `json:"solution_private_data,omitempty"`
}

// Tokenizable returns the fields replaced by tokens before the record reaches the ledger
func (s *Service) Tokenizable() []*string {
	return []*string{&s.ServiceID, &s.ServiceName, &s.OrgID}
}

// Datatype describes a category of data that consents and uploads refer to
type Datatype struct {
	DatatypeID  string `json:"datatype_id"`
	Description string `json:"description"`
}

// Enrollment links a patient to a service
type Enrollment struct {
	UserID     string `json:"user_id"`
	ServiceID  string `json:"service_id"`
	Status     string `json:"status"`
	EnrollDate int64  `json:"enroll_date"`
}

// Tokenizable returns the fields replaced by tokens before the record reaches the ledger
func (e *Enrollment) Tokenizable() []*string {
	return []*string{&e.UserID, &e.ServiceID}
}

// Consent options
const (
	OptionRead  = "read"
	OptionWrite = "write"
	OptionDeny  = "deny"
)

// Consent grants or denies a target access to an owner's datatype.
// Expiration is unix seconds, 0 meaning no expiry.
type Consent struct {
	OwnerID    string   `json:"owner"`
	ServiceID  string   `json:"service"`
	TargetID   string   `json:"target"`
	DatatypeID string   `json:"datatype"`
	Option     []string `json:"option"`
	Expiration int64    `json:"expiration"`
	Timestamp  int64    `json:"timestamp"`
}

// Tokenizable returns the fields replaced by tokens before the record reaches the ledger
func (c *Consent) Tokenizable() []*string {
	return []*string{&c.OwnerID, &c.ServiceID, &c.TargetID}
}

// ConsentDecision is the ledger's answer to validateConsent
type ConsentDecision struct {
	OwnerID    string `json:"owner"`
	TargetID   string `json:"target"`
	DatatypeID string `json:"datatype"`
	Access     string `json:"requested_access"`
	Permission string `json:"permission"`
	Timestamp  int64  `json:"timestamp"`
}

// Tokenizable returns the fields replaced by tokens before the record reaches the ledger
func (d *ConsentDecision) Tokenizable() []*string {
	return []*string{&d.OwnerID, &d.TargetID}
}

// Permission values of a ConsentDecision
const (
	PermissionAllow = "allow"
	PermissionDeny  = "deny"
)

// DataRecord is a single uploaded data payload
type DataRecord struct {
	OwnerID    string          `json:"owner"`
	ServiceID  string          `json:"service"`
	DatatypeID string          `json:"datatype"`
	Data       json.RawMessage `json:"data"`
	Timestamp  int64           `json:"timestamp"`
}

// Tokenizable returns the fields replaced by tokens before the record reaches the ledger
func (r *DataRecord) Tokenizable() []*string {
	return []*string{&r.OwnerID, &r.ServiceID}
}

// DownloadWindow is the pagination window of a download query
type DownloadWindow struct {
	LatestOnly     bool  `json:"latest_only"`
	StartTimestamp int64 `json:"start_timestamp"`
	EndTimestamp   int64 `json:"end_timestamp"`
	MaxNum         int   `json:"maxNum"`
}

// DownloadResult is what a download query returns: the records plus the access trail to persist
type DownloadResult struct {
	Records           []DataRecord    `json:"records"`
	TransactionLog    json.RawMessage `json:"transaction_log,omitempty"`
	EncryptedContract string          `json:"encrypted_contract,omitempty"`
}

// TransactionLog is a ledger-side access trail entry returned by getLogs
type TransactionLog struct {
	TransactionID string          `json:"transaction_id"`
	Namespace     string          `json:"namespace"`
	FunctionName  string          `json:"function_name"`
	CallerID      string          `json:"caller_id"`
	Timestamp     int64           `json:"timestamp"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// Tokenizable returns the fields replaced by tokens before the record reaches the ledger
func (l *TransactionLog) Tokenizable() []*string {
	return []*string{&l.CallerID}
}
