package types

// CADF vocabulary used by PHI access events
const (
	CADFTypeURI           = "http://schemas.dmtf.org/cloud/audit/1.0/event"
	CADFEventTypeActivity = "activity"
	CADFOutcomeSuccess    = "success"
	CADFOutcomeFailure    = "failure"
	CADFSeverityInfo      = "info"
	CADFSeverityWarning   = "warning"
	CADFActionRead        = "read"
)

// Credential identifies how the initiator authenticated
type Credential struct {
	Type string `json:"type"`
}

// Resource is a CADF resource reference
type Resource struct {
	ID         string      `json:"id"`
	TypeURI    string      `json:"typeURI"`
	Name       string      `json:"name,omitempty"`
	Credential *Credential `json:"credential,omitempty"`
}

// Reason carries the HTTP status the access attempt ended with
type Reason struct {
	ReasonType string `json:"reasonType"`
	ReasonCode string `json:"reasonCode"`
}

// PHIAccessEvent is the CADF-shaped record written for every protected data access attempt
type PHIAccessEvent struct {
	ID          string                 `json:"id"`
	TypeURI     string                 `json:"typeURI"`
	EventType   string                 `json:"eventType"`
	EventTime   string                 `json:"eventTime"`
	Action      string                 `json:"action"`
	Outcome     string                 `json:"outcome"`
	Severity    string                 `json:"severity"`
	Initiator   Resource               `json:"initiator"`
	Target      Resource               `json:"target"`
	Observer    Resource               `json:"observer"`
	Reason      Reason                 `json:"reason"`
	Message     string                 `json:"message"`
	RequestData map[string]interface{} `json:"requestData,omitempty"`
}
