package audit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/medrex/dlt-consent/pkg/types"
)

// targetNamespace seeds the name-based ids of audit targets
var targetNamespace = uuid.MustParse("6f1c2a4e-8d3b-5a7f-9e21-4b6c8d0e2f13")

// Resource type URIs
const (
	typeURIInitiator = "service/security/account/user"
	typeURITarget    = "data/security/phi"
	typeURIObserver  = "service/consent"
	credentialToken  = "token"
)

// Access describes one protected-data access attempt
type Access struct {
	InitiatorID string
	// Resource is the logical name of the data read, e.g. "consent" or "userData"
	Resource string
	// Key addresses the record read within Resource, e.g. "pat1/svc2/dt1"
	Key         string
	Action      string
	Message     string
	RequestData map[string]interface{}
}

// TargetID returns the stable id of the record key addresses within resource.
// An empty key names the resource as a whole.
func TargetID(resource, key string) string {
	name := resource
	if key != "" {
		name += "/" + key
	}
	return uuid.NewSHA1(targetNamespace, []byte(name)).String()
}

// Outcome returns the CADF outcome matching an HTTP status
func Outcome(status int) string {
	if status >= http.StatusOK && status < http.StatusMultipleChoices {
		return types.CADFOutcomeSuccess
	}
	return types.CADFOutcomeFailure
}

// BuildEvent assembles the CADF event for an access attempt
func BuildEvent(access Access, status int, outcome string, observer types.Resource, now time.Time) *types.PHIAccessEvent {
	action := access.Action
	if action == "" {
		action = types.CADFActionRead
	}

	severity := types.CADFSeverityInfo
	if outcome != types.CADFOutcomeSuccess {
		severity = types.CADFSeverityWarning
	}

	return &types.PHIAccessEvent{
		ID:        uuid.New().String(),
		TypeURI:   types.CADFTypeURI,
		EventType: types.CADFEventTypeActivity,
		EventTime: now.UTC().Format(time.RFC3339Nano),
		Action:    action,
		Outcome:   outcome,
		Severity:  severity,
		Initiator: types.Resource{
			ID:         access.InitiatorID,
			TypeURI:    typeURIInitiator,
			Credential: &types.Credential{Type: credentialToken},
		},
		Target: types.Resource{
			ID:      TargetID(access.Resource, access.Key),
			TypeURI: typeURITarget,
			Name:    access.Resource,
		},
		Observer: observer,
		Reason: types.Reason{
			ReasonType: "HTTP",
			ReasonCode: strconv.Itoa(status),
		},
		Message:     access.Message,
		RequestData: access.RequestData,
	}
}
