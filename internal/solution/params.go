package solution

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/medrex/dlt-consent/pkg/types"
)

// decode reads an operation payload into its parameter struct
func decode(payload json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = json.RawMessage("{}")
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return types.NewValidationError(types.ErrCodeInvalidInput, "invalid request payload", nil)
	}
	return nil
}

// requireFields fails with a validation error naming the first empty field
func requireFields(fields ...string) error {
	for i := 0; i+1 < len(fields); i += 2 {
		if strings.TrimSpace(fields[i+1]) == "" {
			return types.NewValidationError(types.ErrCodeInvalidInput,
				fmt.Sprintf("%s is missing", fields[i]), map[string]interface{}{"field": fields[i]})
		}
	}
	return nil
}

type orgParams struct {
	OrgID string `json:"org_id"`
}

type usersParams struct {
	OrgID string     `json:"org_id"`
	Role  types.Role `json:"role"`
}

type userParams struct {
	UserID string `json:"user_id"`
}

type membershipParams struct {
	UserID  string `json:"user_id"`
	OrgID   string `json:"org_id"`
	IsAdmin bool   `json:"is_admin"`
}

type serviceParams struct {
	ServiceID string `json:"service_id"`
}

type serviceDatatypeParams struct {
	ServiceID  string `json:"service_id"`
	DatatypeID string `json:"datatype_id"`
	Access     string `json:"access"`
}

type datatypeParams struct {
	DatatypeID  string `json:"datatype_id"`
	Description string `json:"description"`
}

type enrollmentParams struct {
	UserID    string `json:"user_id"`
	ServiceID string `json:"service_id"`
	Status    string `json:"status"`
}

type consentsParams struct {
	Consents []map[string]interface{} `json:"consents"`
}

type registerEnrollConsentParams struct {
	User      types.User               `json:"user"`
	ServiceID string                   `json:"service_id"`
	Consents  []map[string]interface{} `json:"consents"`
}

type consentLookupParams struct {
	OwnerID    string `json:"owner_id"`
	TargetID   string `json:"target_id"`
	DatatypeID string `json:"datatype_id"`
}

type validateConsentParams struct {
	OwnerID    string `json:"owner_id"`
	TargetID   string `json:"target_id"`
	DatatypeID string `json:"datatype_id"`
	Access     string `json:"access"`
	Timestamp  int64  `json:"timestamp"`
}

type uploadParams struct {
	OwnerID    string          `json:"owner_id"`
	ServiceID  string          `json:"service_id"`
	DatatypeID string          `json:"datatype_id"`
	Data       json.RawMessage `json:"data"`
	Timestamp  int64           `json:"timestamp"`
}

type downloadParams struct {
	ServiceID  string `json:"service_id"`
	UserID     string `json:"user_id"`
	ContractID string `json:"contract_id"`
	DatatypeID string `json:"datatype_id"`
	types.DownloadWindow
}

type createContractParams struct {
	OwnerOrgID         string          `json:"owner_org_id"`
	OwnerServiceID     string          `json:"owner_service_id"`
	RequesterOrgID     string          `json:"requester_org_id"`
	RequesterServiceID string          `json:"requester_service_id"`
	ContractTerms      json.RawMessage `json:"contract_terms"`
	PaymentRequired    bool            `json:"payment_required"`
}

type contractParams struct {
	ContractID string `json:"contract_id"`
}

type contractsParams struct {
	ServiceID string `json:"service_id"`
	Party     string `json:"party"`
}

type contractDetailParams struct {
	ContractID string          `json:"contract_id"`
	Detail     json.RawMessage `json:"detail"`
}

type permissionParams struct {
	ContractID     string `json:"contract_id"`
	MaxNumDownload int    `json:"max_num_download"`
	DatatypeID     string `json:"datatype_id"`
}

type logsParams struct {
	Field     string `json:"field"`
	Value     string `json:"value"`
	StartTime int64  `json:"start_time"`
	EndTime   int64  `json:"end_time"`
	MaxNum    int    `json:"max_num"`
}
