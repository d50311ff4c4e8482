package types

import "encoding/json"

// ContractState values
const (
	ContractStateNew = "new"
)

// ContractDetailType tags an entry appended to a contract's detail log
type ContractDetailType string

const (
	ContractDetailPayment   ContractDetailType = "payment"
	ContractDetailVerify    ContractDetailType = "verify"
	ContractDetailTerms     ContractDetailType = "terms"
	ContractDetailSign      ContractDetailType = "sign"
	ContractDetailTerminate ContractDetailType = "terminate"
	ContractDetailDownload  ContractDetailType = "download"
)

// ContractIDPrefix prefixes every generated contract id
const ContractIDPrefix = "contract-"

// Contract is a data-sharing agreement between an owner service and a requester service.
// The header is written once; state changes are appended to Details.
type Contract struct {
	ContractID         string           `json:"contract_id"`
	OwnerOrgID         string           `json:"owner_org_id"`
	OwnerServiceID     string           `json:"owner_service_id"`
	RequesterOrgID     string           `json:"requester_org_id"`
	RequesterServiceID string           `json:"requester_service_id"`
	ContractTerms      json.RawMessage  `json:"contract_terms,omitempty"`
	State              string           `json:"state"`
	CreateDate         int64            `json:"create_date"`
	UpdateDate         int64            `json:"update_date"`
	ContractDetails    []ContractDetail `json:"contract_details"`
	PaymentRequired    bool             `json:"payment_required"`
	PaymentVerified    bool             `json:"payment_verified"`
	MaxNumDownload     int              `json:"max_num_download"`
	NumDownload        int              `json:"num_download"`
}

// Tokenizable returns the fields replaced by tokens before the record reaches the ledger
func (c *Contract) Tokenizable() []*string {
	fields := []*string{&c.OwnerOrgID, &c.OwnerServiceID, &c.RequesterOrgID, &c.RequesterServiceID}
	for i := range c.ContractDetails {
		fields = append(fields, &c.ContractDetails[i].CreatedBy)
	}
	return fields
}

// ContractDetail is one append-only entry in a contract's history
type ContractDetail struct {
	ContractID string             `json:"contract_id"`
	Type       ContractDetailType `json:"contract_detail_type"`
	Terms      json.RawMessage    `json:"contract_detail_terms,omitempty"`
	CreateDate int64              `json:"create_date"`
	CreatedBy  string             `json:"created_by"`
}

// DownloadDetail is the payload of a download contract detail
type DownloadDetail struct {
	DatatypeID        string `json:"datatype_id"`
	EncryptedContract string `json:"encrypted_contract"`
	NumRecords        int    `json:"num_records"`
}
