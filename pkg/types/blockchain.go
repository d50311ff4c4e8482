package types

import "encoding/json"

// TxResult represents the outcome of an invoke transaction
type TxResult struct {
	TxID    string          `json:"tx_id"`
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Response is what every dispatched operation returns to the transport layer
type Response struct {
	Message string      `json:"message"`
	Status  int         `json:"status"`
	TxID    string      `json:"tx_id,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// BatchItem is one entry of a batch submission outcome
type BatchItem struct {
	Consent *Consent `json:"consent,omitempty"`
	TxID    string   `json:"tx_id,omitempty"`
	Message string   `json:"message,omitempty"`
}

// BatchResult splits a batch submission into successes and failures
type BatchResult struct {
	Success   bool        `json:"success"`
	Successes []BatchItem `json:"successes"`
	Failures  []BatchItem `json:"failures"`
}
