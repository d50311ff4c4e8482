package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/medrex/dlt-consent/pkg/encryption"
	"github.com/medrex/dlt-consent/pkg/types"
)

const insertEventQuery = `
	INSERT INTO phi_access_events (
		id, event_time, action, outcome, severity, initiator_id, target_id, target_name,
		observer_id, reason_code, message, request_data, request_data_encrypted
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

// PostgresSink appends events to the phi_access_events table.
// Rows are only ever inserted; the schema revokes UPDATE and DELETE.
type PostgresSink struct {
	db     *sql.DB
	cipher *encryption.AESEncryption
}

// NewPostgresSink creates a sink. When cipher is not nil, request data is encrypted at rest.
func NewPostgresSink(db *sql.DB, cipher *encryption.AESEncryption) *PostgresSink {
	return &PostgresSink{db: db, cipher: cipher}
}

// Append inserts one event
func (s *PostgresSink) Append(ctx context.Context, event *types.PHIAccessEvent) error {
	eventTime, err := time.Parse(time.RFC3339Nano, event.EventTime)
	if err != nil {
		return fmt.Errorf("invalid event time: %w", err)
	}

	var requestData []byte
	if len(event.RequestData) > 0 {
		requestData, err = json.Marshal(event.RequestData)
		if err != nil {
			return fmt.Errorf("failed to encode request data: %w", err)
		}
	}

	encrypted := false
	if s.cipher != nil && requestData != nil {
		requestData, err = s.cipher.Encrypt(requestData)
		if err != nil {
			return fmt.Errorf("failed to encrypt request data: %w", err)
		}
		encrypted = true
	}

	_, err = s.db.ExecContext(ctx, insertEventQuery,
		event.ID,
		eventTime,
		event.Action,
		event.Outcome,
		event.Severity,
		event.Initiator.ID,
		event.Target.ID,
		event.Target.Name,
		event.Observer.ID,
		event.Reason.ReasonCode,
		event.Message,
		requestData,
		encrypted,
	)
	if err != nil {
		return fmt.Errorf("failed to insert audit event: %w", err)
	}
	return nil
}
