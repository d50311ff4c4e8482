package database

import (
	"context"
	"fmt"
)

// CreateSchema creates the append-only audit event table
func (db *DB) CreateSchema(ctx context.Context) error {
	db.logger.WithComponent("database").Info("Creating database schema...")

	for _, stmt := range []string{createPHIAccessEventsTable, createPHIAccessEventsIndexes, revokePHIAccessEventsMutation} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	db.logger.WithComponent("database").Info("Database schema created successfully")
	return nil
}

// SQL DDL statements for the audit sink
const (
	createPHIAccessEventsTable = `
		CREATE TABLE IF NOT EXISTS phi_access_events (
			id UUID PRIMARY KEY,
			event_time TIMESTAMP WITH TIME ZONE NOT NULL,
			action VARCHAR(50) NOT NULL,
			outcome VARCHAR(20) NOT NULL,
			severity VARCHAR(20) NOT NULL,
			initiator_id TEXT NOT NULL,
			target_id UUID NOT NULL,
			target_name TEXT NOT NULL,
			observer_id TEXT NOT NULL,
			reason_code VARCHAR(10) NOT NULL,
			message TEXT,
			request_data BYTEA,
			request_data_encrypted BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
		);`

	createPHIAccessEventsIndexes = `
		CREATE INDEX IF NOT EXISTS idx_phi_access_events_initiator ON phi_access_events(initiator_id);
		CREATE INDEX IF NOT EXISTS idx_phi_access_events_target ON phi_access_events(target_id);
		CREATE INDEX IF NOT EXISTS idx_phi_access_events_time ON phi_access_events(event_time);`

	revokePHIAccessEventsMutation = `REVOKE UPDATE, DELETE ON phi_access_events FROM PUBLIC;`
)
