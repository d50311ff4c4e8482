package database

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrex/dlt-consent/pkg/config"
	"github.com/medrex/dlt-consent/pkg/logger"
)

func TestCreateSchema(t *testing.T) {
	t.Run("applies table, indexes and grants", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS phi_access_events").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("CREATE INDEX IF NOT EXISTS idx_phi_access_events_initiator").WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectExec("REVOKE UPDATE, DELETE ON phi_access_events").WillReturnResult(sqlmock.NewResult(0, 0))

		db := Wrap(sqlDB, &config.DatabaseConfig{}, logger.NewDiscard())
		err = db.CreateSchema(context.Background())

		// Assertions
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stops at the first failing statement", func(t *testing.T) {
		sqlDB, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer sqlDB.Close()

		mock.ExpectExec("CREATE TABLE IF NOT EXISTS phi_access_events").WillReturnError(errors.New("permission denied"))

		db := Wrap(sqlDB, &config.DatabaseConfig{}, logger.NewDiscard())
		err = db.CreateSchema(context.Background())

		// Assertions
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "permission denied")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestBuildConnectionString(t *testing.T) {
	cfg := &config.DatabaseConfig{
		Host:     "db",
		Port:     5432,
		User:     "medrex",
		Password: "secret",
		Name:     "medrex_audit",
		SSLMode:  "disable",
	}

	assert.Equal(t,
		"host=db port=5432 user=medrex password=secret dbname=medrex_audit sslmode=disable",
		BuildConnectionString(cfg))
}
