package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/medrex/dlt-consent/pkg/config"
	"github.com/medrex/dlt-consent/pkg/logger"
)

// DB represents the database connection
type DB struct {
	*sql.DB
	config *config.DatabaseConfig
	logger *logger.Logger
}

// NewConnection opens and verifies a Postgres connection pool
func NewConnection(ctx context.Context, cfg *config.DatabaseConfig, log *logger.Logger) (*DB, error) {
	sqlDB, err := sql.Open("postgres", BuildConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.WithComponent("database").Info("Database connection established successfully")
	return Wrap(sqlDB, cfg, log), nil
}

// Wrap adopts an already opened pool
func Wrap(sqlDB *sql.DB, cfg *config.DatabaseConfig, log *logger.Logger) *DB {
	return &DB{
		DB:     sqlDB,
		config: cfg,
		logger: log,
	}
}

// BuildConnectionString constructs the lib/pq key/value connection string
func BuildConnectionString(cfg *config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.User,
		cfg.Password,
		cfg.Name,
		cfg.SSLMode,
	)
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.DB != nil {
		return db.DB.Close()
	}
	return nil
}
