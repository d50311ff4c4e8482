package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the consent service
type Config struct {
	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Admin listener for metrics and health
	Admin AdminConfig `mapstructure:"admin"`

	// Hyperledger Fabric gateway configuration
	Fabric FabricConfig `mapstructure:"fabric"`

	// Registration authority configuration
	Identity IdentityConfig `mapstructure:"identity"`

	// Redis configuration (token vault and audit stream)
	Redis RedisConfig `mapstructure:"redis"`

	// Database configuration (audit sink)
	Database DatabaseConfig `mapstructure:"database"`

	// Audit emitter configuration
	Audit AuditConfig `mapstructure:"audit"`

	// Solution feature toggles
	Solution SolutionConfig `mapstructure:"solution"`

	// JWT configuration for bearer-token callers
	JWT JWTConfig `mapstructure:"jwt"`

	// Encryption configuration
	Encryption EncryptionConfig `mapstructure:"encryption"`

	// Tracing configuration
	Tracing TracingConfig `mapstructure:"tracing"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// AdminConfig holds the metrics/health listener configuration
type AdminConfig struct {
	Port        int    `mapstructure:"port"`
	MetricsPath string `mapstructure:"metrics_path"`
	HealthPath  string `mapstructure:"health_path"`
	// HealthTimeout bounds each dependency check, in seconds
	HealthTimeout int `mapstructure:"health_timeout"`
}

// FabricConfig holds Hyperledger Fabric gateway configuration
type FabricConfig struct {
	GatewayEndpoint     string `mapstructure:"gateway_endpoint"`
	GatewayHostOverride string `mapstructure:"gateway_host_override"`
	MSPID               string `mapstructure:"msp_id"`
	CertPath            string `mapstructure:"cert_path"`
	KeyPath             string `mapstructure:"key_path"`
	TLSCertPath         string `mapstructure:"tls_cert_path"`
	TLSEnabled          bool   `mapstructure:"tls_enabled"`
	ChannelName         string `mapstructure:"channel_name"`
	ChaincodeID         string `mapstructure:"chaincode_id"`
	EvaluateTimeout     int    `mapstructure:"evaluate_timeout"`
	SubmitTimeout       int    `mapstructure:"submit_timeout"`
}

// IdentityConfig holds registration authority configuration
type IdentityConfig struct {
	Endpoint     string `mapstructure:"endpoint"`
	TokenURL     string `mapstructure:"token_url"`
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	Timeout      int    `mapstructure:"timeout"`
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// Addr returns the host:port of the Redis server
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
}

// AuditConfig holds audit emitter configuration
type AuditConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	Sink         string `mapstructure:"sink"`
	StreamName   string `mapstructure:"stream_name"`
	ObserverID   string `mapstructure:"observer_id"`
	ObserverName string `mapstructure:"observer_name"`
}

// Audit sink kinds
const (
	AuditSinkPostgres = "postgres"
	AuditSinkRedis    = "redis"
	AuditSinkLog      = "log"
)

// SolutionConfig holds the solution-level feature toggles
type SolutionConfig struct {
	DeIdentify bool `mapstructure:"de_identify"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	SecretKey string `mapstructure:"secret_key"`
	Issuer    string `mapstructure:"issuer"`
}

// EncryptionConfig holds encryption configuration
type EncryptionConfig struct {
	AuditKey string `mapstructure:"audit_key"`
	VaultKey string `mapstructure:"vault_key"`
}

// TracingConfig holds tracing configuration
type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	Environment    string  `mapstructure:"environment"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// Load loads configuration from .env, environment variables and config files
func Load() (*Config, error) {
	// .env is optional; values already in the environment win
	_ = godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/medrex")

	// Set default values
	setDefaults()

	// Enable environment variable support
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Override with environment variables
	overrideWithEnv(&config)

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 60)
	viper.SetDefault("server.idle_timeout", 120)

	// Admin defaults
	viper.SetDefault("admin.port", 9090)
	viper.SetDefault("admin.metrics_path", "/metrics")
	viper.SetDefault("admin.health_path", "/health")
	viper.SetDefault("admin.health_timeout", 5)

	// Fabric defaults
	viper.SetDefault("fabric.gateway_endpoint", "localhost:7051")
	viper.SetDefault("fabric.channel_name", "healthcare")
	viper.SetDefault("fabric.chaincode_id", "solution")
	viper.SetDefault("fabric.tls_enabled", true)
	viper.SetDefault("fabric.evaluate_timeout", 5)
	viper.SetDefault("fabric.submit_timeout", 30)

	// Identity defaults
	viper.SetDefault("identity.timeout", 30)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "medrex_audit")
	viper.SetDefault("database.user", "medrex")
	viper.SetDefault("database.ssl_mode", "require")
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.max_idle_conns", 2)
	viper.SetDefault("database.conn_max_lifetime", 300)

	// Audit defaults
	viper.SetDefault("audit.enabled", true)
	viper.SetDefault("audit.sink", AuditSinkLog)
	viper.SetDefault("audit.stream_name", "phi-access-events")
	viper.SetDefault("audit.observer_id", "medrex-consent-service")
	viper.SetDefault("audit.observer_name", "consent-service")

	// Solution defaults
	viper.SetDefault("solution.de_identify", true)

	// JWT defaults
	viper.SetDefault("jwt.issuer", "medrex-dlt-consent")

	// Tracing defaults
	viper.SetDefault("tracing.enabled", false)
	viper.SetDefault("tracing.environment", "development")
	viper.SetDefault("tracing.sampling_rate", 1.0)

	// Logging defaults
	viper.SetDefault("log_level", "info")
}

// overrideWithEnv overrides configuration with environment variables
func overrideWithEnv(config *Config) {
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if jwtSecret := os.Getenv("JWT_SECRET_KEY"); jwtSecret != "" {
		config.JWT.SecretKey = jwtSecret
	}

	if auditKey := os.Getenv("AUDIT_ENCRYPTION_KEY"); auditKey != "" {
		config.Encryption.AuditKey = auditKey
	}

	if vaultKey := os.Getenv("PII_VAULT_KEY"); vaultKey != "" {
		config.Encryption.VaultKey = vaultKey
	}

	if enabled := os.Getenv("ENABLE_AUDIT"); enabled != "" {
		config.Audit.Enabled = parseBool(enabled, config.Audit.Enabled)
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		config.LogLevel = logLevel
	}
}

// validate validates the configuration
func validate(config *Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Admin.Port <= 0 || config.Admin.Port > 65535 {
		return fmt.Errorf("invalid admin port: %d", config.Admin.Port)
	}

	switch config.Audit.Sink {
	case AuditSinkPostgres, AuditSinkRedis, AuditSinkLog:
	default:
		return fmt.Errorf("unknown audit sink: %q", config.Audit.Sink)
	}

	if config.Audit.Sink == AuditSinkPostgres && config.Database.Password == "" {
		return fmt.Errorf("database password is required for the postgres audit sink")
	}

	if config.Fabric.MSPID == "" {
		return fmt.Errorf("fabric msp id is required")
	}

	if config.Identity.Endpoint == "" {
		return fmt.Errorf("identity endpoint is required")
	}

	return nil
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	}
	return fallback
}
