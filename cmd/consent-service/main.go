package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/medrex/dlt-consent/internal/audit"
	"github.com/medrex/dlt-consent/internal/identity"
	"github.com/medrex/dlt-consent/internal/keys"
	"github.com/medrex/dlt-consent/internal/ledger"
	"github.com/medrex/dlt-consent/internal/solution"
	"github.com/medrex/dlt-consent/internal/tokenizer"
	"github.com/medrex/dlt-consent/pkg/config"
	"github.com/medrex/dlt-consent/pkg/database"
	"github.com/medrex/dlt-consent/pkg/encryption"
	"github.com/medrex/dlt-consent/pkg/interfaces"
	"github.com/medrex/dlt-consent/pkg/logger"
	"github.com/medrex/dlt-consent/pkg/monitoring"
)

const (
	serviceName    = "consent-service"
	serviceVersion = "1.0.0"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(cfg.LogLevel)
	log.WithField("version", serviceVersion).Info("Starting Consent Service")

	flags := config.NewFlags(cfg)
	config.WatchFlags(flags, func(deIdentify, auditLogging bool) {
		log.WithFields(logrus.Fields{
			"de_identify":   deIdentify,
			"audit_logging": auditLogging,
		}).Info("Feature flags reloaded")
	})

	metrics := monitoring.NewMetricsCollector(serviceName)
	tracing := setupTracing(cfg, log)
	health := monitoring.NewHealthManager(serviceName, serviceVersion)
	health.SetTimeout(time.Duration(cfg.Admin.HealthTimeout) * time.Second)
	if cfg.Identity.Endpoint != "" {
		health.RegisterChecker("identity", monitoring.NewHTTPHealthChecker(cfg.Identity.Endpoint, time.Duration(cfg.Admin.HealthTimeout)*time.Second))
	}

	ctx := context.Background()

	// Redis backs the token vault and optionally the audit stream
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
	})
	defer rdb.Close()
	health.RegisterChecker("redis", monitoring.NewRedisHealthChecker(rdb))

	var vaultOpts []tokenizer.VaultOption
	if cfg.Encryption.VaultKey != "" {
		cipher, err := encryption.NewAESEncryption(cfg.Encryption.VaultKey)
		if err != nil {
			log.WithError(err).Fatal("Failed to initialize vault encryption")
		}
		vaultOpts = append(vaultOpts, tokenizer.WithEncryption(cipher))
	}
	tokens := tokenizer.NewAdapter(tokenizer.NewRedisVault(rdb, vaultOpts...), flags, metrics, log)

	// Ledger
	gateway, err := ledger.NewGatewayClient(&cfg.Fabric, log)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect to Fabric gateway")
	}
	defer gateway.Close()
	facade := ledger.NewFacade(gateway, cfg.Fabric.ChaincodeID, metrics, tracing, log)

	// Audit
	sink, closeSink := setupAuditSink(ctx, cfg, rdb, health, log)
	defer closeSink()
	emitter := audit.NewEmitter(sink, flags, &cfg.Audit, metrics, log)

	service := solution.NewService(
		facade,
		identity.NewClient(&cfg.Identity, log),
		keys.NewLocalService(),
		tokens,
		emitter,
		metrics,
		tracing,
		log,
	)

	// Initialize HTTP handlers
	handlers := solution.NewHandlers(service, solution.NewCallerResolver(&cfg.JWT), log)

	// Setup Gin router
	if cfg.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.NewMonitoringMiddleware(metrics, tracing, log).Gin())
	handlers.RegisterRoutes(router)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	// Admin router for metrics and health
	admin := mux.NewRouter()
	admin.Use(metrics.HTTPMiddleware)
	admin.Handle(cfg.Admin.MetricsPath, metrics.Handler()).Methods(http.MethodGet)
	admin.HandleFunc(cfg.Admin.HealthPath, health.HTTPHandler()).Methods(http.MethodGet)
	admin.HandleFunc("/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	adminServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler:           admin,
		ReadHeaderTimeout: 5 * time.Second,
	}

	for _, srv := range []*http.Server{server, adminServer} {
		go func(srv *http.Server) {
			log.WithField("address", srv.Addr).Info("Starting HTTP server")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.WithError(err).Fatal("Failed to start HTTP server")
			}
		}(srv)
	}

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down Consent Service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Admin server forced to shutdown")
	}

	// Pending audit events are flushed before the sinks close
	emitter.Wait()

	if err := tracing.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Failed to flush traces")
	}

	log.Info("Consent Service stopped")
}

func setupTracing(cfg *config.Config, log *logger.Logger) *monitoring.TracingManager {
	if !cfg.Tracing.Enabled {
		return monitoring.NewNoopTracingManager()
	}

	tracing, err := monitoring.NewTracingManager(&monitoring.TracingConfig{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
		JaegerEndpoint: cfg.Tracing.JaegerEndpoint,
		Environment:    cfg.Tracing.Environment,
		SamplingRate:   cfg.Tracing.SamplingRate,
	})
	if err != nil {
		log.WithError(err).Warn("Tracing disabled, failed to create exporter")
		return monitoring.NewNoopTracingManager()
	}
	return tracing
}

// setupAuditSink opens the configured audit store. The returned func releases it.
func setupAuditSink(ctx context.Context, cfg *config.Config, rdb redis.UniversalClient, health *monitoring.HealthManager, log *logger.Logger) (interfaces.AuditSink, func()) {
	switch cfg.Audit.Sink {
	case config.AuditSinkPostgres:
		db, err := database.NewConnection(ctx, &cfg.Database, log)
		if err != nil {
			log.WithError(err).Fatal("Failed to connect to database")
		}
		if err := db.CreateSchema(ctx); err != nil {
			log.WithError(err).Fatal("Failed to create audit schema")
		}
		health.RegisterChecker("database", monitoring.NewDatabaseHealthChecker(db.DB))

		var cipher *encryption.AESEncryption
		if cfg.Encryption.AuditKey != "" {
			if cipher, err = encryption.NewAESEncryption(cfg.Encryption.AuditKey); err != nil {
				log.WithError(err).Fatal("Failed to initialize audit encryption")
			}
		}
		return audit.NewPostgresSink(db.DB, cipher), func() { db.Close() }

	case config.AuditSinkRedis:
		return audit.NewRedisStreamSink(rdb, cfg.Audit.StreamName), func() {}

	default:
		return audit.NewLogSink(log), func() {}
	}
}
