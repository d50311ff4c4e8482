package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/medrex/dlt-consent/pkg/logger"
)

func TestMetricsCollector(t *testing.T) {
	m := NewMetricsCollector("consent-service")

	m.RecordLedgerCall("getOrg", "query", true, 10*time.Millisecond)
	m.RecordLedgerCall("getOrg", "query", false, 10*time.Millisecond)
	m.RecordPHIAccess("read", "success")
	m.RecordAuditEvent(true)
	m.RecordTokenizerOp("tokenize", true)
	m.RecordOperation("getOrg", http.StatusOK)

	// Assertions
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerCallsTotal.WithLabelValues("getOrg", "query", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerCallsTotal.WithLabelValues("getOrg", "query", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.phiAccessTotal.WithLabelValues("read", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("getOrg", "200")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ledger_calls_total")
}

func TestHealthManager(t *testing.T) {
	t.Run("healthy redis and database", func(t *testing.T) {
		mr := miniredis.RunT(t)
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer rdb.Close()

		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectPing()

		hm := NewHealthManager("consent-service", "test")
		hm.RegisterChecker("redis", NewRedisHealthChecker(rdb))
		hm.RegisterChecker("database", NewDatabaseHealthChecker(db))

		report := hm.CheckHealth(context.Background())

		// Assertions
		assert.Equal(t, HealthStatusHealthy, report.Status)
		assert.Len(t, report.Checks, 2)
		assert.Equal(t, 2, report.Summary[string(HealthStatusHealthy)])
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database ping failure marks the report unhealthy", func(t *testing.T) {
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer db.Close()
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		hm := NewHealthManager("consent-service", "test")
		hm.RegisterChecker("database", NewDatabaseHealthChecker(db))

		rec := httptest.NewRecorder()
		hm.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		// Assertions
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "unhealthy")
	})

	t.Run("http dependency returning 404 is degraded", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		defer srv.Close()

		hm := NewHealthManager("consent-service", "test")
		hm.RegisterChecker("identity", NewHTTPHealthChecker(srv.URL, time.Second))

		report := hm.CheckHealth(context.Background())

		// Assertions
		assert.Equal(t, HealthStatusDegraded, report.Status)
	})
}

func TestHealthTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	hm := NewHealthManager("consent-service", "test")
	hm.SetTimeout(50 * time.Millisecond)
	hm.RegisterChecker("identity", NewHTTPHealthChecker(srv.URL, 5*time.Second))

	report := hm.CheckHealth(context.Background())

	// Assertions
	assert.Equal(t, HealthStatusUnhealthy, report.Status)
	require.Len(t, report.Checks, 1)
	assert.Contains(t, report.Checks[0].Message, "HTTP request failed")
}

func TestAdminHTTPMiddleware(t *testing.T) {
	m := NewMetricsCollector("consent-service")
	handler := m.HTTPMiddleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	// Assertions
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues(http.MethodGet, "/health", "503")))
}

func TestMonitoringMiddlewareTraceID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	newRouter := func(tracing *TracingManager) *gin.Engine {
		router := gin.New()
		router.Use(NewMonitoringMiddleware(NewMetricsCollector("consent-service"), tracing, logger.NewDiscard()).Gin())
		router.GET("/ping", func(c *gin.Context) {
			traceID, _ := c.Request.Context().Value(logger.TraceIDKey).(string)
			c.String(http.StatusOK, traceID)
		})
		return router
	}

	t.Run("recorded spans expose their trace id", func(t *testing.T) {
		tracing := &TracingManager{tracer: sdktrace.NewTracerProvider().Tracer("test"), config: &TracingConfig{}}

		rec := httptest.NewRecorder()
		newRouter(tracing).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		// Assertions
		traceID := rec.Header().Get(TraceIDHeader)
		assert.Len(t, traceID, 32)
		assert.Equal(t, traceID, rec.Body.String())
		assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	})

	t.Run("noop tracing sets no trace header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newRouter(NewNoopTracingManager()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

		// Assertions
		assert.Empty(t, rec.Header().Get(TraceIDHeader))
		assert.Empty(t, rec.Body.String())
	})
}
