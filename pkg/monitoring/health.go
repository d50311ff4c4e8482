package monitoring

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck represents a single health check
type HealthCheck struct {
	Name        string                 `json:"name"`
	Status      HealthStatus           `json:"status"`
	Message     string                 `json:"message,omitempty"`
	LastChecked time.Time              `json:"last_checked"`
	Duration    time.Duration          `json:"duration"`
	Details     map[string]interface{} `json:"details,omitempty"`
}

// HealthReport represents the overall health report
type HealthReport struct {
	Status    HealthStatus   `json:"status"`
	Timestamp time.Time      `json:"timestamp"`
	Service   string         `json:"service"`
	Version   string         `json:"version"`
	Checks    []HealthCheck  `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// HealthChecker interface for health check implementations
type HealthChecker interface {
	Check(ctx context.Context) HealthCheck
}

// HealthManager manages health checks
type HealthManager struct {
	serviceName    string
	serviceVersion string
	checkers       map[string]HealthChecker
	mu             sync.RWMutex
	timeout        time.Duration
}

// NewHealthManager creates a new health manager
func NewHealthManager(serviceName, serviceVersion string) *HealthManager {
	return &HealthManager{
		serviceName:    serviceName,
		serviceVersion: serviceVersion,
		checkers:       make(map[string]HealthChecker),
		timeout:        5 * time.Second,
	}
}

// RegisterChecker registers a health checker
func (hm *HealthManager) RegisterChecker(name string, checker HealthChecker) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.checkers[name] = checker
}

// SetTimeout sets the timeout for health checks
func (hm *HealthManager) SetTimeout(timeout time.Duration) {
	hm.mu.Lock()
	defer hm.mu.Unlock()
	hm.timeout = timeout
}

// CheckHealth performs all health checks concurrently and returns a report
func (hm *HealthManager) CheckHealth(ctx context.Context) *HealthReport {
	hm.mu.RLock()
	checkers := make(map[string]HealthChecker, len(hm.checkers))
	for name, checker := range hm.checkers {
		checkers[name] = checker
	}
	timeout := hm.timeout
	hm.mu.RUnlock()

	report := &HealthReport{
		Service:   hm.serviceName,
		Version:   hm.serviceVersion,
		Timestamp: time.Now(),
		Checks:    make([]HealthCheck, 0, len(checkers)),
		Summary:   make(map[string]int),
	}

	checkChan := make(chan HealthCheck, len(checkers))
	var wg sync.WaitGroup

	for name, checker := range checkers {
		wg.Add(1)
		go func(name string, checker HealthChecker) {
			defer wg.Done()

			checkCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			start := time.Now()
			check := checker.Check(checkCtx)
			check.Name = name
			check.LastChecked = start
			check.Duration = time.Since(start)

			checkChan <- check
		}(name, checker)
	}

	wg.Wait()
	close(checkChan)

	for check := range checkChan {
		report.Checks = append(report.Checks, check)
		report.Summary[string(check.Status)]++
	}

	switch {
	case report.Summary[string(HealthStatusUnhealthy)] > 0:
		report.Status = HealthStatusUnhealthy
	case report.Summary[string(HealthStatusDegraded)] > 0:
		report.Status = HealthStatusDegraded
	default:
		report.Status = HealthStatusHealthy
	}

	return report
}

// HTTPHandler returns an HTTP handler for health checks
func (hm *HealthManager) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report := hm.CheckHealth(r.Context())

		w.Header().Set("Content-Type", "application/json")
		if report.Status == HealthStatusUnhealthy {
			w.WriteHeader(http.StatusServiceUnavailable)
		} else {
			w.WriteHeader(http.StatusOK)
		}

		_ = json.NewEncoder(w).Encode(report)
	}
}

// DatabaseHealthChecker checks database connectivity
type DatabaseHealthChecker struct {
	db *sql.DB
}

// NewDatabaseHealthChecker creates a new database health checker
func NewDatabaseHealthChecker(db *sql.DB) *DatabaseHealthChecker {
	return &DatabaseHealthChecker{db: db}
}

// Check performs the database health check
func (dhc *DatabaseHealthChecker) Check(ctx context.Context) HealthCheck {
	check := HealthCheck{
		Details: make(map[string]interface{}),
	}

	if err := dhc.db.PingContext(ctx); err != nil {
		check.Status = HealthStatusUnhealthy
		check.Message = fmt.Sprintf("Database connection failed: %v", err)
		return check
	}

	stats := dhc.db.Stats()
	check.Details["open_connections"] = stats.OpenConnections
	check.Details["in_use"] = stats.InUse
	check.Details["idle"] = stats.Idle

	// Check if we're running out of connections
	if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections {
		check.Status = HealthStatusDegraded
		check.Message = "Database connection pool exhausted"
	} else {
		check.Status = HealthStatusHealthy
		check.Message = "Database connection healthy"
	}

	return check
}

// RedisHealthChecker checks Redis connectivity
type RedisHealthChecker struct {
	client redis.UniversalClient
}

// NewRedisHealthChecker creates a new Redis health checker
func NewRedisHealthChecker(client redis.UniversalClient) *RedisHealthChecker {
	return &RedisHealthChecker{client: client}
}

// Check pings Redis
func (rhc *RedisHealthChecker) Check(ctx context.Context) HealthCheck {
	check := HealthCheck{}
	if err := rhc.client.Ping(ctx).Err(); err != nil {
		check.Status = HealthStatusUnhealthy
		check.Message = fmt.Sprintf("Redis ping failed: %v", err)
		return check
	}
	check.Status = HealthStatusHealthy
	check.Message = "Redis connection healthy"
	return check
}

// HTTPHealthChecker checks HTTP service connectivity
type HTTPHealthChecker struct {
	url    string
	client *http.Client
}

// NewHTTPHealthChecker creates a new HTTP health checker
func NewHTTPHealthChecker(url string, timeout time.Duration) *HTTPHealthChecker {
	return &HTTPHealthChecker{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Check performs the HTTP health check
func (hhc *HTTPHealthChecker) Check(ctx context.Context) HealthCheck {
	check := HealthCheck{
		Details: map[string]interface{}{"url": hhc.url},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hhc.url, nil)
	if err != nil {
		check.Status = HealthStatusUnhealthy
		check.Message = fmt.Sprintf("Failed to create request: %v", err)
		return check
	}

	resp, err := hhc.client.Do(req)
	if err != nil {
		check.Status = HealthStatusUnhealthy
		check.Message = fmt.Sprintf("HTTP request failed: %v", err)
		return check
	}
	defer resp.Body.Close()

	check.Details["status_code"] = resp.StatusCode

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		check.Status = HealthStatusHealthy
		check.Message = "HTTP service healthy"
	case resp.StatusCode >= 500:
		check.Status = HealthStatusUnhealthy
		check.Message = fmt.Sprintf("HTTP service returned %d", resp.StatusCode)
	default:
		check.Status = HealthStatusDegraded
		check.Message = fmt.Sprintf("HTTP service returned %d", resp.StatusCode)
	}

	return check
}
