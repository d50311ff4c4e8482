package logger

import (
	"context"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// Logger wraps logrus.Logger with additional functionality
type Logger struct {
	*logrus.Logger
}

type contextKey string

// Context keys picked up by WithContext
const (
	RequestIDKey contextKey = "request_id"
	CallerIDKey  contextKey = "caller_id"
	TraceIDKey   contextKey = "trace_id"
)

// New creates a new logger instance
func New(level string) *Logger {
	log := logrus.New()

	// Set log level
	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	log.SetLevel(logLevel)

	// Set output format
	log.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: "2006-01-02T15:04:05.000Z07:00",
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	// Set output destination
	log.SetOutput(os.Stdout)

	return &Logger{Logger: log}
}

// NewDiscard creates a logger that drops everything, for tests
func NewDiscard() *Logger {
	log := New("panic")
	log.SetOutput(io.Discard)
	return log
}

// WithComponent creates a new logger entry with component name field
func (l *Logger) WithComponent(component string) *logrus.Entry {
	return l.Logger.WithField("component", component)
}

// WithContext creates a logger with context-aware fields
func (l *Logger) WithContext(ctx context.Context) *logrus.Entry {
	entry := l.Logger.WithFields(logrus.Fields{})

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		entry = entry.WithField("request_id", requestID)
	}

	if callerID, ok := ctx.Value(CallerIDKey).(string); ok && callerID != "" {
		entry = entry.WithField("caller_id", callerID)
	}

	if traceID, ok := ctx.Value(TraceIDKey).(string); ok && traceID != "" {
		entry = entry.WithField("trace_id", traceID)
	}

	return entry
}

// PHIAccess logs a PHI access event locally. Used when the audit sink could not take the event.
func (l *Logger) PHIAccess(ctx context.Context, initiatorID, targetID, action, outcome string, status int, details map[string]interface{}) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"phi_access":   true,
		"initiator_id": initiatorID,
		"target_id":    targetID,
		"action":       action,
		"outcome":      outcome,
		"status_code":  status,
		"details":      details,
		"sensitive":    true,
	})

	if outcome == "success" {
		entry.Info("PHI access granted")
	} else {
		entry.Warn("PHI access denied")
	}
}

// BlockchainTransaction logs blockchain transaction events. Arguments are never logged.
func (l *Logger) BlockchainTransaction(ctx context.Context, chaincode, function string, success bool, txID string, details map[string]interface{}) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"blockchain":     true,
		"chaincode":      chaincode,
		"function":       function,
		"success":        success,
		"transaction_id": txID,
		"details":        details,
	})

	if success {
		entry.Info("Blockchain transaction completed")
	} else {
		entry.Error("Blockchain transaction failed")
	}
}

// HTTPRequest logs HTTP request events
func (l *Logger) HTTPRequest(ctx context.Context, method, path, clientIP string, statusCode int, duration int64) {
	entry := l.WithContext(ctx).WithFields(logrus.Fields{
		"http_request": true,
		"method":       method,
		"path":         path,
		"client_ip":    clientIP,
		"status_code":  statusCode,
		"duration_ms":  duration,
	})

	if statusCode >= 400 {
		entry.Warn("HTTP request completed with error")
	} else {
		entry.Info("HTTP request completed")
	}
}
