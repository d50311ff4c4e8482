package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medrex/dlt-consent/pkg/config"
	"github.com/medrex/dlt-consent/pkg/logger"
	"github.com/medrex/dlt-consent/pkg/monitoring"
	"github.com/medrex/dlt-consent/pkg/types"
)

type recordingSink struct {
	mu     sync.Mutex
	events []*types.PHIAccessEvent
	err    error
}

func (s *recordingSink) Append(_ context.Context, event *types.PHIAccessEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return s.err
}

func (s *recordingSink) Events() []*types.PHIAccessEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*types.PHIAccessEvent(nil), s.events...)
}

func setupEmitter(enabled bool) (*Emitter, *recordingSink, *config.Flags) {
	sink := &recordingSink{}
	cfg := &config.Config{Audit: config.AuditConfig{Enabled: enabled, ObserverID: "consent-service", ObserverName: "Consent Service"}}
	flags := config.NewFlags(cfg)
	e := NewEmitter(sink, flags, &cfg.Audit, monitoring.NewMetricsCollector("test"), logger.NewDiscard())
	e.now = func() time.Time { return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC) }
	return e, sink, flags
}

func TestEmitterRecord(t *testing.T) {
	t.Run("builds a CADF event", func(t *testing.T) {
		e, sink, _ := setupEmitter(true)

		e.Record(context.Background(), Access{
			InitiatorID: "svc2",
			Resource:    "userData",
			Key:         "svc1/pat1/dt1",
			Message:     "download user data",
			RequestData: map[string]interface{}{"maxNum": 10},
		}, 200, types.CADFOutcomeSuccess)
		e.Wait()

		events := sink.Events()
		require.Len(t, events, 1)
		ev := events[0]

		// Assertions
		assert.NotEmpty(t, ev.ID)
		assert.Equal(t, types.CADFTypeURI, ev.TypeURI)
		assert.Equal(t, "2024-05-01T12:00:00Z", ev.EventTime)
		assert.Equal(t, types.CADFActionRead, ev.Action)
		assert.Equal(t, types.CADFOutcomeSuccess, ev.Outcome)
		assert.Equal(t, types.CADFSeverityInfo, ev.Severity)
		assert.Equal(t, "svc2", ev.Initiator.ID)
		assert.Equal(t, "token", ev.Initiator.Credential.Type)
		assert.Equal(t, TargetID("userData", "svc1/pat1/dt1"), ev.Target.ID)
		assert.Equal(t, "userData", ev.Target.Name)
		assert.Equal(t, "consent-service", ev.Observer.ID)
		assert.Equal(t, "200", ev.Reason.ReasonCode)
		assert.Equal(t, 10, ev.RequestData["maxNum"])
	})

	t.Run("failure is a warning", func(t *testing.T) {
		e, sink, _ := setupEmitter(true)

		e.Record(context.Background(), Access{InitiatorID: "svc2", Resource: "consent"}, 404, types.CADFOutcomeFailure)
		e.Wait()

		require.Len(t, sink.Events(), 1)
		assert.Equal(t, types.CADFSeverityWarning, sink.Events()[0].Severity)
		assert.Equal(t, "404", sink.Events()[0].Reason.ReasonCode)
	})

	t.Run("disabled flag is read per call", func(t *testing.T) {
		e, sink, flags := setupEmitter(false)

		e.Record(context.Background(), Access{Resource: "consent"}, 200, types.CADFOutcomeSuccess)
		flags.SetAuditLogging(true)
		e.Record(context.Background(), Access{Resource: "consent"}, 200, types.CADFOutcomeSuccess)
		e.Wait()

		assert.Len(t, sink.Events(), 1)
	})

	t.Run("sink failure is swallowed", func(t *testing.T) {
		e, sink, _ := setupEmitter(true)
		sink.err = errors.New("connection refused")

		assert.NotPanics(t, func() {
			e.Record(context.Background(), Access{Resource: "consent"}, 200, types.CADFOutcomeSuccess)
			e.Wait()
		})
		assert.Len(t, sink.Events(), 1)
	})

	t.Run("cancelled request context still persists", func(t *testing.T) {
		e, sink, _ := setupEmitter(true)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		e.Record(ctx, Access{Resource: "consent"}, 200, types.CADFOutcomeSuccess)
		e.Wait()

		assert.Len(t, sink.Events(), 1)
	})
}

func TestTargetIDStable(t *testing.T) {
	assert.Equal(t, TargetID("consent", "pat1/svc2/dt1"), TargetID("consent", "pat1/svc2/dt1"))
	assert.NotEqual(t, TargetID("consent", ""), TargetID("userData", ""))
	assert.NotEqual(t, TargetID("consent", "pat1/svc2/dt1"), TargetID("consent", "pat2/svc2/dt1"))
	assert.NotEqual(t, TargetID("consent", "pat1"), TargetID("consent", ""))
}

func TestOutcome(t *testing.T) {
	assert.Equal(t, types.CADFOutcomeSuccess, Outcome(200))
	assert.Equal(t, types.CADFOutcomeSuccess, Outcome(201))
	assert.Equal(t, types.CADFOutcomeFailure, Outcome(404))
	assert.Equal(t, types.CADFOutcomeFailure, Outcome(500))
}
