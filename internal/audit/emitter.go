package audit

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/medrex/dlt-consent/pkg/config"
	"github.com/medrex/dlt-consent/pkg/interfaces"
	"github.com/medrex/dlt-consent/pkg/logger"
	"github.com/medrex/dlt-consent/pkg/monitoring"
	"github.com/medrex/dlt-consent/pkg/types"
)

const appendTimeout = 10 * time.Second

// Emitter writes PHI access events without making the caller wait for the sink
type Emitter struct {
	sink     interfaces.AuditSink
	flags    interfaces.FlagSource
	observer types.Resource
	metrics  *monitoring.MetricsCollector
	logger   *logger.Logger
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewEmitter creates a new audit emitter
func NewEmitter(sink interfaces.AuditSink, flags interfaces.FlagSource, cfg *config.AuditConfig, metrics *monitoring.MetricsCollector, log *logger.Logger) *Emitter {
	return &Emitter{
		sink:  sink,
		flags: flags,
		observer: types.Resource{
			ID:      cfg.ObserverID,
			TypeURI: typeURIObserver,
			Name:    cfg.ObserverName,
		},
		metrics: metrics,
		logger:  log,
		now:     time.Now,
	}
}

// Record emits one event for an access attempt. It returns immediately;
// sink failures are logged locally and never reach the caller.
func (e *Emitter) Record(ctx context.Context, access Access, status int, outcome string) {
	if !e.flags.AuditLoggingEnabled() {
		return
	}

	event := BuildEvent(access, status, outcome, e.observer, e.now())
	e.metrics.RecordPHIAccess(event.Action, outcome)

	// The request context ends with the response; the write must outlive it
	bg := context.WithoutCancel(ctx)

	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		actx, cancel := context.WithTimeout(bg, appendTimeout)
		defer cancel()

		err := e.sink.Append(actx, event)
		e.metrics.RecordAuditEvent(err == nil)
		if err != nil {
			e.logger.WithContext(bg).WithFields(logrus.Fields{
				"component": "audit",
				"event_id":  event.ID,
			}).WithError(err).Error("Failed to persist PHI access event")
			e.logger.PHIAccess(bg, access.InitiatorID, event.Target.ID, event.Action, outcome, status, access.RequestData)
		}
	}()
}

// Wait blocks until every pending event has been handed to the sink
func (e *Emitter) Wait() {
	e.wg.Wait()
}
