package audit

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/medrex/dlt-consent/pkg/logger"
	"github.com/medrex/dlt-consent/pkg/types"
)

// LogSink writes events to the service log. Used when no durable store is configured.
type LogSink struct {
	logger *logger.Logger
}

// NewLogSink creates a log-backed sink
func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{logger: log}
}

// Append logs the event
func (s *LogSink) Append(ctx context.Context, event *types.PHIAccessEvent) error {
	s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"audit":        true,
		"event_id":     event.ID,
		"event_time":   event.EventTime,
		"action":       event.Action,
		"outcome":      event.Outcome,
		"initiator_id": event.Initiator.ID,
		"target_id":    event.Target.ID,
		"target_name":  event.Target.Name,
		"reason_code":  event.Reason.ReasonCode,
		"request_data": event.RequestData,
	}).Info(event.Message)
	return nil
}
