package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/medrex/dlt-consent/pkg/types"
)

// RedisStreamSink appends events to a Redis stream
type RedisStreamSink struct {
	client redis.UniversalClient
	stream string
}

// NewRedisStreamSink creates a sink writing to the named stream
func NewRedisStreamSink(client redis.UniversalClient, stream string) *RedisStreamSink {
	return &RedisStreamSink{client: client, stream: stream}
}

// Append adds one stream entry holding the JSON event
func (s *RedisStreamSink) Append(ctx context.Context, event *types.PHIAccessEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode audit event: %w", err)
	}

	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"id":      event.ID,
			"outcome": event.Outcome,
			"event":   string(payload),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to append audit event: %w", err)
	}
	return nil
}
