package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultMetricsStateTTL = 24 * time.Hour

// MetricsStateStore caches incremental metrics state per conversation.
type MetricsStateStore interface {
	Load(ctx context.Context, conversationID string) (*MetricsState, error)
	Save(ctx context.Context, conversationID string, state MetricsState) error
	Delete(ctx context.Context, conversationID string) error
}

// RedisMetricsStateStore keeps MetricsState as JSON with a sliding TTL.
type RedisMetricsStateStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

func NewRedisMetricsStateStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisMetricsStateStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("bme.internal.conversation.state")
	}
	if ttl <= 0 {
		ttl = defaultMetricsStateTTL
	}
	return &RedisMetricsStateStore{redis: client, tracer: tracer, ttl: ttl}
}

// Load returns nil, nil when nothing is cached for the conversation.
func (s *RedisMetricsStateStore) Load(ctx context.Context, conversationID string) (*MetricsState, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_metrics_state")
	defer span.End()
	span.SetAttributes(attribute.String("bme.conversation_id", conversationID))

	data, err := s.redis.Get(ctx, metricsStateKey(conversationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to load metrics state: %w", err)
	}

	var state MetricsState
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: failed to decode metrics state: %w", err)
	}
	return &state, nil
}

func (s *RedisMetricsStateStore) Save(ctx context.Context, conversationID string, state MetricsState) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_metrics_state")
	defer span.End()
	span.SetAttributes(attribute.String("bme.conversation_id", conversationID))

	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal metrics state: %w", err)
	}
	if err := s.redis.Set(ctx, metricsStateKey(conversationID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist metrics state: %w", err)
	}
	return nil
}

func (s *RedisMetricsStateStore) Delete(ctx context.Context, conversationID string) error {
	ctx, span := s.tracer.Start(ctx, "conversation.delete_metrics_state")
	defer span.End()

	if err := s.redis.Del(ctx, metricsStateKey(conversationID)).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to delete metrics state: %w", err)
	}
	return nil
}

func metricsStateKey(conversationID string) string {
	return fmt.Sprintf("metrics_state:%s", strings.TrimSpace(conversationID))
}
