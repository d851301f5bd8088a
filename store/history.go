package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"wellrag/types"
)

const (
	defaultHistoryTTL = 24 * time.Hour
	defaultHistoryCap = 50
)

// RedisHistoryStore keeps each user's conversation as a capped redis list.
type RedisHistoryStore struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
	maxLen int
}

func NewRedisHistoryStore(client *redis.Client, ttl time.Duration, maxLen int, tracer trace.Tracer) *RedisHistoryStore {
	if client == nil {
		panic("store: redis client cannot be nil")
	}
	if tracer == nil {
		tracer = otel.Tracer("wellrag.store.history")
	}
	if ttl <= 0 {
		ttl = defaultHistoryTTL
	}
	if maxLen <= 0 {
		maxLen = defaultHistoryCap
	}
	return &RedisHistoryStore{
		redis:  client,
		tracer: tracer,
		ttl:    ttl,
		maxLen: maxLen,
	}
}

func (s *RedisHistoryStore) SaveTurns(ctx context.Context, userID string, turns ...types.ConversationTurn) error {
	ctx, span := s.tracer.Start(ctx, "history.save_turns")
	defer span.End()

	if len(turns) == 0 {
		return nil
	}

	values := make([]any, 0, len(turns))
	for _, t := range turns {
		if t.CreatedAt.IsZero() {
			t.CreatedAt = time.Now().UTC()
		}
		data, err := json.Marshal(t)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("history: failed to marshal turn: %w", err)
		}
		values = append(values, data)
	}

	key := historyKey(userID)
	pipe := s.redis.TxPipeline()
	pipe.RPush(ctx, key, values...)
	pipe.LTrim(ctx, key, int64(-s.maxLen), -1)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("history: failed to persist turns: %w", err)
	}
	return nil
}

func (s *RedisHistoryStore) RecentTurns(ctx context.Context, userID string, n int) ([]types.ConversationTurn, error) {
	ctx, span := s.tracer.Start(ctx, "history.recent_turns")
	defer span.End()

	if n <= 0 {
		return []types.ConversationTurn{}, nil
	}

	raw, err := s.redis.LRange(ctx, historyKey(userID), int64(-n), -1).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("history: failed to load turns: %w", err)
	}

	turns := make([]types.ConversationTurn, 0, len(raw))
	for _, item := range raw {
		var t types.ConversationTurn
		if err := json.Unmarshal([]byte(item), &t); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("history: failed to decode turn: %w", err)
		}
		turns = append(turns, t)
	}
	return turns, nil
}

func historyKey(userID string) string {
	return fmt.Sprintf("chat:%s", userID)
}
