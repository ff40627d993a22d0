// Package sessionstore keeps a short-lived registry of chat sessions in Redis
// so the embedding page can look up the registered visitor.
package sessionstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/omnitrix-widget/internal/flow"
)

const (
	keyPrefix  = "widget_session:"
	defaultTTL = 2 * time.Hour
)

// ErrNotFound is returned when a session is unknown or expired.
var ErrNotFound = errors.New("sessionstore: session not found")

// Record is the stored view of one chat session.
type Record struct {
	SessionID string      `json:"session_id"`
	TenantID  string      `json:"tenant_id"`
	Screen    flow.Screen `json:"screen"`
	User      *flow.User  `json:"user,omitempty"`
	UpdatedAt time.Time   `json:"updated_at"`
}

type Store struct {
	redis  *redis.Client
	tracer trace.Tracer
	ttl    time.Duration
}

// New returns nil when redisClient is nil; every method is safe on a nil Store.
func New(redisClient *redis.Client, ttl time.Duration) *Store {
	if redisClient == nil {
		return nil
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Store{
		redis:  redisClient,
		tracer: otel.Tracer("omnitrix.internal.sessionstore"),
		ttl:    ttl,
	}
}

// Save writes rec and resets its expiry.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if rec.SessionID == "" {
		return errors.New("sessionstore: session id required")
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("sessionstore: marshal record: %w", err)
	}

	ctx, span := s.tracer.Start(ctx, "sessionstore.save")
	defer span.End()
	span.SetAttributes(attribute.String("omnitrix.tenant_id", rec.TenantID))

	pipe := s.redis.TxPipeline()
	pipe.Set(ctx, key(rec.SessionID), data, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("sessionstore: save: %w", err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, sessionID string) (Record, error) {
	if s == nil || s.redis == nil {
		return Record{}, ErrNotFound
	}
	if ctx == nil {
		ctx = context.Background()
	}

	ctx, span := s.tracer.Start(ctx, "sessionstore.get")
	defer span.End()

	raw, err := s.redis.Get(ctx, key(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, ErrNotFound
		}
		span.RecordError(err)
		return Record{}, fmt.Errorf("sessionstore: get: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		span.RecordError(err)
		return Record{}, fmt.Errorf("sessionstore: decode record: %w", err)
	}
	return rec, nil
}

// Touch extends the session's expiry without rewriting it.
func (s *Store) Touch(ctx context.Context, sessionID string) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ok, err := s.redis.Expire(ctx, key(sessionID), s.ttl).Result()
	if err != nil {
		return fmt.Errorf("sessionstore: touch: %w", err)
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, sessionID string) error {
	if s == nil || s.redis == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := s.redis.Del(ctx, key(sessionID)).Err(); err != nil {
		return fmt.Errorf("sessionstore: delete: %w", err)
	}
	return nil
}

func key(sessionID string) string {
	return keyPrefix + sessionID
}
