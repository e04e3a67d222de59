package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"authgate/internal/auth"
)

// RedisStore keeps sessions in Redis with a key TTL equal to the session
// expiry, so expired records vanish without a sweeper.
type RedisStore struct {
	client *redis.Client
	secret string
	ttl    time.Duration
	prefix string
}

// NewRedisStore creates a Redis-backed session store.
func NewRedisStore(client *redis.Client, secret string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: client,
		secret: secret,
		ttl:    ttl,
		prefix: "session:",
	}
}

func (r *RedisStore) key(id string) string {
	return r.prefix + hashID(r.secret, id)
}

type redisRecord struct {
	RecordID           uuid.UUID      `json:"record_id"`
	Identity           *auth.Identity `json:"identity,omitempty"`
	PendingState       string         `json:"pending_state,omitempty"`
	PendingStateExpiry time.Time      `json:"pending_state_expiry"`
	CreatedAt          time.Time      `json:"created_at"`
	ExpiresAt          time.Time      `json:"expires_at"`
}

// Create stores a fresh anonymous session.
func (r *RedisStore) Create(ctx context.Context) (*Session, error) {
	id, err := GenerateID()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	s := &Session{
		ID:        id,
		RecordID:  uuid.New(),
		CreatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}

	if err := r.put(ctx, s); err != nil {
		return nil, err
	}
	return s, nil
}

// Load returns the session for id; redis.Nil means absent or expired.
func (r *RedisStore) Load(ctx context.Context, id string) (*Session, error) {
	val, err := r.client.Get(ctx, r.key(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get: %w", err)
	}

	var rec redisRecord
	if err := json.Unmarshal([]byte(val), &rec); err != nil {
		return nil, fmt.Errorf("session: decode record: %w", err)
	}

	return &Session{
		ID:                 id,
		RecordID:           rec.RecordID,
		Identity:           rec.Identity,
		PendingState:       rec.PendingState,
		PendingStateExpiry: rec.PendingStateExpiry,
		CreatedAt:          rec.CreatedAt,
		ExpiresAt:          rec.ExpiresAt,
	}, nil
}

// Save overwrites the record and slides its expiry.
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	s.ExpiresAt = time.Now().Add(r.ttl)
	return r.put(ctx, s)
}

// Destroy removes the record; deleting an absent key is a no-op in Redis.
func (r *RedisStore) Destroy(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("session: redis del: %w", err)
	}
	return nil
}

func (r *RedisStore) put(ctx context.Context, s *Session) error {
	ttl := time.Until(s.ExpiresAt)
	if ttl <= 0 {
		return r.Destroy(ctx, s.ID)
	}

	data, err := json.Marshal(redisRecord{
		RecordID:           s.RecordID,
		Identity:           s.Identity,
		PendingState:       s.PendingState,
		PendingStateExpiry: s.PendingStateExpiry,
		CreatedAt:          s.CreatedAt,
		ExpiresAt:          s.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("session: encode record: %w", err)
	}

	if err := r.client.Set(ctx, r.key(s.ID), data, ttl).Err(); err != nil {
		return fmt.Errorf("session: redis set: %w", err)
	}
	return nil
}
