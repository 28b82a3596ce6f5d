package chat

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Idempotency remembers routing results keyed by session plus client
// message id, so a client retry-on-timeout does not produce a second
// bot or staff reply.
type Idempotency interface {
	Lookup(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, payload []byte) error
}

const idemKeyPrefix = "chat:idem:"

// RedisIdempotency stores results in Redis with a TTL. Used when Redis
// is configured so replays survive process restarts.
type RedisIdempotency struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisIdempotency creates the Redis-backed store.
func NewRedisIdempotency(client *redis.Client, ttl time.Duration) *RedisIdempotency {
	return &RedisIdempotency{client: client, ttl: ttl}
}

// Lookup fetches a cached result.
func (r *RedisIdempotency) Lookup(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := r.client.Get(ctx, idemKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// Save records a result for the TTL window.
func (r *RedisIdempotency) Save(ctx context.Context, key string, payload []byte) error {
	return r.client.Set(ctx, idemKeyPrefix+key, payload, r.ttl).Err()
}

// MemoryIdempotency is the in-process fallback when Redis is not
// configured.
type MemoryIdempotency struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memEntry
}

type memEntry struct {
	payload []byte
	expires time.Time
}

// NewMemoryIdempotency creates the in-memory store.
func NewMemoryIdempotency(ttl time.Duration) *MemoryIdempotency {
	return &MemoryIdempotency{ttl: ttl, entries: make(map[string]memEntry)}
}

// Lookup fetches a cached result, pruning it when expired.
func (m *MemoryIdempotency) Lookup(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry, ok := m.entries[key]
	if !ok {
		return nil, false, nil
	}
	if time.Now().After(entry.expires) {
		delete(m.entries, key)
		return nil, false, nil
	}
	return entry.payload, true, nil
}

// Save records a result and opportunistically prunes expired entries.
func (m *MemoryIdempotency) Save(_ context.Context, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	for k, e := range m.entries {
		if now.After(e.expires) {
			delete(m.entries, k)
		}
	}
	m.entries[key] = memEntry{payload: payload, expires: now.Add(m.ttl)}
	return nil
}
