// Package session implements the concurrent-safe conv_id -> QueryParams
// store. MemStore backs a
// single process; RedisStore is the pluggable production backend,
// grounded on the data/cache/cache.go go-redis wrapper.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sawpanic/hanguk-agent/internal/dialog"
)

// Store is the pluggable session backend.
type Store interface {
	Get(ctx context.Context, sessionID string) (dialog.QueryParams, bool, error)
	Set(ctx context.Context, sessionID string, params dialog.QueryParams) error
	Clear(ctx context.Context, sessionID string) error
}

// MemStore is a mutex-guarded map, sufficient for a single process.
type MemStore struct {
	mu   sync.Mutex
	data map[string]dialog.QueryParams
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string]dialog.QueryParams)}
}

func (m *MemStore) Get(_ context.Context, sessionID string) (dialog.QueryParams, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data[sessionID]
	return p, ok, nil
}

func (m *MemStore) Set(_ context.Context, sessionID string, params dialog.QueryParams) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[sessionID] = params
	return nil
}

func (m *MemStore) Clear(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, sessionID)
	return nil
}

// RedisStore persists sessions to Redis with a bounded TTL, grounded on
// data/cache/cache.go's NewAuto()-style client construction.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

func NewRedisStore(addr string, ttl time.Duration) *RedisStore {
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		ttl:    ttl,
		prefix: "hanguk-agent:session:",
	}
}

func (r *RedisStore) key(sessionID string) string {
	return r.prefix + sessionID
}

func (r *RedisStore) Get(ctx context.Context, sessionID string) (dialog.QueryParams, bool, error) {
	raw, err := r.client.Get(ctx, r.key(sessionID)).Bytes()
	if err == redis.Nil {
		return dialog.QueryParams{}, false, nil
	}
	if err != nil {
		return dialog.QueryParams{}, false, fmt.Errorf("session get: %w", err)
	}
	var p dialog.QueryParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return dialog.QueryParams{}, false, fmt.Errorf("session decode: %w", err)
	}
	return p, true, nil
}

func (r *RedisStore) Set(ctx context.Context, sessionID string, params dialog.QueryParams) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("session encode: %w", err)
	}
	if err := r.client.Set(ctx, r.key(sessionID), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("session set: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("session clear: %w", err)
	}
	return nil
}
