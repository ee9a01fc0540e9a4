// Package cache stores replayable responses for idempotent POST requests.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoredResponse is the response replayed for a repeated idempotency key.
type StoredResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        []byte `json:"body"`
	RequestHash string `json:"request_hash"`
}

// IdempotencyStore remembers responses by key. Reserve claims a key before
// the request runs so a concurrent duplicate is refused instead of applied twice.
type IdempotencyStore interface {
	// Get returns nil, nil when nothing is stored for key.
	Get(ctx context.Context, key string) (*StoredResponse, error)
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Save(ctx context.Context, key string, resp *StoredResponse, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

// ErrInFlight is returned by Get when the key is reserved but has no response yet.
var ErrInFlight = errors.New("request with this idempotency key is still in progress")

// ErrKeyReused is returned when a stored key is replayed with a different request.
var ErrKeyReused = errors.New("idempotency key was already used with a different request")

const pendingMarker = "pending"

func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

type RedisIdempotencyStore struct {
	Client *redis.Client
	prefix string
}

func NewRedisIdempotencyStore(client *redis.Client) *RedisIdempotencyStore {
	return &RedisIdempotencyStore{Client: client, prefix: "idempotency:"}
}

func (s *RedisIdempotencyStore) Close() error {
	if s.Client != nil {
		return s.Client.Close()
	}
	return nil
}

func (s *RedisIdempotencyStore) Get(ctx context.Context, key string) (*StoredResponse, error) {
	val, err := s.Client.Get(ctx, s.prefix+key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get idempotency key from redis: %w", err)
	}
	if val == pendingMarker {
		return nil, ErrInFlight
	}

	var resp StoredResponse
	if err := json.Unmarshal([]byte(val), &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stored response: %w", err)
	}
	return &resp, nil
}

func (s *RedisIdempotencyStore) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := s.Client.SetNX(ctx, s.prefix+key, pendingMarker, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to reserve idempotency key in redis: %w", err)
	}
	return ok, nil
}

func (s *RedisIdempotencyStore) Save(ctx context.Context, key string, resp *StoredResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal stored response: %w", err)
	}
	if err := s.Client.Set(ctx, s.prefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to store response in redis: %w", err)
	}
	return nil
}

func (s *RedisIdempotencyStore) Release(ctx context.Context, key string) error {
	return s.Client.Del(ctx, s.prefix+key).Err()
}

type entry struct {
	resp    *StoredResponse
	expires time.Time
}

// MemoryIdempotencyStore is the single process fallback used when no redis
// address is configured.
type MemoryIdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

func NewMemoryIdempotencyStore() *MemoryIdempotencyStore {
	return &MemoryIdempotencyStore{entries: make(map[string]entry), now: time.Now}
}

func (s *MemoryIdempotencyStore) lookup(key string) (entry, bool) {
	e, ok := s.entries[key]
	if ok && !s.now().Before(e.expires) {
		delete(s.entries, key)
		return entry{}, false
	}
	return e, ok
}

func (s *MemoryIdempotencyStore) Get(_ context.Context, key string) (*StoredResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.lookup(key)
	if !ok {
		return nil, nil
	}
	if e.resp == nil {
		return nil, ErrInFlight
	}
	return e.resp, nil
}

func (s *MemoryIdempotencyStore) Reserve(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lookup(key); ok {
		return false, nil
	}
	s.entries[key] = entry{expires: s.now().Add(ttl)}
	return true, nil
}

func (s *MemoryIdempotencyStore) Save(_ context.Context, key string, resp *StoredResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = entry{resp: resp, expires: s.now().Add(ttl)}
	return nil
}

func (s *MemoryIdempotencyStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}
