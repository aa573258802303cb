package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"crm-social/domain/repository"
	"crm-social/infrastructure/logger"

	"github.com/redis/go-redis/v9"
)

const stateKeyPrefix = "oauth:state:"

// NewCache connects to Redis and pings it once.
func NewCache(ctx context.Context, addr, username, password string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     username,
		Password:     password,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisStateStore keeps OAuth state values in Redis with a TTL.
type RedisStateStore struct {
	client *redis.Client
}

var _ repository.IOAuthStateStore = (*RedisStateStore)(nil)

func NewRedisStateStore(client *redis.Client) *RedisStateStore {
	return &RedisStateStore{client: client}
}

func (s *RedisStateStore) Save(ctx context.Context, state, userID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, stateKeyPrefix+state, userID, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save oauth state: %w", err)
	}
	return nil
}

// Consume reads and deletes the state in one round trip so it cannot be replayed.
func (s *RedisStateStore) Consume(ctx context.Context, state string) (string, bool, error) {
	userID, err := s.client.GetDel(ctx, stateKeyPrefix+state).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read oauth state: %w", err)
	}
	return userID, true, nil
}

type stateEntry struct {
	userID    string
	expiresAt time.Time
}

// MemoryStateStore is the single-instance fallback used when Redis is unavailable.
type MemoryStateStore struct {
	mu      sync.Mutex
	entries map[string]stateEntry
	now     func() time.Time
}

var _ repository.IOAuthStateStore = (*MemoryStateStore)(nil)

func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{entries: make(map[string]stateEntry), now: time.Now}
}

func (s *MemoryStateStore) Save(_ context.Context, state, userID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
	s.entries[state] = stateEntry{userID: userID, expiresAt: now.Add(ttl)}
	return nil
}

func (s *MemoryStateStore) Consume(_ context.Context, state string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[state]
	if !ok {
		return "", false, nil
	}
	delete(s.entries, state)
	if !s.now().Before(e.expiresAt) {
		return "", false, nil
	}
	return e.userID, true, nil
}

// NewStateStore prefers Redis and falls back to memory when client is nil.
func NewStateStore(client *redis.Client) repository.IOAuthStateStore {
	if client == nil {
		logger.GetLogger().Warn("Redis not available - OAuth state kept in memory")
		return NewMemoryStateStore()
	}
	return NewRedisStateStore(client)
}
