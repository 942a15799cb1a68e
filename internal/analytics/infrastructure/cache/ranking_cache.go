// Package cache keeps category ranking snapshots so repeated performance
// reports for the same category and day skip the peer scan.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/mosaic/internal/analytics/domain"
)

// DefaultTTL bounds how stale a cached ranking may get.
const DefaultTTL = 10 * time.Minute

// RedisRankingCache implements domain.RankingCache on Redis.
// Keys look like mosaic:ranking:{category}:{window}:{date}.
type RedisRankingCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisRankingCache creates a Redis-backed ranking cache.
func NewRedisRankingCache(client *redis.Client, ttl time.Duration) *RedisRankingCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisRankingCache{client: client, ttl: ttl}
}

type cachedScore struct {
	BusinessID string `json:"business_id"`
	Score      int    `json:"score"`
}

// Get loads a snapshot.
func (c *RedisRankingCache) Get(ctx context.Context, key domain.RankingKey) ([]domain.PeerScore, bool, error) {
	val, err := c.client.Get(ctx, key.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	ranked, err := decode(val)
	if err != nil {
		// A corrupt entry is a miss; the caller recomputes and overwrites it.
		return nil, false, nil
	}
	return ranked, true, nil
}

// Set stores a snapshot with the cache TTL.
func (c *RedisRankingCache) Set(ctx context.Context, key domain.RankingKey, ranked []domain.PeerScore) error {
	val, err := encode(ranked)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key.String(), val, c.ttl).Err()
}

func encode(ranked []domain.PeerScore) ([]byte, error) {
	out := make([]cachedScore, len(ranked))
	for i, p := range ranked {
		out[i] = cachedScore{BusinessID: p.BusinessID.String(), Score: p.Score}
	}
	return json.Marshal(out)
}

func decode(val []byte) ([]domain.PeerScore, error) {
	var in []cachedScore
	if err := json.Unmarshal(val, &in); err != nil {
		return nil, err
	}
	ranked := make([]domain.PeerScore, 0, len(in))
	for _, s := range in {
		id, err := uuid.Parse(s.BusinessID)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, domain.PeerScore{BusinessID: id, Score: s.Score})
	}
	return ranked, nil
}

// InMemoryRankingCache implements domain.RankingCache in process. It backs
// local mode and tests.
type InMemoryRankingCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewInMemoryRankingCache creates an in-process ranking cache.
func NewInMemoryRankingCache(ttl time.Duration) *InMemoryRankingCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &InMemoryRankingCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

// WithClock replaces the clock used for expiry.
func (c *InMemoryRankingCache) WithClock(now func() time.Time) *InMemoryRankingCache {
	c.now = now
	return c
}

// Get loads a snapshot unless it expired.
func (c *InMemoryRankingCache) Get(_ context.Context, key domain.RankingKey) ([]domain.PeerScore, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key.String()]
	if !ok {
		return nil, false, nil
	}
	if !c.now().Before(e.expiresAt) {
		delete(c.entries, key.String())
		return nil, false, nil
	}
	ranked, err := decode(e.value)
	if err != nil {
		return nil, false, err
	}
	return ranked, true, nil
}

// Set stores a snapshot.
func (c *InMemoryRankingCache) Set(_ context.Context, key domain.RankingKey, ranked []domain.PeerScore) error {
	val, err := encode(ranked)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key.String()] = memoryEntry{value: val, expiresAt: c.now().Add(c.ttl)}
	return nil
}
