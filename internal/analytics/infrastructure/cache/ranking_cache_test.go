package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/mosaic/internal/analytics/domain"
)

var key = domain.RankingKey{
	Category:   "Restaurant",
	WindowDays: 30,
	Date:       time.Date(2026, 4, 2, 0, 0, 0, 0, time.UTC),
}

func TestInMemoryRankingCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)
	cache := NewInMemoryRankingCache(time.Minute).WithClock(func() time.Time { return now })

	_, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	ranked := []domain.PeerScore{{BusinessID: uuid.New(), Score: 7}, {BusinessID: uuid.New(), Score: 2}}
	require.NoError(t, cache.Set(ctx, key, ranked))

	got, ok, err := cache.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ranked, got)

	now = now.Add(time.Minute)
	_, ok, err = cache.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok, "entry expired")
}

func TestEncodeDecode_KeepsOrder(t *testing.T) {
	ranked := []domain.PeerScore{{BusinessID: uuid.New(), Score: 1}, {BusinessID: uuid.New(), Score: 1}}
	raw, err := encode(ranked)
	require.NoError(t, err)

	got, err := decode(raw)
	require.NoError(t, err)
	assert.Equal(t, ranked, got)

	_, err = decode([]byte(`[{"business_id":"nope","score":1}]`))
	assert.Error(t, err)
}

// Runs against a real server when MOSAIC_TEST_REDIS_URL is set.
func TestRedisRankingCache(t *testing.T) {
	url := os.Getenv("MOSAIC_TEST_REDIS_URL")
	if url == "" {
		t.Skip("MOSAIC_TEST_REDIS_URL not set")
	}
	opt, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opt)
	t.Cleanup(func() { _ = client.Close() })

	ctx := context.Background()
	k := key
	k.Category = "test-" + uuid.NewString()
	cache := NewRedisRankingCache(client, time.Minute)

	_, ok, err := cache.Get(ctx, k)
	require.NoError(t, err)
	assert.False(t, ok)

	ranked := []domain.PeerScore{{BusinessID: uuid.New(), Score: 4}}
	require.NoError(t, cache.Set(ctx, k, ranked))
	t.Cleanup(func() { _ = client.Del(ctx, k.String()).Err() })

	got, ok, err := cache.Get(ctx, k)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ranked, got)

	ttl, err := client.TTL(ctx, k.String()).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))
}
