package ratelimit

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestLocalLimiter_PerKeyBudget tests that each key gets its own budget that refills over time
func TestLocalLimiter_PerKeyBudget(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewLocalLimiter(3, time.Minute)
	limiter.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := limiter.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, ok, "request %d should fit in the burst", i+1)
	}

	ok, _ := limiter.Allow(ctx, "10.0.0.1")
	assert.False(t, ok, "fourth request in the same instant is limited")

	ok, _ = limiter.Allow(ctx, "10.0.0.2")
	assert.True(t, ok, "other keys are unaffected")

	// One token comes back every 20s
	now = now.Add(20 * time.Second)
	ok, _ = limiter.Allow(ctx, "10.0.0.1")
	assert.True(t, ok)
	ok, _ = limiter.Allow(ctx, "10.0.0.1")
	assert.False(t, ok)
}

// TestRedisLimiter_FixedWindow tests the shared counter against a real Redis
func TestRedisLimiter_FixedWindow(t *testing.T) {
	client := getTestRedisClient(t)
	ctx := context.Background()

	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewRedisLimiter(client, "test:ratelimit:"+uuid.NewString(), 2, time.Minute)
	limiter.now = func() time.Time { return now }

	ok, err := limiter.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = limiter.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = limiter.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.False(t, ok, "third request in the window is limited")

	// Next window starts a fresh counter
	now = now.Add(time.Minute)
	ok, err = limiter.Allow(ctx, "ip")
	require.NoError(t, err)
	assert.True(t, ok)
}

// getTestRedisClient connects to TEST_REDIS_URL or skips the test.
func getTestRedisClient(t *testing.T) *redis.Client {
	t.Helper()
	url := os.Getenv("TEST_REDIS_URL")
	if url == "" {
		t.Skip("TEST_REDIS_URL not set")
	}

	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })

	require.NoError(t, client.Ping(context.Background()).Err(), "Failed to connect to test Redis")
	return client
}
