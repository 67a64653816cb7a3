package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestOTPRepository(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewOTPRepository(client)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, "Ada@Example.com", "123456", 10*time.Minute))
	assert.True(t, mr.Exists("otp:ada@example.com"))

	t.Run("wrong code keeps the stored one", func(t *testing.T) {
		assert.ErrorIs(t, repo.Consume(ctx, "ada@example.com", "000000"), ErrOTPMismatch)
		assert.True(t, mr.Exists("otp:ada@example.com"))
	})

	t.Run("right code is consumed once", func(t *testing.T) {
		require.NoError(t, repo.Consume(ctx, "ada@example.com", "123456"))
		assert.ErrorIs(t, repo.Consume(ctx, "ada@example.com", "123456"), ErrOTPMismatch)
	})

	t.Run("expired code is rejected", func(t *testing.T) {
		require.NoError(t, repo.Save(ctx, "bob@example.com", "654321", time.Minute))
		mr.FastForward(2 * time.Minute)
		assert.ErrorIs(t, repo.Consume(ctx, "bob@example.com", "654321"), ErrOTPMismatch)
	})
}

func TestRateLimitRepository(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewRateLimitRepository(client)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		count, err := repo.Increment(ctx, "login:10.0.0.1", time.Minute)
		require.NoError(t, err)
		assert.Equal(t, i, count)
	}
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:login:10.0.0.1"))

	mr.FastForward(61 * time.Second)
	count, err := repo.Increment(ctx, "login:10.0.0.1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRateLimitRepositoryRestoresMissingExpiry(t *testing.T) {
	mr, client := newTestRedis(t)
	repo := NewRateLimitRepository(client)
	require.NoError(t, mr.Set("ratelimit:login:10.0.0.2", "7"))
	require.Zero(t, mr.TTL("ratelimit:login:10.0.0.2"))

	count, err := repo.Increment(context.Background(), "login:10.0.0.2", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, int64(8), count)
	assert.Equal(t, time.Minute, mr.TTL("ratelimit:login:10.0.0.2"))

	mr.FastForward(61 * time.Second)
	assert.False(t, mr.Exists("ratelimit:login:10.0.0.2"))
}

func TestNormalizePage(t *testing.T) {
	limit, offset := normalizePage(0, -4)
	assert.Equal(t, 20, limit)
	assert.Equal(t, 0, offset)

	limit, offset = normalizePage(50, 10)
	assert.Equal(t, 50, limit)
	assert.Equal(t, 10, offset)

	limit, _ = normalizePage(1000, 0)
	assert.Equal(t, 20, limit)
}
