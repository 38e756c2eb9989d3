package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *SessionRepository) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, NewSessionRepository(client, 30*time.Minute)
}

func TestSessionRepository_AddAndGet(t *testing.T) {
	mr, repo := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.AddToken(ctx, "op-1", "tok"))
	got, err := repo.GetToken(ctx, "op-1")
	require.NoError(t, err)
	assert.Equal(t, "tok", got)
	assert.Equal(t, 30*time.Minute, mr.TTL(SessionTokenPrefix+"op-1"))
}

func TestSessionRepository_Missing(t *testing.T) {
	_, repo := setupTestRedis(t)
	ctx := context.Background()

	_, err := repo.GetToken(ctx, "nobody")
	assert.ErrorIs(t, err, ErrTokenNotFound)
	assert.ErrorIs(t, repo.ExtendToken(ctx, "nobody"), ErrTokenNotFound)
}

func TestSessionRepository_ExtendAndExpire(t *testing.T) {
	mr, repo := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.AddToken(ctx, "op-1", "tok"))
	mr.FastForward(20 * time.Minute)
	require.NoError(t, repo.ExtendToken(ctx, "op-1"))
	assert.Equal(t, 30*time.Minute, mr.TTL(SessionTokenPrefix+"op-1"))

	mr.FastForward(31 * time.Minute)
	_, err := repo.GetToken(ctx, "op-1")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestSessionRepository_Delete(t *testing.T) {
	_, repo := setupTestRedis(t)
	ctx := context.Background()

	require.NoError(t, repo.AddToken(ctx, "op-1", "tok"))
	require.NoError(t, repo.DeleteToken(ctx, "op-1"))
	_, err := repo.GetToken(ctx, "op-1")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestSessionRepository_Unavailable(t *testing.T) {
	mr, repo := setupTestRedis(t)
	mr.Close()

	err := repo.AddToken(context.Background(), "op-1", "tok")
	assert.ErrorIs(t, err, ErrRedisUnavailable)
}
