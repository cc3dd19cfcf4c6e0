package revocation

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exerciseDenylist(t *testing.T, d Denylist) {
	t.Helper()
	ctx := context.Background()

	revoked, err := d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))

	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = d.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, "already-expired", time.Now().Add(-time.Minute)))
	revoked, err = d.IsRevoked(ctx, "already-expired")
	require.NoError(t, err)
	assert.False(t, revoked, "expired tokens need no entry")

	assert.Error(t, d.Revoke(ctx, "", time.Now().Add(time.Hour)))

	revoked, err = d.IsRevoked(ctx, "")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestMemory(t *testing.T) {
	m, err := NewMemory(2 * time.Hour)
	require.NoError(t, err)
	defer m.Close()

	exerciseDenylist(t, m)
}

func TestMemory_TokenOutlivesWindow(t *testing.T) {
	m, err := NewMemory(time.Hour)
	require.NoError(t, err)
	defer m.Close()

	err = m.Revoke(context.Background(), "long-lived", time.Now().Add(3*time.Hour))
	require.ErrorIs(t, err, ErrBeyondWindow)

	revoked, err := m.IsRevoked(context.Background(), "long-lived")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestNewMemory_RejectsEmptyWindow(t *testing.T) {
	_, err := NewMemory(0)
	assert.Error(t, err)
}

func TestRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer r.Close()

	exerciseDenylist(t, r)

	assert.True(t, mr.Exists(redisKeyPrefix+"jti-1"))
	ttl := mr.TTL(redisKeyPrefix + "jti-1")
	assert.Greater(t, ttl, 59*time.Minute)

	mr.FastForward(2 * time.Hour)
	revoked, err := r.IsRevoked(context.Background(), "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked, "entry must expire with the token")
}

func TestNewRedisFromURL(t *testing.T) {
	mr := miniredis.RunT(t)

	r, err := NewRedisFromURL(context.Background(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	defer r.Close()

	_, err = NewRedisFromURL(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestRedis_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	r := NewRedis(redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1}))
	defer r.Close()
	mr.Close()

	_, err := r.IsRevoked(context.Background(), "jti-1")
	assert.Error(t, err)
}
