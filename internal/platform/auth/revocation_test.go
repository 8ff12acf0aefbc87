package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRevocationStore(t *testing.T) (*RedisRevocationStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisRevocationStore(client), mr
}

func TestRedisRevocationStore_RevokeAndCheck(t *testing.T) {
	store, mr := newRevocationStore(t)
	ctx := context.Background()

	revoked, err := store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, store.Revoke(ctx, "jti-1", time.Now().Add(time.Hour)))

	revoked, err = store.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)

	ttl := mr.TTL(revokedKeyPrefix + "jti-1")
	assert.Greater(t, ttl, 59*time.Minute)
	assert.LessOrEqual(t, ttl, time.Hour)
}

func TestRedisRevocationStore_ExpiresWithToken(t *testing.T) {
	store, mr := newRevocationStore(t)
	ctx := context.Background()

	require.NoError(t, store.Revoke(ctx, "jti-2", time.Now().Add(10*time.Minute)))
	mr.FastForward(11 * time.Minute)

	revoked, err := store.IsRevoked(ctx, "jti-2")
	require.NoError(t, err)
	assert.False(t, revoked, "revocation should lapse once the token would have expired")
}

func TestRedisRevocationStore_AlreadyExpired(t *testing.T) {
	store, mr := newRevocationStore(t)

	require.NoError(t, store.Revoke(context.Background(), "jti-3", time.Now().Add(-time.Minute)))
	assert.False(t, mr.Exists(revokedKeyPrefix+"jti-3"))
}

func TestRedisRevocationStore_Unavailable(t *testing.T) {
	store, mr := newRevocationStore(t)
	mr.Close()

	_, err := store.IsRevoked(context.Background(), "jti-4")
	assert.Error(t, err)
}

func TestTokenResolver_RevokedInRedis(t *testing.T) {
	store, _ := newRevocationStore(t)
	store.now = func() time.Time { return testNow }
	resolver := newTestResolver(store)

	token := mintToken(t, validClaims(), testSecret)
	req := newBearerRequest(token)

	_, err := resolver.Resolve(context.Background(), req)
	require.NoError(t, err)

	require.NoError(t, store.Revoke(context.Background(), "jti-1", testNow.Add(time.Hour)))

	_, err = resolver.Resolve(context.Background(), newBearerRequest(token))
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
