package utils

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTRoundTrip(t *testing.T) {
	tok, err := GenerateJWT("payment", RoleService, "secret", time.Minute)
	require.NoError(t, err)

	claims, err := ParseJWT(tok, "secret")
	require.NoError(t, err)
	assert.Equal(t, "payment", claims.Subject)
	assert.Equal(t, RoleService, claims.Role)

	_, err = ParseJWT(tok, "other")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := GenerateJWT("payment", RoleService, "secret", -time.Minute)
	require.NoError(t, err)
	_, err = ParseJWT(expired, "secret")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenSourceReusesToken(t *testing.T) {
	ts := NewTokenSource("credit", "secret", time.Hour)
	a, err := ts.Token()
	require.NoError(t, err)
	b, err := ts.Token()
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCacheHelpers(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	ctx := context.Background()

	var out map[string]string
	found, err := GetCache(ctx, rdb, WalletKey("u1"), &out)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, SetCache(ctx, rdb, WalletKey("u1"), map[string]string{"balance": "10"}, time.Minute))
	found, err = GetCache(ctx, rdb, WalletKey("u1"), &out)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "10", out["balance"])

	require.NoError(t, DeleteCache(ctx, rdb, WalletKey("u1"), PaymentsKey("u1")))
	assert.False(t, mr.Exists(WalletKey("u1")))
}

func TestCacheNilClientIsMiss(t *testing.T) {
	var out any
	found, err := GetCache(context.Background(), nil, "k", &out)
	assert.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, SetCache(context.Background(), nil, "k", 1, time.Second))
	assert.NoError(t, DeleteCache(context.Background(), nil, "k"))
}
