package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dietdash/internal/cache"
	apperrors "dietdash/internal/errors"
)

func newRedisStateStore(t *testing.T) (*RedisStateStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := cache.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = client.Close() })
	return NewStateStore(client), mr
}

func TestRedisStateStore_SingleUse(t *testing.T) {
	store, mr := newRedisStateStore(t)
	ctx := context.Background()

	want := OAuthState{Provider: ProviderGitHub, CallbackURL: "/reports?week=3"}
	id, err := store.Save(ctx, want)
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, OAuthStateTTL, mr.TTL(oauthStateKeyPrefix+id))

	got, err := store.Consume(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, want, *got)
	assert.False(t, mr.Exists(oauthStateKeyPrefix+id))

	// replaying the callback fails
	_, err = store.Consume(ctx, id)
	assert.ErrorIs(t, err, apperrors.ErrOAuthState)
}

func TestRedisStateStore_DistinctIDs(t *testing.T) {
	store, _ := newRedisStateStore(t)
	ctx := context.Background()

	a, err := store.Save(ctx, OAuthState{Provider: ProviderGitHub, CallbackURL: "/"})
	require.NoError(t, err)
	b, err := store.Save(ctx, OAuthState{Provider: ProviderGitHub, CallbackURL: "/"})
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestRedisStateStore_Expires(t *testing.T) {
	store, mr := newRedisStateStore(t)
	ctx := context.Background()

	id, err := store.Save(ctx, OAuthState{Provider: ProviderGitHub, CallbackURL: "/"})
	require.NoError(t, err)

	mr.FastForward(OAuthStateTTL + time.Second)

	_, err = store.Consume(ctx, id)
	assert.ErrorIs(t, err, apperrors.ErrOAuthState)
}

func TestRedisStateStore_UnknownAndCorrupt(t *testing.T) {
	store, mr := newRedisStateStore(t)
	ctx := context.Background()

	_, err := store.Consume(ctx, "never-issued")
	assert.ErrorIs(t, err, apperrors.ErrOAuthState)

	require.NoError(t, mr.Set(oauthStateKeyPrefix+"corrupt", "{not json"))
	_, err = store.Consume(ctx, "corrupt")
	assert.ErrorIs(t, err, apperrors.ErrOAuthState)
	assert.False(t, mr.Exists(oauthStateKeyPrefix+"corrupt"))
}

func TestRedisStateStore_Outage(t *testing.T) {
	store, mr := newRedisStateStore(t)
	ctx := context.Background()

	id, err := store.Save(ctx, OAuthState{Provider: ProviderGitHub, CallbackURL: "/"})
	require.NoError(t, err)
	mr.Close()

	_, err = store.Save(ctx, OAuthState{Provider: ProviderGitHub, CallbackURL: "/"})
	assert.Error(t, err)

	// an outage is not reported as a bad state
	_, err = store.Consume(ctx, id)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrOAuthState)
}

func TestRedisStateStore_WithoutRedis(t *testing.T) {
	store := NewStateStore(nil)
	ctx := context.Background()

	_, err := store.Save(ctx, OAuthState{Provider: ProviderGitHub, CallbackURL: "/"})
	assert.Error(t, err)

	_, err = store.Consume(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrOAuthState)

	_, err = store.Consume(ctx, "some-id")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, apperrors.ErrOAuthState)
}

func TestRandomToken(t *testing.T) {
	a, err := randomToken(32)
	assert.NoError(t, err)
	b, err := randomToken(32)
	assert.NoError(t, err)

	assert.Len(t, a, 43)
	assert.NotEqual(t, a, b)
}
