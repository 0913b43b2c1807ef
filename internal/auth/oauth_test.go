package auth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "dietdash/internal/errors"
)

func TestOAuthProvider_Authenticate(t *testing.T) {
	var seen *Identity
	p := NewOAuthProvider(ProviderGitHub, func(ctx context.Context, identity *Identity) bool {
		seen = identity
		identity.ID = "stored-id"
		return true
	})

	identity, err := p.Authenticate(context.Background(), Input{Assertion: &Assertion{
		Provider: ProviderGitHub,
		Subject:  "42",
		Email:    "B@Y.com",
	}})
	require.NoError(t, err)

	assert.Same(t, seen, identity)
	assert.Equal(t, "stored-id", identity.ID)
	assert.Equal(t, "b@y.com", identity.Email)
	assert.Equal(t, "b@y.com", identity.Name)
	assert.Equal(t, ProviderGitHub, identity.Provider)
	assert.Equal(t, TypeOAuth, p.Type())
}

func TestOAuthProvider_FallbackID(t *testing.T) {
	p := NewOAuthProvider(ProviderGitHub, func(ctx context.Context, identity *Identity) bool { return true })

	identity, err := p.Authenticate(context.Background(), Input{Assertion: &Assertion{Subject: "42", Email: "b@y.com", Name: "Bee"}})
	require.NoError(t, err)
	assert.Equal(t, "github:42", identity.ID)
	assert.Equal(t, "Bee", identity.Name)
}

func TestOAuthProvider_Rejects(t *testing.T) {
	denied := NewOAuthProvider(ProviderGitHub, func(ctx context.Context, identity *Identity) bool { return false })
	_, err := denied.Authenticate(context.Background(), Input{Assertion: &Assertion{Email: "b@y.com"}})
	assert.ErrorIs(t, err, apperrors.ErrSignInDenied)

	p := NewOAuthProvider(ProviderGitHub, nil)
	_, err = p.Authenticate(context.Background(), Input{})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = p.Authenticate(context.Background(), Input{Assertion: &Assertion{Email: "  "}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = p.Authenticate(context.Background(), Input{Assertion: &Assertion{Provider: "google", Email: "b@y.com"}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestProviderSet(t *testing.T) {
	logger, _ := newTestLogger()
	set := NewProviderSet(
		NewOAuthProvider(ProviderGitHub, nil),
		NewCredentialsProvider(new(MockUserFinder), newTestHasher(t), logger),
	)

	assert.Equal(t, []string{"credentials", "github"}, set.IDs())

	p, ok := set.Get("github")
	require.True(t, ok)
	assert.Equal(t, TypeOAuth, p.Type())

	_, ok = set.Get("gitlab")
	assert.False(t, ok)
}
