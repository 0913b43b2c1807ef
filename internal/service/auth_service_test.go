package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"dietdash/internal/auth"
	apperrors "dietdash/internal/errors"
	"dietdash/internal/model"
	"dietdash/internal/repository"
)

func TestAuthService_RegisterThenLogin(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	user, err := env.service.Register(ctx, "a@x.com", "pw123", "Alice")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, "Alice", user.Name)
	assert.Equal(t, model.ProviderCredentials, user.Provider)
	require.True(t, user.HasPassword())
	assert.NotEqual(t, "pw123", *user.PasswordHash)

	result, err := env.service.Login(ctx, "a@x.com", "pw123")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, user.ID.String(), result.User.ID)
	assert.Equal(t, "Alice", result.User.Name)

	session, err := env.service.Session([]string{result.Token})
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", session.User.Email)
	assert.Equal(t, user.ID.String(), session.User.ID)
}

func TestAuthService_RegisterDefaultsNameToEmail(t *testing.T) {
	env := newTestEnv(t)

	user, err := env.service.Register(context.Background(), " Carol@X.com ", "secret", "")
	require.NoError(t, err)
	assert.Equal(t, "carol@x.com", user.Email)
	assert.Equal(t, "carol@x.com", user.Name)

	user, err = env.service.Register(context.Background(), "b@x.com", "secret", "   ")
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", user.Name)

	stored, err := env.users.FindByEmail(context.Background(), "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, "b@x.com", stored.Name)

	user, err = env.service.Register(context.Background(), "d@x.com", "secret", "  Dee ")
	require.NoError(t, err)
	assert.Equal(t, "Dee", user.Name)
}

func TestAuthService_RegisterPasswordTooLong(t *testing.T) {
	env := newTestEnv(t)

	// 40 runes, 80 bytes
	_, err := env.service.Register(context.Background(), "a@x.com", strings.Repeat("é", 40), "Alice")
	assert.ErrorIs(t, err, apperrors.ErrPasswordTooLong)
	assert.NotErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Equal(t, int64(0), env.countUsers(t))
}

func TestAuthService_RegisterDuplicate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.Register(ctx, "a@x.com", "pw123", "Alice")
	require.NoError(t, err)

	for _, email := range []string{"a@x.com", "A@X.COM"} {
		_, err = env.service.Register(ctx, email, "other", "Mallory")
		assert.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
	}
	assert.Equal(t, int64(1), env.countUsers(t))

	// the original password still works
	_, err = env.service.Login(ctx, "a@x.com", "pw123")
	assert.NoError(t, err)
}

func TestAuthService_RegisterInvalidInput(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"missing email", "", "pw123"},
		{"blank email", "   ", "pw123"},
		{"missing password", "a@x.com", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.service.Register(context.Background(), tt.email, tt.password, "Alice")
			assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
		})
	}
	assert.Equal(t, int64(0), env.countUsers(t))
}

func TestAuthService_RegisterStoreErrors(t *testing.T) {
	hasher, err := auth.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	ctx := context.Background()

	t.Run("lookup fails", func(t *testing.T) {
		repo := new(MockUserRepository)
		repo.On("ExistsByEmail", ctx, "a@x.com").Return(false, errors.New("connection refused"))
		svc := NewAuthService(repo, hasher, auth.NewProviderSet(), nil, nil, nil, newTestLogger())

		_, err := svc.Register(ctx, "a@x.com", "pw123", "Alice")
		assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
		repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("lost race", func(t *testing.T) {
		repo := new(MockUserRepository)
		repo.On("ExistsByEmail", ctx, "a@x.com").Return(false, nil)
		repo.On("Insert", ctx, mock.AnythingOfType("*model.User")).Return(repository.ErrDuplicateEmail)
		svc := NewAuthService(repo, hasher, auth.NewProviderSet(), nil, nil, nil, newTestLogger())

		_, err := svc.Register(ctx, "a@x.com", "pw123", "Alice")
		assert.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
		repo.AssertExpectations(t)
	})

	t.Run("insert fails", func(t *testing.T) {
		repo := new(MockUserRepository)
		repo.On("ExistsByEmail", ctx, "a@x.com").Return(false, nil)
		repo.On("Insert", ctx, mock.AnythingOfType("*model.User")).Return(errors.New("disk full"))
		svc := NewAuthService(repo, hasher, auth.NewProviderSet(), nil, nil, nil, newTestLogger())

		_, err := svc.Register(ctx, "a@x.com", "pw123", "Alice")
		assert.ErrorIs(t, err, apperrors.ErrStoreUnavailable)
	})
}

func TestAuthService_LoginFailuresLookTheSame(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.Register(ctx, "a@x.com", "pw123", "Alice")
	require.NoError(t, err)

	_, wrongPassword := env.service.Login(ctx, "a@x.com", "wrong")
	_, noUser := env.service.Login(ctx, "nobody@x.com", "pw123")

	require.Error(t, wrongPassword)
	require.Error(t, noUser)
	assert.ErrorIs(t, wrongPassword, apperrors.ErrAuthFailure)
	assert.ErrorIs(t, noUser, apperrors.ErrAuthFailure)
	assert.Equal(t, apperrors.PublicAuthFailureMessage, wrongPassword.Error())
	assert.Equal(t, wrongPassword.Error(), noUser.Error())
}

func TestAuthService_LoginRejectsOAuthAccount(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.users.InsertIfAbsent(ctx, &model.User{Email: "b@y.com", Name: "Bee", Provider: auth.ProviderGitHub})
	require.NoError(t, err)

	_, err = env.service.Login(ctx, "b@y.com", "anything")
	assert.ErrorIs(t, err, apperrors.ErrAuthFailure)
}

func TestAuthService_OAuthProvisionsOnce(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	signIn := func() *LoginResult {
		redirect, err := env.service.BeginOAuth(ctx, auth.ProviderGitHub, "/?view=week")
		require.NoError(t, err)
		assert.Contains(t, redirect, "state="+env.states.last)

		result, callbackURL, err := env.service.CompleteOAuth(ctx, auth.ProviderGitHub, "code", env.states.last)
		require.NoError(t, err)
		assert.Equal(t, "/?view=week", callbackURL)
		return result
	}

	first := signIn()
	assert.Equal(t, "b@y.com", first.User.Email)
	assert.Equal(t, "Bee", first.User.Name)
	assert.Equal(t, int64(1), env.countUsers(t))

	stored, err := env.users.FindByEmail(ctx, "b@y.com")
	require.NoError(t, err)
	assert.Equal(t, stored.ID.String(), first.User.ID)
	assert.Equal(t, auth.ProviderGitHub, stored.Provider)
	assert.False(t, stored.HasPassword())

	env.client.assertion.Name = "Renamed Bee"
	second := signIn()
	assert.Equal(t, first.User.ID, second.User.ID)
	assert.Equal(t, "Bee", second.User.Name)
	assert.Equal(t, int64(1), env.countUsers(t))
	assert.Zero(t, env.queue.Len())
}

func TestAuthService_OAuthStateIsSingleUse(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.BeginOAuth(ctx, auth.ProviderGitHub, "/")
	require.NoError(t, err)
	state := env.states.last

	_, _, err = env.service.CompleteOAuth(ctx, auth.ProviderGitHub, "code", state)
	require.NoError(t, err)

	_, _, err = env.service.CompleteOAuth(ctx, auth.ProviderGitHub, "code", state)
	assert.ErrorIs(t, err, apperrors.ErrOAuthState)

	_, _, err = env.service.CompleteOAuth(ctx, auth.ProviderGitHub, "code", "forged")
	assert.ErrorIs(t, err, apperrors.ErrOAuthState)
}

func TestAuthService_OAuthExchangeFailure(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.client.exchangeErr = errors.New("bad_verification_code")

	_, err := env.service.BeginOAuth(ctx, auth.ProviderGitHub, "/")
	require.NoError(t, err)

	_, _, err = env.service.CompleteOAuth(ctx, auth.ProviderGitHub, "code", env.states.last)
	require.Error(t, err)
	assert.Equal(t, int64(0), env.countUsers(t))
}

func TestAuthService_UnknownProvider(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.service.BeginOAuth(ctx, "gitlab", "/")
	assert.ErrorIs(t, err, apperrors.ErrUnknownProvider)

	_, err = env.service.BeginOAuth(ctx, model.ProviderCredentials, "/")
	assert.ErrorIs(t, err, apperrors.ErrUnknownProvider)

	_, _, err = env.service.CompleteOAuth(ctx, "gitlab", "code", "state")
	assert.ErrorIs(t, err, apperrors.ErrUnknownProvider)
}

func TestAuthService_Providers(t *testing.T) {
	env := newTestEnv(t)

	providers := env.service.Providers()
	require.Len(t, providers, 2)
	assert.Equal(t, ProviderInfo{ID: "credentials", Type: auth.TypeCredentials}, providers[0])
	assert.Equal(t, ProviderInfo{ID: "github", Type: auth.TypeOAuth, SignInURL: "/api/auth/signin/github"}, providers[1])
}

func TestAuthService_SessionRejectsGarbage(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.service.Session([]string{"not-a-token"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidSession)
}
