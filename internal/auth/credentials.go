package auth

import (
	"context"
	"errors"
	"log/slog"

	apperrors "dietdash/internal/errors"
	"dietdash/internal/model"
	"dietdash/internal/repository"
)

// UserFinder is the slice of the credential store the credentials strategy needs.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// CredentialsProvider authenticates email and password against the store.
type CredentialsProvider struct {
	users  UserFinder
	hasher *Hasher
	logger *slog.Logger
}

// NewCredentialsProvider creates the credentials strategy.
func NewCredentialsProvider(users UserFinder, hasher *Hasher, logger *slog.Logger) *CredentialsProvider {
	return &CredentialsProvider{users: users, hasher: hasher, logger: logger}
}

func (p *CredentialsProvider) ID() string         { return model.ProviderCredentials }
func (p *CredentialsProvider) Type() ProviderType { return TypeCredentials }

// Authenticate verifies in.Email and in.Password. "No such user" and "bad
// password" both surface as *AuthFailure with the same message.
func (p *CredentialsProvider) Authenticate(ctx context.Context, in Input) (*Identity, error) {
	email := model.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperrors.ErrInvalidInput
	}

	user, err := p.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			p.hasher.VerifyDummy(in.Password)
			return nil, p.fail(ctx, email, apperrors.ReasonNoSuchUser)
		}
		p.logger.ErrorContext(ctx, "credentials lookup failed", "email", email, "error", err)
		return nil, apperrors.StoreUnavailable("find user by email", err)
	}

	var digest string
	if user.HasPassword() {
		digest = *user.PasswordHash
	}
	if !p.hasher.Verify(in.Password, digest) {
		return nil, p.fail(ctx, email, apperrors.ReasonBadPassword)
	}

	return &Identity{
		ID:       user.ID.String(),
		Email:    user.Email,
		Name:     user.DisplayName(),
		Provider: model.ProviderCredentials,
	}, nil
}

func (p *CredentialsProvider) fail(ctx context.Context, email string, reason apperrors.AuthFailureReason) error {
	p.logger.WarnContext(ctx, "credentials login rejected", "email", email, "reason", reason.String())
	return apperrors.NewAuthFailure(reason)
}
