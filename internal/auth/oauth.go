package auth

import (
	"context"
	"fmt"

	apperrors "dietdash/internal/errors"
	"dietdash/internal/model"
)

// OAuthProvider accepts identity assertions from an external provider that
// already completed its own protocol exchange.
type OAuthProvider struct {
	id       string
	callback SignInCallback
}

// NewOAuthProvider creates an OAuth strategy named id. callback runs on every
// accepted assertion before an identity is returned.
func NewOAuthProvider(id string, callback SignInCallback) *OAuthProvider {
	return &OAuthProvider{id: id, callback: callback}
}

func (p *OAuthProvider) ID() string         { return p.id }
func (p *OAuthProvider) Type() ProviderType { return TypeOAuth }

// Authenticate turns the assertion into an Identity after the sign-in
// callback approves it.
func (p *OAuthProvider) Authenticate(ctx context.Context, in Input) (*Identity, error) {
	a := in.Assertion
	if a == nil || model.NormalizeEmail(a.Email) == "" {
		return nil, fmt.Errorf("%w: assertion without email", apperrors.ErrInvalidInput)
	}
	if a.Provider != "" && a.Provider != p.id {
		return nil, fmt.Errorf("%w: assertion from %q", apperrors.ErrInvalidInput, a.Provider)
	}

	identity := &Identity{
		Email:    model.NormalizeEmail(a.Email),
		Name:     a.Name,
		Provider: p.id,
	}
	if identity.Name == "" {
		identity.Name = identity.Email
	}

	if p.callback != nil && !p.callback(ctx, identity) {
		return nil, apperrors.ErrSignInDenied
	}

	// no stored row to point at, fall back to the provider's own subject
	if identity.ID == "" {
		subject := a.Subject
		if subject == "" {
			subject = identity.Email
		}
		identity.ID = p.id + ":" + subject
	}
	return identity, nil
}
