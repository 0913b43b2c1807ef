package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"dietdash/internal/auth"
	apperrors "dietdash/internal/errors"
	"dietdash/internal/model"
	"dietdash/internal/repository"
)

// LoginResult is a freshly issued session.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      *auth.Identity
}

// ProviderInfo describes a configured login strategy.
type ProviderInfo struct {
	ID        string            `json:"id"`
	Type      auth.ProviderType `json:"type"`
	SignInURL string            `json:"signin_url,omitempty"`
}

// AuthService handles registration, sign-in and session lookups.
type AuthService interface {
	Register(ctx context.Context, email, password, name string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*LoginResult, error)
	Providers() []ProviderInfo
	BeginOAuth(ctx context.Context, providerID, callbackURL string) (redirectURL string, err error)
	CompleteOAuth(ctx context.Context, providerID, code, state string) (result *LoginResult, callbackURL string, err error)
	Session(tokens []string) (*auth.Session, error)
}

type authService struct {
	users     repository.UserRepository
	hasher    *auth.Hasher
	providers *auth.ProviderSet
	sessions  *auth.SessionManager
	states    auth.StateStore
	clients   map[string]auth.OAuthClient
	logger    *slog.Logger
}

// NewAuthService creates a new authentication service. clients holds the
// protocol clients of the OAuth providers in providers, keyed by provider id.
func NewAuthService(
	users repository.UserRepository,
	hasher *auth.Hasher,
	providers *auth.ProviderSet,
	sessions *auth.SessionManager,
	states auth.StateStore,
	clients map[string]auth.OAuthClient,
	logger *slog.Logger,
) AuthService {
	if clients == nil {
		clients = map[string]auth.OAuthClient{}
	}
	return &authService{
		users:     users,
		hasher:    hasher,
		providers: providers,
		sessions:  sessions,
		states:    states,
		clients:   clients,
		logger:    logger,
	}
}

// Register creates a credentials account. It does not sign the user in.
func (s *authService) Register(ctx context.Context, email, password, name string) (*model.User, error) {
	email = model.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperrors.ErrInvalidInput
	}
	if len(password) > auth.MaxPasswordBytes {
		return nil, apperrors.ErrPasswordTooLong
	}

	exists, err := s.users.ExistsByEmail(ctx, email)
	if err != nil {
		return nil, apperrors.StoreUnavailable("check existing user", err)
	}
	if exists {
		return nil, apperrors.ErrUserAlreadyExists
	}

	digest, err := s.hasher.Hash(password)
	if err != nil {
		return nil, err
	}

	if name = strings.TrimSpace(name); name == "" {
		name = email
	}
	user := &model.User{
		Email:        email,
		Name:         name,
		PasswordHash: &digest,
		Provider:     model.ProviderCredentials,
	}
	if err := s.users.Insert(ctx, user); err != nil {
		// lost a race with a concurrent registration
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, apperrors.ErrUserAlreadyExists
		}
		return nil, apperrors.StoreUnavailable("create user", err)
	}

	s.logger.InfoContext(ctx, "user registered", "user_id", user.ID, "email", user.Email)
	return user, nil
}

// Login authenticates with the credentials provider and issues a session.
func (s *authService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	provider, ok := s.providers.Get(model.ProviderCredentials)
	if !ok {
		return nil, apperrors.ErrUnknownProvider
	}
	identity, err := provider.Authenticate(ctx, auth.Input{Email: email, Password: password})
	if err != nil {
		return nil, err
	}
	return s.issue(identity)
}

func (s *authService) Providers() []ProviderInfo {
	ids := s.providers.IDs()
	infos := make([]ProviderInfo, 0, len(ids))
	for _, id := range ids {
		p, _ := s.providers.Get(id)
		info := ProviderInfo{ID: id, Type: p.Type()}
		if p.Type() == auth.TypeOAuth {
			info.SignInURL = "/api/auth/signin/" + id
		}
		infos = append(infos, info)
	}
	return infos
}

// BeginOAuth stores a single-use state and returns the provider's authorize URL.
func (s *authService) BeginOAuth(ctx context.Context, providerID, callbackURL string) (string, error) {
	client, err := s.oauthClient(providerID)
	if err != nil {
		return "", err
	}
	state, err := s.states.Save(ctx, auth.OAuthState{Provider: providerID, CallbackURL: callbackURL})
	if err != nil {
		return "", fmt.Errorf("save oauth state: %w", err)
	}
	return client.AuthCodeURL(state), nil
}

// CompleteOAuth finishes the authorization-code flow and issues a session.
// The returned callback URL is the one stored by BeginOAuth.
func (s *authService) CompleteOAuth(ctx context.Context, providerID, code, stateID string) (*LoginResult, string, error) {
	client, err := s.oauthClient(providerID)
	if err != nil {
		return nil, "", err
	}

	state, err := s.states.Consume(ctx, stateID)
	if err != nil {
		return nil, "", err
	}
	if state.Provider != providerID {
		return nil, "", fmt.Errorf("%w: issued for %q", apperrors.ErrOAuthState, state.Provider)
	}
	if code == "" {
		return nil, state.CallbackURL, fmt.Errorf("%w: missing code", apperrors.ErrInvalidInput)
	}

	token, err := client.Exchange(ctx, code)
	if err != nil {
		return nil, state.CallbackURL, fmt.Errorf("exchange %s code: %w", providerID, err)
	}
	assertion, err := client.FetchAssertion(ctx, token)
	if err != nil {
		return nil, state.CallbackURL, err
	}

	provider, _ := s.providers.Get(providerID)
	identity, err := provider.Authenticate(ctx, auth.Input{Assertion: assertion})
	if err != nil {
		return nil, state.CallbackURL, err
	}

	result, err := s.issue(identity)
	if err != nil {
		return nil, state.CallbackURL, err
	}
	return result, state.CallbackURL, nil
}

// Session validates a token.
func (s *authService) Session(tokens []string) (*auth.Session, error) {
	return s.sessions.ParseFirst(tokens)
}

func (s *authService) oauthClient(providerID string) (auth.OAuthClient, error) {
	provider, ok := s.providers.Get(providerID)
	if !ok || provider.Type() != auth.TypeOAuth {
		return nil, apperrors.ErrUnknownProvider
	}
	client, ok := s.clients[providerID]
	if !ok {
		return nil, apperrors.ErrUnknownProvider
	}
	return client, nil
}

func (s *authService) issue(identity *auth.Identity) (*LoginResult, error) {
	token, expiresAt, err := s.sessions.Issue(*identity)
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, User: identity}, nil
}
