package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"dietdash/internal/cache"
	apperrors "dietdash/internal/errors"
)

const (
	oauthStateKeyPrefix = "oauth:state:"
	// OAuthStateTTL bounds how long a user may take at the provider.
	OAuthStateTTL = 10 * time.Minute
)

// OAuthState is what the server remembers between sign-in initiation and the
// provider callback.
type OAuthState struct {
	Provider    string `json:"provider"`
	CallbackURL string `json:"callback_url"`
}

// StateStore keeps single-use OAuth state values.
type StateStore interface {
	Save(ctx context.Context, state OAuthState) (string, error)
	Consume(ctx context.Context, id string) (*OAuthState, error)
}

// RedisStateStore stores OAuth state in Redis.
type RedisStateStore struct {
	cache *cache.Client
}

// Ensure RedisStateStore implements StateStore
var _ StateStore = (*RedisStateStore)(nil)

// NewStateStore creates a new Redis-backed state store.
func NewStateStore(cache *cache.Client) *RedisStateStore {
	return &RedisStateStore{cache: cache}
}

// Save stores state under a fresh random id and returns the id.
func (s *RedisStateStore) Save(ctx context.Context, state OAuthState) (string, error) {
	id, err := randomToken(32)
	if err != nil {
		return "", err
	}
	payload, err := json.Marshal(state)
	if err != nil {
		return "", fmt.Errorf("marshal oauth state: %w", err)
	}
	ok, err := s.cache.SetNX(ctx, oauthStateKeyPrefix+id, payload, OAuthStateTTL)
	if err != nil {
		return "", fmt.Errorf("store oauth state: %w", err)
	}
	if !ok {
		return "", errors.New("oauth state id collision")
	}
	return id, nil
}

// Consume returns the state and deletes it, so a second call with the same id
// fails with ErrOAuthState.
func (s *RedisStateStore) Consume(ctx context.Context, id string) (*OAuthState, error) {
	if id == "" {
		return nil, apperrors.ErrOAuthState
	}
	data, err := s.cache.Take(ctx, oauthStateKeyPrefix+id)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, apperrors.ErrOAuthState
		}
		return nil, fmt.Errorf("load oauth state: %w", err)
	}

	var state OAuthState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrOAuthState, err)
	}
	return &state, nil
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
