package auth

import (
	"context"
	"sort"
)

// ProviderType distinguishes the two login strategies.
type ProviderType string

const (
	TypeCredentials ProviderType = "credentials"
	TypeOAuth       ProviderType = "oauth"
)

// Input is a login attempt. Credentials strategies read Email and Password;
// OAuth strategies read Assertion.
type Input struct {
	Email     string
	Password  string
	Assertion *Assertion
}

// Provider is one login strategy.
type Provider interface {
	ID() string
	Type() ProviderType
	Authenticate(ctx context.Context, in Input) (*Identity, error)
}

// SignInCallback runs after an external identity is accepted and decides
// whether sign-in may continue. It may resolve identity.ID to a stored user.
type SignInCallback func(ctx context.Context, identity *Identity) bool

// ProviderSet holds the configured providers. It is built once at startup.
type ProviderSet struct {
	providers map[string]Provider
}

// NewProviderSet builds a set from providers.
func NewProviderSet(providers ...Provider) *ProviderSet {
	s := &ProviderSet{providers: make(map[string]Provider, len(providers))}
	for _, p := range providers {
		s.Register(p)
	}
	return s
}

// Register adds or replaces a provider.
func (s *ProviderSet) Register(p Provider) {
	s.providers[p.ID()] = p
}

// Get looks a provider up by id.
func (s *ProviderSet) Get(id string) (Provider, bool) {
	p, ok := s.providers[id]
	return p, ok
}

// IDs returns the provider ids in a stable order.
func (s *ProviderSet) IDs() []string {
	ids := make([]string, 0, len(s.providers))
	for id := range s.providers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
