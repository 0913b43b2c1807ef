package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	apperrors "dietdash/internal/errors"
)

const (
	// SessionCookieName carries the session token between requests.
	SessionCookieName = "session_token"
	// DefaultSessionTTL mirrors a 30 day session.
	DefaultSessionTTL = 30 * 24 * time.Hour
	// DefaultUpdateAge is how old a token gets before it is reissued.
	DefaultUpdateAge = 24 * time.Hour

	sessionIssuer = "dietdash"
)

// Claims represents session JWT claims. The subject is the user ID.
type Claims struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Provider string `json:"provider,omitempty"`
	jwt.RegisteredClaims
}

// Session is what the rest of the application sees of a valid token.
type Session struct {
	User      Identity  `json:"user"`
	IssuedAt  time.Time `json:"-"`
	ExpiresAt time.Time `json:"expires"`
}

// SessionManager issues and validates signed session tokens. Validity is
// signature plus expiry only; there is no server-side session store.
type SessionManager struct {
	secret    []byte
	ttl       time.Duration
	updateAge time.Duration
	now       func() time.Time
}

// NewSessionManager creates a session manager with the given secret and lifetimes.
func NewSessionManager(secret string, ttl, updateAge time.Duration) *SessionManager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if updateAge <= 0 {
		updateAge = DefaultUpdateAge
	}
	return &SessionManager{
		secret:    []byte(secret),
		ttl:       ttl,
		updateAge: updateAge,
		now:       time.Now,
	}
}

// TTL returns the session lifetime.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue mints a token for identity.
func (m *SessionManager) Issue(identity Identity) (string, time.Time, error) {
	if identity.ID == "" {
		return "", time.Time{}, errors.New("identity has no id")
	}

	now := m.now()
	expiresAt := now.Add(m.ttl)
	claims := &Claims{
		Email:    identity.Email,
		Name:     identity.Name,
		Provider: identity.Provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.ID,
			Issuer:    sessionIssuer,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return token, expiresAt, nil
}

// Parse validates token and reconstructs the session. Every failure maps to
// ErrInvalidSession.
// ParseFirst returns the session of the first token in tokens that Parse
// accepts. A stale cookie does not hide a valid bearer token.
func (m *SessionManager) ParseFirst(tokens []string) (*Session, error) {
	err := apperrors.ErrInvalidSession
	for _, token := range tokens {
		session, parseErr := m.Parse(token)
		if parseErr == nil {
			return session, nil
		}
		err = parseErr
	}
	return nil, err
}

func (m *SessionManager) Parse(tokenString string) (*Session, error) {
	if tokenString == "" {
		return nil, apperrors.ErrInvalidSession
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithIssuer(sessionIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrInvalidSession, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, apperrors.ErrInvalidSession
	}

	session := &Session{
		User: Identity{
			ID:       claims.Subject,
			Email:    claims.Email,
			Name:     claims.Name,
			Provider: claims.Provider,
		},
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if claims.IssuedAt != nil {
		session.IssuedAt = claims.IssuedAt.Time
	}
	return session, nil
}

// NeedsRenewal reports whether a valid session is old enough to be reissued.
func (m *SessionManager) NeedsRenewal(s *Session) bool {
	if s == nil || s.IssuedAt.IsZero() {
		return false
	}
	return m.now().Sub(s.IssuedAt) >= m.updateAge
}

// Renew issues a fresh token for the session's user.
func (m *SessionManager) Renew(s *Session) (string, time.Time, error) {
	return m.Issue(s.User)
}
