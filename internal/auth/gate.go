package auth

import (
	"log/slog"
	"net/http"
	"net/url"

	"github.com/labstack/echo/v4"
)

// Status is the gate's view of the caller's session.
type Status int

const (
	// StatusLoading means validation could not complete; nothing protected is rendered.
	StatusLoading Status = iota
	StatusAuthenticated
	StatusUnauthenticated
)

func (s Status) String() string {
	switch s {
	case StatusAuthenticated:
		return "authenticated"
	case StatusUnauthenticated:
		return "unauthenticated"
	default:
		return "loading"
	}
}

const sessionContextKey = "session"

const loadingPage = `<!doctype html><html><head><meta charset="utf-8"><title>Loading</title></head><body><p>Loading...</p></body></html>`

// Gate guards protected views.
type Gate struct {
	sessions     *SessionManager
	loginPath    string
	cookieSecure bool
	logger       *slog.Logger
}

// NewGate creates a gate that sends unauthenticated callers to loginPath.
func NewGate(sessions *SessionManager, loginPath string, cookieSecure bool, logger *slog.Logger) *Gate {
	return &Gate{
		sessions:     sessions,
		loginPath:    loginPath,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

// Resolve determines the session status of the request.
func (g *Gate) Resolve(c echo.Context) (Status, *Session) {
	if c.Request().Context().Err() != nil {
		return StatusLoading, nil
	}

	tokens := TokensFromRequest(c.Request())
	if len(tokens) == 0 {
		return StatusUnauthenticated, nil
	}
	session, err := g.sessions.ParseFirst(tokens)
	if err != nil {
		g.logger.DebugContext(c.Request().Context(), "session rejected", "error", err)
		return StatusUnauthenticated, nil
	}
	return StatusAuthenticated, session
}

// Guard wraps render so it only runs for authenticated callers.
func (g *Gate) Guard(render echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		status, session := g.Resolve(c)
		switch status {
		case StatusAuthenticated:
			c.Set(sessionContextKey, session)
			g.renew(c, session)
			return render(c)
		case StatusUnauthenticated:
			target := g.loginPath + "?callbackUrl=" + url.QueryEscape(c.Request().URL.RequestURI())
			return c.Redirect(http.StatusFound, target)
		default:
			c.Response().Header().Set("Refresh", "1")
			c.Response().Header().Set("Cache-Control", "no-store")
			return c.HTML(http.StatusAccepted, loadingPage)
		}
	}
}

// Middleware is Guard as echo middleware.
func (g *Gate) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return g.Guard(next)
	}
}

func (g *Gate) renew(c echo.Context, session *Session) {
	if !g.sessions.NeedsRenewal(session) {
		return
	}
	token, expiresAt, err := g.sessions.Renew(session)
	if err != nil {
		g.logger.WarnContext(c.Request().Context(), "session renewal failed", "user_id", session.User.ID, "error", err)
		return
	}
	c.SetCookie(SessionCookie(token, expiresAt, g.cookieSecure))
}

// SessionFromContext returns the session stored by the gate or the API
// session middleware.
func SessionFromContext(c echo.Context) (*Session, bool) {
	session, ok := c.Get(sessionContextKey).(*Session)
	return session, ok && session != nil
}

// SetSession stores session in the echo context.
func SetSession(c echo.Context, session *Session) {
	c.Set(sessionContextKey, session)
}
