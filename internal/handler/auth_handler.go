package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"dietdash/internal/auth"
	apperrors "dietdash/internal/errors"
	"dietdash/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService  service.AuthService
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService, cookieSecure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, cookieSecure: cookieSecure, logger: logger}
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
	Name     string `json:"name" form:"name"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email" form:"email" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

// LoginResponse represents a successful sign-in.
type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      auth.Identity `json:"user"`
}

// SessionResponse is the current session, or an empty object without one.
type SessionResponse struct {
	User    *auth.Identity `json:"user,omitempty"`
	Expires *time.Time     `json:"expires,omitempty"`
}

// Register godoc
// @Summary Register a new user
// @Description Creates a credentials account. The caller signs in with a separate login request.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration data"
// @Success 201 {object} errors.MessageResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(validationMessage(err))
	}

	if _, err := h.authService.Register(c.Request().Context(), req.Email, req.Password, req.Name); err != nil {
		return h.fail(c, "registration failed", err)
	}

	return c.JSON(http.StatusCreated, apperrors.MessageResponse{Message: "User registered successfully"})
}

// Login godoc
// @Summary Sign in with email and password
// @Description Issues a session token, returned in the body and as the session_token cookie.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 429 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return badRequest("Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return badRequest(validationMessage(err))
	}

	result, err := h.authService.Login(c.Request().Context(), req.Email, req.Password)
	if err != nil {
		return h.fail(c, "login failed", err)
	}

	c.SetCookie(auth.SessionCookie(result.Token, result.ExpiresAt, h.cookieSecure))
	return c.JSON(http.StatusOK, LoginResponse{
		Token:     result.Token,
		ExpiresAt: result.ExpiresAt,
		User:      *result.User,
	})
}

// Providers godoc
// @Summary List configured sign-in providers
// @Tags auth
// @Produce json
// @Success 200 {array} service.ProviderInfo
// @Router /auth/providers [get]
func (h *AuthHandler) Providers(c echo.Context) error {
	return c.JSON(http.StatusOK, h.authService.Providers())
}

// SignIn godoc
// @Summary Start an OAuth sign-in
// @Tags auth
// @Param provider path string true "Provider id"
// @Param callbackUrl query string false "Same-site path to return to"
// @Success 302
// @Failure 404 {object} errors.ErrorResponse
// @Router /auth/signin/{provider} [get]
func (h *AuthHandler) SignIn(c echo.Context) error {
	callbackURL := SafeCallbackURL(c.QueryParam("callbackUrl"))
	redirect, err := h.authService.BeginOAuth(c.Request().Context(), c.Param("provider"), callbackURL)
	if err != nil {
		return h.fail(c, "oauth sign-in could not start", err)
	}
	return c.Redirect(http.StatusFound, redirect)
}

// Callback godoc
// @Summary Finish an OAuth sign-in
// @Description Provider redirect target. Sets the session cookie and redirects to the stored callback URL, or to the login page with an error code.
// @Tags auth
// @Param provider path string true "Provider id"
// @Param code query string false "Authorization code"
// @Param state query string true "State issued at sign-in"
// @Success 302
// @Router /auth/callback/{provider} [get]
func (h *AuthHandler) Callback(c echo.Context) error {
	ctx := c.Request().Context()
	provider := c.Param("provider")

	if denied := c.QueryParam("error"); denied != "" {
		h.logger.InfoContext(ctx, "oauth sign-in cancelled at provider", "provider", provider, "error", denied)
		// drop the state so it cannot be replayed
		_, _, _ = h.authService.CompleteOAuth(ctx, provider, "", c.QueryParam("state"))
		return c.Redirect(http.StatusFound, loginErrorURL(ErrorAccessDenied))
	}

	result, callbackURL, err := h.authService.CompleteOAuth(ctx, provider, c.QueryParam("code"), c.QueryParam("state"))
	if err != nil {
		h.logger.WarnContext(ctx, "oauth callback failed", "provider", provider, "error", err)
		return c.Redirect(http.StatusFound, loginErrorURL(oauthErrorCode(err)))
	}

	c.SetCookie(auth.SessionCookie(result.Token, result.ExpiresAt, h.cookieSecure))
	return c.Redirect(http.StatusFound, SafeCallbackURL(callbackURL))
}

// Session godoc
// @Summary Current session
// @Tags auth
// @Produce json
// @Success 200 {object} SessionResponse
// @Router /auth/session [get]
func (h *AuthHandler) Session(c echo.Context) error {
	session, err := h.authService.Session(auth.TokensFromRequest(c.Request()))
	if err != nil {
		return c.JSON(http.StatusOK, SessionResponse{})
	}
	return c.JSON(http.StatusOK, SessionResponse{User: &session.User, Expires: &session.ExpiresAt})
}

// Logout godoc
// @Summary Sign out
// @Description Expires the session cookie. Tokens already handed out stay valid until they expire.
// @Tags auth
// @Produce json
// @Success 200 {object} errors.MessageResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(auth.ExpiredSessionCookie(h.cookieSecure))
	return c.JSON(http.StatusOK, apperrors.MessageResponse{Message: "Signed out"})
}

// Me godoc
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} auth.Identity
// @Failure 401 {object} errors.ErrorResponse
// @Router /me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return httpError(apperrors.ErrInvalidSession)
	}
	return c.JSON(http.StatusOK, session.User)
}

func (h *AuthHandler) fail(c echo.Context, msg string, err error) error {
	httpErr := apperrors.MapErrorToHTTP(err)
	if httpErr.StatusCode >= http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request().Context(), msg, "error", err)
	}
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

// Helper function to turn domain errors into echo errors
func httpError(err error) *echo.HTTPError {
	httpErr := apperrors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse())
}

func badRequest(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusBadRequest, apperrors.ErrorResponse{Error: msg, Code: "INVALID_INPUT"})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return "Invalid request"
	}
	switch verrs[0].Tag() {
	case "required":
		return "Email and password are required"
	case "email":
		return "Invalid email address"
	default:
		return "Invalid request"
	}
}

// Error codes carried to the login page in ?error=.
const (
	ErrorAccessDenied      = "AccessDenied"
	ErrorOAuthCallback     = "OAuthCallback"
	ErrorConfiguration     = "Configuration"
	ErrorCredentialsSignin = "CredentialsSignin"
)

func oauthErrorCode(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrSignInDenied):
		return ErrorAccessDenied
	case errors.Is(err, apperrors.ErrUnknownProvider):
		return ErrorConfiguration
	default:
		return ErrorOAuthCallback
	}
}

func loginErrorURL(code string) string {
	return loginPath + "?error=" + url.QueryEscape(code)
}

// SafeCallbackURL returns raw if it is a same-site absolute path, "/" otherwise.
func SafeCallbackURL(raw string) string {
	if raw == "" || raw[0] != '/' || len(raw) > 1 && (raw[1] == '/' || raw[1] == '\\') {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return u.RequestURI()
}
