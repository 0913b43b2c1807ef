package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"dietdash/internal/auth"
	apperrors "dietdash/internal/errors"
	"dietdash/internal/service"
)

const loginPath = "/login"

const (
	modeLogin    = "login"
	modeRegister = "register"
)

var providerLabels = map[string]string{
	auth.ProviderGitHub: "GitHub",
}

var loginErrorMessages = map[string]string{
	ErrorAccessDenied:      "Access denied. Sign-in was not allowed.",
	ErrorOAuthCallback:     "Sign-in with the provider failed. Please try again.",
	ErrorConfiguration:     "This sign-in method is not available.",
	ErrorCredentialsSignin: apperrors.PublicAuthFailureMessage,
}

type oauthLink struct {
	SignInURL string
	Label     string
}

type pageData struct {
	Title          string
	Mode           string
	Error          string
	Email          string
	Name           string
	CallbackURL    string
	OAuthProviders []oauthLink
	User           auth.Identity
	Expires        time.Time
}

type loginForm struct {
	Email       string `form:"email"`
	Password    string `form:"password"`
	CallbackURL string `form:"callbackUrl"`
}

type registerForm struct {
	Name            string `form:"name"`
	Email           string `form:"email"`
	Password        string `form:"password"`
	ConfirmPassword string `form:"confirm_password"`
	CallbackURL     string `form:"callbackUrl"`
}

// PageHandler serves the login surface and the dashboard shell.
type PageHandler struct {
	authService  service.AuthService
	cookieSecure bool
	logger       *slog.Logger
}

// NewPageHandler creates a new page handler.
func NewPageHandler(authService service.AuthService, cookieSecure bool, logger *slog.Logger) *PageHandler {
	return &PageHandler{authService: authService, cookieSecure: cookieSecure, logger: logger}
}

// LoginPage renders the sign-in or registration form. Callers that already
// hold a valid session go straight to their callback URL.
func (h *PageHandler) LoginPage(c echo.Context) error {
	callbackURL := SafeCallbackURL(c.QueryParam("callbackUrl"))
	if _, err := h.authService.Session(auth.TokensFromRequest(c.Request())); err == nil {
		return c.Redirect(http.StatusFound, callbackURL)
	}

	data := h.newPageData(c.QueryParam("mode"), callbackURL)
	if code := c.QueryParam("error"); code != "" {
		data.Error = loginErrorMessage(code)
	}
	return c.Render(http.StatusOK, "login.html", data)
}

// LoginSubmit handles the credentials form.
func (h *PageHandler) LoginSubmit(c echo.Context) error {
	var form loginForm
	if err := c.Bind(&form); err != nil {
		return h.renderLoginError(c, http.StatusBadRequest, modeLogin, "Invalid request", form.Email, "", form.CallbackURL)
	}
	if form.Email == "" || form.Password == "" {
		return h.renderLoginError(c, http.StatusBadRequest, modeLogin, "Email and password are required", form.Email, "", form.CallbackURL)
	}

	result, err := h.authService.Login(c.Request().Context(), form.Email, form.Password)
	if err != nil {
		return h.renderServiceError(c, modeLogin, err, form.Email, "", form.CallbackURL)
	}

	c.SetCookie(auth.SessionCookie(result.Token, result.ExpiresAt, h.cookieSecure))
	return c.Redirect(http.StatusSeeOther, SafeCallbackURL(form.CallbackURL))
}

// RegisterSubmit registers the account, then signs it in like the login form.
func (h *PageHandler) RegisterSubmit(c echo.Context) error {
	var form registerForm
	if err := c.Bind(&form); err != nil {
		return h.renderLoginError(c, http.StatusBadRequest, modeRegister, "Invalid request", form.Email, form.Name, form.CallbackURL)
	}
	if form.Password != form.ConfirmPassword {
		return h.renderLoginError(c, http.StatusBadRequest, modeRegister, "Passwords do not match", form.Email, form.Name, form.CallbackURL)
	}

	ctx := c.Request().Context()
	if _, err := h.authService.Register(ctx, form.Email, form.Password, form.Name); err != nil {
		return h.renderServiceError(c, modeRegister, err, form.Email, form.Name, form.CallbackURL)
	}

	result, err := h.authService.Login(ctx, form.Email, form.Password)
	if err != nil {
		return h.renderServiceError(c, modeLogin, err, form.Email, "", form.CallbackURL)
	}

	c.SetCookie(auth.SessionCookie(result.Token, result.ExpiresAt, h.cookieSecure))
	return c.Redirect(http.StatusSeeOther, SafeCallbackURL(form.CallbackURL))
}

// LogoutSubmit clears the session cookie and returns to the login page.
func (h *PageHandler) LogoutSubmit(c echo.Context) error {
	c.SetCookie(auth.ExpiredSessionCookie(h.cookieSecure))
	return c.Redirect(http.StatusSeeOther, loginPath)
}

// Dashboard renders the protected shell. It must sit behind the access gate.
func (h *PageHandler) Dashboard(c echo.Context) error {
	session, ok := auth.SessionFromContext(c)
	if !ok {
		return c.Redirect(http.StatusFound, loginPath)
	}

	user := session.User
	if user.Name == "" {
		user.Name = user.Email
	}
	return c.Render(http.StatusOK, "dashboard.html", pageData{
		Title:   "Dashboard",
		User:    user,
		Expires: session.ExpiresAt,
	})
}

func (h *PageHandler) newPageData(mode, callbackURL string) pageData {
	if mode != modeRegister {
		mode = modeLogin
	}
	data := pageData{
		Title:       "Sign in",
		Mode:        mode,
		CallbackURL: callbackURL,
	}
	if mode == modeRegister {
		data.Title = "Register"
	}
	for _, p := range h.authService.Providers() {
		if p.Type != auth.TypeOAuth {
			continue
		}
		data.OAuthProviders = append(data.OAuthProviders, oauthLink{SignInURL: p.SignInURL, Label: providerLabel(p.ID)})
	}
	return data
}

func (h *PageHandler) renderServiceError(c echo.Context, mode string, err error, email, name, callbackURL string) error {
	httpErr := apperrors.MapErrorToHTTP(err)
	if httpErr.StatusCode >= http.StatusInternalServerError {
		h.logger.ErrorContext(c.Request().Context(), "form sign-in failed", "mode", mode, "error", err)
	}
	return h.renderLoginError(c, httpErr.StatusCode, mode, httpErr.Message, email, name, callbackURL)
}

func (h *PageHandler) renderLoginError(c echo.Context, status int, mode, msg, email, name, callbackURL string) error {
	data := h.newPageData(mode, SafeCallbackURL(callbackURL))
	data.Error = msg
	data.Email = email
	data.Name = name
	return c.Render(status, "login.html", data)
}

func loginErrorMessage(code string) string {
	if msg, ok := loginErrorMessages[code]; ok {
		return msg
	}
	return "Sign-in failed."
}

func providerLabel(id string) string {
	if label, ok := providerLabels[id]; ok {
		return label
	}
	if id == "" {
		return id
	}
	return strings.ToUpper(id[:1]) + id[1:]
}
