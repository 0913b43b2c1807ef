package router

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"
	"golang.org/x/time/rate"

	"dietdash/internal/auth"
	"dietdash/internal/config"
	apperrors "dietdash/internal/errors"
	"dietdash/internal/handler"
)

// Dependencies groups what the routes need.
type Dependencies struct {
	Config      *config.Config
	Logger      *slog.Logger
	Sessions    *auth.SessionManager
	Gate        *auth.Gate
	AuthHandler *handler.AuthHandler
	PageHandler *handler.PageHandler
	UserHandler *handler.UserHandler
	// Ready reports whether backing stores answer; nil means always ready.
	Ready func(ctx context.Context) error
}

// Register wires routes and middleware.
func Register(e *echo.Echo, deps Dependencies) {
	e.Use(middleware.RequestID())
	e.Use(requestLogger(deps.Logger))
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())

	// Add validator
	e.Validator = &CustomValidator{validator: validator.New()}
	e.Renderer = handler.NewRenderer()

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/readyz", func(c echo.Context) error {
		if deps.Ready != nil {
			if err := deps.Ready(c.Request().Context()); err != nil {
				deps.Logger.WarnContext(c.Request().Context(), "readiness check failed", "error", err)
				return c.String(http.StatusServiceUnavailable, "unavailable")
			}
		}
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	limiter := loginRateLimiter(deps.Config)
	authHandler := deps.AuthHandler
	pageHandler := deps.PageHandler

	api := e.Group("/api")

	// Public routes
	api.POST("/register", authHandler.Register, limiter)
	api.POST("/auth/login", authHandler.Login, limiter)
	api.GET("/auth/providers", authHandler.Providers)
	api.GET("/auth/signin/:provider", authHandler.SignIn)
	api.GET("/auth/callback/:provider", authHandler.Callback)
	api.GET("/auth/session", authHandler.Session)
	api.POST("/auth/logout", authHandler.Logout)

	// Secured routes (require a session token)
	secured := api.Group("", sessionMiddleware(deps.Sessions))
	secured.GET("/me", authHandler.Me)
	secured.GET("/profile", deps.UserHandler.GetProfile)

	// Pages
	e.GET("/login", pageHandler.LoginPage)
	e.POST("/login", pageHandler.LoginSubmit, limiter)
	e.POST("/register", pageHandler.RegisterSubmit, limiter)
	e.POST("/logout", pageHandler.LogoutSubmit)
	e.GET("/", pageHandler.Dashboard, deps.Gate.Middleware())
}

// sessionMiddleware validates the session token with echo-jwt, reading it
// from the Authorization header or the session cookie.
func sessionMiddleware(sessions *auth.SessionManager) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ,cookie:" + auth.SessionCookieName,
		ParseTokenFunc: func(c echo.Context, token string) (interface{}, error) {
			return sessions.Parse(token)
		},
		SuccessHandler: func(c echo.Context) {
			if session, ok := c.Get("user").(*auth.Session); ok {
				auth.SetSession(c, session)
			}
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, apperrors.ErrorResponse{
				Error: "Unauthorized",
				Code:  "UNAUTHORIZED",
			})
		},
	})
}

func loginRateLimiter(cfg *config.Config) echo.MiddlewareFunc {
	store := middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
		Rate:      rate.Limit(cfg.LoginRateLimit),
		Burst:     cfg.LoginRateBurst,
		ExpiresIn: 3 * time.Minute,
	})
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: store,
		IdentifierExtractor: func(c echo.Context) (string, error) {
			return c.RealIP(), nil
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusForbidden, apperrors.ErrorResponse{Error: "Forbidden", Code: "FORBIDDEN"})
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			return echo.NewHTTPError(http.StatusTooManyRequests, apperrors.ErrorResponse{
				Error: "Too many attempts, try again later",
				Code:  "RATE_LIMITED",
			})
		},
	})
}

func requestLogger(logger *slog.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogRequestID: true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			level := slog.LevelInfo
			switch {
			case v.Status >= http.StatusInternalServerError:
				level = slog.LevelError
			case v.Status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
				slog.String("request_id", v.RequestID),
			}
			if v.Error != nil {
				attrs = append(attrs, slog.String("error", v.Error.Error()))
			}
			logger.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
