package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"dietdash/docs" // swagger docs
	"dietdash/internal/auth"
	"dietdash/internal/cache"
	"dietdash/internal/config"
	"dietdash/internal/db"
	"dietdash/internal/handler"
	"dietdash/internal/model"
	"dietdash/internal/repository"
	"dietdash/internal/router"
	"dietdash/internal/service"
)

const shutdownTimeout = 10 * time.Second

// @title Diet Dashboard Auth API
// @version 1.0
// @description Registration, sign-in and session endpoints guarding the diet dashboard.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the session token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config init", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("starting dietdash", "config", cfg)

	gormDB, err := db.New(cfg)
	if err != nil {
		logger.Error("database init", "error", err)
		os.Exit(1)
	}

	// Drop tables if RESET_DB environment variable is set
	if cfg.ResetDB {
		logger.Warn("RESET_DB=true detected, dropping users table")
		if err := gormDB.Migrator().DropTable(&model.User{}); err != nil {
			logger.Warn("failed to drop table (may not exist)", "error", err)
		}
	}

	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		logger.Error("auto-migrate", "error", err)
		os.Exit(1)
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 3*time.Second)
	if err := cacheClient.Ping(pingCtx); err != nil {
		logger.Warn("redis unavailable, oauth sign-in and provisioning retries need it", "addr", cfg.RedisAddr, "error", err)
	}
	cancelPing()

	hasher, err := auth.NewHasher(cfg.BcryptCost)
	if err != nil {
		logger.Error("password hasher init", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	userRepo := repository.NewUserRepository(gormDB)

	// Initialize auth components
	sessions := auth.NewSessionManager(cfg.AuthSecret, cfg.SessionTTL, cfg.SessionUpdateAge)
	provisioner := service.NewProvisioner(
		userRepo,
		service.NewRedisRetryQueue(cacheClient),
		cfg.ProvisioningPolicy,
		cfg.ProvisioningRetryInterval,
		logger,
	)

	providers := auth.NewProviderSet(auth.NewCredentialsProvider(userRepo, hasher, logger))
	oauthClients := map[string]auth.OAuthClient{}
	if cfg.GitHubEnabled() {
		providers.Register(auth.NewOAuthProvider(auth.ProviderGitHub, provisioner.EnsureAccount))
		oauthClients[auth.ProviderGitHub] = auth.NewGitHubClient(cfg.GitHubClientID, cfg.GitHubClientSecret, cfg.BaseURL)
	}
	logger.Info("sign-in providers configured", "providers", providers.IDs())

	// Initialize services
	authService := service.NewAuthService(
		userRepo,
		hasher,
		providers,
		sessions,
		auth.NewStateStore(cacheClient),
		oauthClients,
		logger,
	)

	e := echo.New()
	e.HideBanner = true

	// Register routes
	router.Register(e, router.Dependencies{
		Config:      cfg,
		Logger:      logger,
		Sessions:    sessions,
		Gate:        auth.NewGate(sessions, "/login", cfg.CookieSecure, logger),
		AuthHandler: handler.NewAuthHandler(authService, cfg.CookieSecure, logger),
		PageHandler: handler.NewPageHandler(authService, cfg.CookieSecure, logger),
		UserHandler: handler.NewUserHandler(service.NewUserService(userRepo, cacheClient)),
		Ready: func(ctx context.Context) error {
			return ready(ctx, gormDB, cacheClient)
		},
	})

	if cfg.SwaggerHost != "" {
		docs.SwaggerInfo.Host = cfg.SwaggerHost
	}
	logger.Info("swagger documentation available", "url", cfg.BaseURL+"/swagger/index.html")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go provisioner.Run(ctx)

	go func() {
		addr := ":" + cfg.ServerPort
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server start", "addr", addr, "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", "error", err)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsDevelopment() {
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

func ready(ctx context.Context, gormDB *gorm.DB, cacheClient *cache.Client) error {
	sqlDB, err := gormDB.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return err
	}
	return cacheClient.Ping(ctx)
}
