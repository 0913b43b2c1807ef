package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"time"

	"dietdash/internal/auth"
	"dietdash/internal/config"
	"dietdash/internal/db"
	"dietdash/internal/model"
	"dietdash/internal/repository"
	"dietdash/internal/service"
)

func main() {
	source := flag.String("source", os.Getenv("SEED_USERS"), "JSON file or http(s) URL with [{email,password,name}]")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	if *source == "" {
		logger.Error("no seed source, pass -source or set SEED_USERS")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("config init", "error", err)
		os.Exit(1)
	}

	gormDB, err := db.New(cfg)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}

	// Run migrations to ensure schema is up to date
	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	logger.Info("loading seed users", "source", *source)
	users, err := service.LoadSeedUsers(ctx, *source, &http.Client{Timeout: 30 * time.Second})
	if err != nil {
		logger.Error("failed to load seed users", "error", err)
		os.Exit(1)
	}

	hasher, err := auth.NewHasher(cfg.BcryptCost)
	if err != nil {
		logger.Error("password hasher init", "error", err)
		os.Exit(1)
	}

	userRepo := repository.NewUserRepository(gormDB)
	authService := service.NewAuthService(userRepo, hasher, auth.NewProviderSet(), nil, nil, nil, logger)

	report := service.SeedUsers(ctx, authService, users, logger)
	logger.Info("seed completed",
		"total", len(users),
		"created", report.Created,
		"existing", report.Existing,
		"failed", report.Failed,
	)
	if report.Failed > 0 {
		os.Exit(1)
	}
}
