package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	// PolicyProceed lets OAuth sign-in continue when provisioning fails and queues a retry.
	PolicyProceed = "proceed"
	// PolicyFail aborts OAuth sign-in when provisioning fails.
	PolicyFail = "fail"

	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config holds application level configuration loaded from environment variables.
// It is built once at startup and passed by reference.
type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	ServerPort  string `envconfig:"SERVER_PORT" default:"8080"`
	BaseURL     string `envconfig:"BASE_URL" default:"http://localhost:8080"`
	SwaggerHost string `envconfig:"SWAGGER_HOST"`
	ResetDB     bool   `envconfig:"RESET_DB" default:"false"`

	DBDriver   string `envconfig:"DB_DRIVER" default:"mysql"`
	MySQLDSN   string `envconfig:"MYSQL_DSN" default:"user:password@tcp(localhost:3306)/dietdash?charset=utf8mb4&parseTime=True&loc=Local"`
	SQLitePath string `envconfig:"SQLITE_PATH" default:"dietdash.db"`

	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`
	RedisPass string `envconfig:"REDIS_PASSWORD"`

	AuthSecret       string        `envconfig:"AUTH_SECRET" required:"true"`
	SessionTTL       time.Duration `envconfig:"SESSION_TTL" default:"720h"`
	SessionUpdateAge time.Duration `envconfig:"SESSION_UPDATE_AGE" default:"24h"`
	CookieSecure     bool          `envconfig:"COOKIE_SECURE" default:"false"`
	BcryptCost       int           `envconfig:"BCRYPT_COST" default:"10"`

	GitHubClientID     string `envconfig:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `envconfig:"GITHUB_CLIENT_SECRET"`

	ProvisioningPolicy        string        `envconfig:"PROVISIONING_POLICY" default:"proceed"`
	ProvisioningRetryInterval time.Duration `envconfig:"PROVISIONING_RETRY_INTERVAL" default:"30s"`

	LoginRateLimit float64 `envconfig:"LOGIN_RATE_LIMIT" default:"5"`
	LoginRateBurst int     `envconfig:"LOGIN_RATE_BURST" default:"10"`
}

// Load builds Config from the environment. In development a .env file is
// read first when present.
func Load() (*Config, error) {
	if !strings.EqualFold(lookupEnvironment(), "production") {
		if err := godotenv.Load(); err == nil {
			slog.Debug("loaded .env file")
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	var problems []string

	if len(c.AuthSecret) < 32 {
		problems = append(problems, "AUTH_SECRET must be at least 32 characters")
	}
	if (c.GitHubClientID == "") != (c.GitHubClientSecret == "") {
		problems = append(problems, "GITHUB_CLIENT_ID and GITHUB_CLIENT_SECRET must be set together")
	}
	if c.ProvisioningPolicy != PolicyProceed && c.ProvisioningPolicy != PolicyFail {
		problems = append(problems, fmt.Sprintf("PROVISIONING_POLICY must be %q or %q", PolicyProceed, PolicyFail))
	}
	if c.DBDriver != DriverMySQL && c.DBDriver != DriverSQLite {
		problems = append(problems, fmt.Sprintf("DB_DRIVER must be %q or %q", DriverMySQL, DriverSQLite))
	}
	if c.SessionTTL <= 0 {
		problems = append(problems, "SESSION_TTL must be positive")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		problems = append(problems, "BCRYPT_COST must be between 4 and 31")
	}
	if _, err := url.ParseRequestURI(c.BaseURL); err != nil {
		problems = append(problems, "BASE_URL must be a valid URL")
	}

	if len(problems) > 0 {
		return fmt.Errorf("environment validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}

// GitHubEnabled reports whether the GitHub OAuth provider is configured.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// LogValue masks secrets when the config is logged.
func (c *Config) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("environment", c.Environment),
		slog.String("port", c.ServerPort),
		slog.String("base_url", c.BaseURL),
		slog.String("db_driver", c.DBDriver),
		slog.String("redis_addr", c.RedisAddr),
		slog.String("auth_secret", MaskSecret(c.AuthSecret)),
		slog.Duration("session_ttl", c.SessionTTL),
		slog.Bool("github_oauth", c.GitHubEnabled()),
		slog.String("provisioning_policy", c.ProvisioningPolicy),
	)
}

// MaskSecret hides all but the edges of a secret.
func MaskSecret(secret string) string {
	if secret == "" {
		return "<not set>"
	}
	if len(secret) <= 8 {
		return "***"
	}
	return secret[:4] + "..." + secret[len(secret)-4:]
}

func lookupEnvironment() string {
	var env struct {
		Environment string `envconfig:"ENVIRONMENT" default:"development"`
	}
	_ = envconfig.Process("", &env)
	return env.Environment
}
