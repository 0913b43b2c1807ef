package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("AUTH_SECRET", testSecret)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, DriverMySQL, cfg.DBDriver)
	assert.Equal(t, 720*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 24*time.Hour, cfg.SessionUpdateAge)
	assert.Equal(t, 10, cfg.BcryptCost)
	assert.Equal(t, PolicyProceed, cfg.ProvisioningPolicy)
	assert.False(t, cfg.GitHubEnabled())
}

func TestLoad_MissingSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("AUTH_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			BaseURL:            "http://localhost:8080",
			DBDriver:           DriverSQLite,
			AuthSecret:         testSecret,
			SessionTTL:         time.Hour,
			BcryptCost:         10,
			ProvisioningPolicy: PolicyFail,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"short secret", func(c *Config) { c.AuthSecret = "short" }, "AUTH_SECRET"},
		{"half github", func(c *Config) { c.GitHubClientID = "id" }, "GITHUB_CLIENT_ID"},
		{"bad policy", func(c *Config) { c.ProvisioningPolicy = "maybe" }, "PROVISIONING_POLICY"},
		{"bad driver", func(c *Config) { c.DBDriver = "oracle" }, "DB_DRIVER"},
		{"bad cost", func(c *Config) { c.BcryptCost = 2 }, "BCRYPT_COST"},
		{"bad url", func(c *Config) { c.BaseURL = "not a url" }, "BASE_URL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "<not set>", MaskSecret(""))
	assert.Equal(t, "***", MaskSecret("abc"))
	assert.Equal(t, "0123...cdef", MaskSecret(testSecret))
}
