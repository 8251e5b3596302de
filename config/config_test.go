package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:   "valid config",
			config: Config{DatabaseURL: "postgresql://localhost/coolworks", JWTSecret: "secret"},
		},
		{
			name:    "missing database URL",
			config:  Config{JWTSecret: "secret"},
			wantErr: "DATABASE_URL is required",
		},
		{
			name:    "missing JWT secret",
			config:  Config{DatabaseURL: "postgresql://localhost/coolworks"},
			wantErr: "JWT_SECRET is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadDefaults(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgresql://localhost/coolworks_test")
	os.Setenv("JWT_SECRET", "config-test-secret")
	defer func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("JWT_SECRET")
	}()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 24, cfg.JWTExpirationHours)
	assert.Equal(t, "us-east-1", cfg.AWSRegion)
	assert.False(t, cfg.RestockOnRevert, "restock on revert must default to off")
	assert.Same(t, cfg, GetConfig(), "Load should install the singleton")
}

func TestLoadRestockOnRevert(t *testing.T) {
	os.Setenv("DATABASE_URL", "postgresql://localhost/coolworks_test")
	os.Setenv("JWT_SECRET", "config-test-secret")
	os.Setenv("RESTOCK_ON_REVERT", "true")
	defer func() {
		os.Unsetenv("DATABASE_URL")
		os.Unsetenv("JWT_SECRET")
		os.Unsetenv("RESTOCK_ON_REVERT")
	}()

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.RestockOnRevert)
}

func TestGetEnvHelpers(t *testing.T) {
	os.Setenv("CONFIG_TEST_STR", "value")
	os.Setenv("CONFIG_TEST_INT", "42")
	os.Setenv("CONFIG_TEST_BAD_INT", "not-a-number")
	os.Setenv("CONFIG_TEST_BOOL", "true")
	defer func() {
		os.Unsetenv("CONFIG_TEST_STR")
		os.Unsetenv("CONFIG_TEST_INT")
		os.Unsetenv("CONFIG_TEST_BAD_INT")
		os.Unsetenv("CONFIG_TEST_BOOL")
	}()

	assert.Equal(t, "value", getEnv("CONFIG_TEST_STR", "fallback"))
	assert.Equal(t, "fallback", getEnv("CONFIG_TEST_MISSING", "fallback"))
	assert.Equal(t, 42, getEnvInt("CONFIG_TEST_INT", 7))
	assert.Equal(t, 7, getEnvInt("CONFIG_TEST_BAD_INT", 7))
	assert.Equal(t, true, getEnvBool("CONFIG_TEST_BOOL", false))
	assert.Equal(t, false, getEnvBool("CONFIG_TEST_MISSING", false))
}

func TestEnvPredicates(t *testing.T) {
	assert.True(t, (&Config{GoEnv: "production"}).IsProduction())
	assert.True(t, (&Config{GoEnv: "test"}).IsTest())
	assert.True(t, (&Config{GoEnv: "development"}).IsDevelopment())
	assert.False(t, (&Config{GoEnv: "development"}).IsProduction())
}
