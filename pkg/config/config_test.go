package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsAndEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("KAFKA_ADDR", "k1:9092, k2:9092,")
	t.Setenv("PAYPAL_CLIENT_ID", "cid")
	t.Setenv("ACCESS_TOKEN_LIFETIME", "5m")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers())
	assert.Equal(t, "cid", cfg.PayPal.ClientID)
	assert.Equal(t, "sandbox", cfg.PayPal.Mode)
	assert.Equal(t, 10*time.Second, cfg.PayPal.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.Tokens.AccessLifetime)
	assert.Equal(t, 2, cfg.GatewayRetry)
}

func TestLoad_DotEnvDoesNotOverrideEnvironment(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(file, []byte("LOG_LEVEL=debug\nBASE_URI=http://from-file\n"), 0o600))
	t.Setenv("BASE_URI", "http://from-env")
	// godotenv sets variables for the whole process; t.Setenv restores them.
	t.Setenv("LOG_LEVEL", "")
	require.NoError(t, os.Unsetenv("LOG_LEVEL"))

	cfg, err := Load(file)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "http://from-env", cfg.BaseURI)
}

func TestLoad_RejectsUnknownDriver(t *testing.T) {
	t.Setenv("STORE_DRIVER", "mongo")
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Error(t, err)
}

func TestTokens_Registry(t *testing.T) {
	tokens := Tokens{
		Algorithm:             "HS256",
		AccessSecret:          "a",
		AccessLifetime:        time.Hour,
		RefreshSecret:         "r",
		RefreshLifetime:       time.Hour,
		EmailVerifySecret:     "e",
		EmailVerifyLifetime:   time.Hour,
		PasswordResetSecret:   "p",
		PasswordResetLifetime: time.Hour,
	}
	reg, err := tokens.Registry()
	require.NoError(t, err)
	assert.Len(t, reg.Types(), 4)

	tokens.RefreshSecret = ""
	_, err = tokens.Registry()
	assert.Error(t, err)
}
