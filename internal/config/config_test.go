package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTokenSecret = "test-secret-key-at-least-32-chars-long"

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("TOKEN_SECRET", testTokenSecret)
	t.Setenv("DB_PASSWORD", "postgres")
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 5, cfg.Security.MaxFailedAttempts)
	assert.Equal(t, 15*time.Minute, cfg.Security.BlockWindow)
	assert.Equal(t, 1*time.Hour, cfg.Security.SuspiciousIPChangeWindow)
	assert.Equal(t, 3, cfg.Security.MaxConcurrentSessions)
	assert.Equal(t, 30*time.Minute, cfg.Security.SessionIdleTimeout)
	assert.Equal(t, 8*time.Hour, cfg.Auth.TokenLifetime)
	assert.Nil(t, cfg.Security.TrustedProxies)
	assert.False(t, cfg.Alert.Enabled)
}

func TestLoad_MissingTokenSecret(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_ShortTokenSecret(t *testing.T) {
	t.Setenv("TOKEN_SECRET", "too-short")
	t.Setenv("DB_PASSWORD", "postgres")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_MissingDBPassword(t *testing.T) {
	t.Setenv("TOKEN_SECRET", testTokenSecret)
	t.Setenv("DB_PASSWORD", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_SecurityOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SECURITY_MAX_FAILED_ATTEMPTS", "3")
	t.Setenv("SECURITY_BLOCK_WINDOW", "5m")
	t.Setenv("SECURITY_MAX_CONCURRENT_SESSIONS", "10")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Security.MaxFailedAttempts)
	assert.Equal(t, 5*time.Minute, cfg.Security.BlockWindow)
	assert.Equal(t, 10, cfg.Security.MaxConcurrentSessions)
}

func TestLoad_InvalidThresholds(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("SECURITY_MAX_FAILED_ATTEMPTS", "0")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_TrustedProxies(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("TRUSTED_PROXIES", "10.0.0.0/8, 172.16.0.0/12")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"10.0.0.0/8", "172.16.0.0/12"}, cfg.Security.TrustedProxies)
}

func TestLoad_AlertsEnabledWhenAddressesSet(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("ALERT_FROM_ADDRESS", "alerts@example.com")
	t.Setenv("ALERT_TO_ADDRESS", "secops@example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.Alert.Enabled)
	assert.Equal(t, "alerts@example.com", cfg.Alert.FromAddress)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Name:     "labguard",
		SSLMode:  "disable",
	}

	dsn := cfg.DSN()

	assert.Contains(t, dsn, "host=localhost")
	assert.Contains(t, dsn, "dbname=labguard")
	assert.Contains(t, dsn, "sslmode=disable")
}
