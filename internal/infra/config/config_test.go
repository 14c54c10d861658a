package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseExpiry(t *testing.T) {
	cases := map[string]time.Duration{
		"15m":   15 * time.Minute,
		"7d":    7 * 24 * time.Hour,
		"2w":    14 * 24 * time.Hour,
		"500ms": 500 * time.Millisecond,
		"30s":   30 * time.Second,
		"1h":    time.Hour,
		"90":    90 * time.Second,
		" 1H ":  time.Hour,
	}
	for raw, want := range cases {
		got, err := ParseExpiry(raw)
		require.NoError(t, err, raw)
		require.Equal(t, want, got, raw)
	}

	for _, raw := range []string{"", "m", "10y", "0m", "1.5h", "-5m"} {
		_, err := ParseExpiry(raw)
		require.Error(t, err, raw)
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Auth.AccessSecret = "access"
	cfg.Auth.RefreshSecret = "refresh"
	return cfg
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.Auth.AccessSecret = ""
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Auth.RefreshSecret = cfg.Auth.AccessSecret
	require.ErrorContains(t, cfg.Validate(), "must differ")

	cfg = validConfig()
	cfg.Auth.BcryptCost = 10
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Auth.RefreshTokenExpiry = "10m"
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Auth.Cookie.SameSite = "loose"
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.SessionStore.Backend = SessionBackendValkey
	require.Error(t, cfg.Validate())
	cfg.SessionStore.ValkeyAddr = "localhost:6379"
	require.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnvironment(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := []byte(`
app:
  env: production
auth:
  accessSecret: from-file
  refreshSecret: refresh-from-file
  accessTokenExpiry: 5m
http:
  address: ":9000"
`)
	require.NoError(t, os.WriteFile(path, yaml, 0o600))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("JWT_SECRET", "from-env")
	t.Setenv("AUTH_MAX_SESSIONS", "3")
	t.Setenv("SESSION_STORE", "USER")
	t.Setenv("HTTP_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	require.NoError(t, err)
	require.True(t, cfg.App.IsProduction())
	require.Equal(t, "from-env", cfg.Auth.AccessSecret)
	require.Equal(t, "refresh-from-file", cfg.Auth.RefreshSecret)
	require.Equal(t, ":9000", cfg.HTTP.Address)
	require.Equal(t, 3, cfg.Auth.MaxSessions)
	require.Equal(t, SessionBackendUser, cfg.SessionStore.Backend)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.AllowedOrigins)

	ttl, err := cfg.Auth.AccessTokenTTL()
	require.NoError(t, err)
	require.Equal(t, 5*time.Minute, ttl)
}

func TestLoad_MissingSecretsFails(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "missing.yaml"))
	_, err := Load()
	require.Error(t, err)
}
