package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-oauth2-server/internal/config"
)

func TestConfig_Defaults(t *testing.T) {
	cfg, err := config.New("")
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.GetPort())
	require.Equal(t, "DEV", cfg.GetEnv())
	require.Equal(t, time.Hour, cfg.GetAccessTokenTTL())
	require.Equal(t, 30*24*time.Hour, cfg.GetRefreshTokenTTL())
	require.Equal(t, 10*time.Minute, cfg.GetAuthCodeTTL())
	require.Equal(t, " ", cfg.GetScopeDelimiter())
	require.False(t, cfg.GetRequirePKCE())
	require.Empty(t, cfg.GetRedisAddrs())
	require.Empty(t, cfg.GetAllowedOrigins())
}

func TestConfig_Environment(t *testing.T) {
	t.Setenv("OAUTH_PORT", ":9090")
	t.Setenv("OAUTH_ENV", "prod")
	t.Setenv("OAUTH_BASE_URL", "https://auth.example.com/")
	t.Setenv("OAUTH_ACCESS_TOKEN_TTL", "15m")
	t.Setenv("OAUTH_REQUIRE_PKCE", "true")
	t.Setenv("OAUTH_REDIS_ADDR", "redis-a:6379, redis-b:6379")
	t.Setenv("OAUTH_ALLOWED_ORIGINS", "https://app.example.com,https://admin.example.com")

	cfg, err := config.New("")
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.GetPort())
	require.Equal(t, "PROD", cfg.GetEnv())
	require.Equal(t, "https://auth.example.com", cfg.GetBaseURL())
	require.Equal(t, 15*time.Minute, cfg.GetAccessTokenTTL())
	require.True(t, cfg.GetRequirePKCE())
	require.Equal(t, []string{"redis-a:6379", "redis-b:6379"}, cfg.GetRedisAddrs())
	require.True(t, cfg.GetAllowedOrigins().IsAllowedOrigin("https://admin.example.com"))
	require.False(t, cfg.GetAllowedOrigins().IsAllowedOrigin("https://evil.example.com"))
}

func TestConfig_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "oauth.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
default_scope: read
scope_delimiter: ","
refresh_token_ttl: 48h
allowed_origins:
  - https://app.example.com
`), 0o600))

	cfg, err := config.New(path)
	require.NoError(t, err)
	require.Equal(t, "read", cfg.GetDefaultScope())
	require.Equal(t, ",", cfg.GetScopeDelimiter())
	require.Equal(t, 48*time.Hour, cfg.GetRefreshTokenTTL())
	require.True(t, cfg.GetAllowedOrigins().IsAllowedOrigin("https://app.example.com"))

	_, err = config.New(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
