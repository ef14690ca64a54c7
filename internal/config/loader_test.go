package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadWritesDefaultConfigWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, resolved, err := Load(nil, path)
	require.NoError(t, err)
	require.Equal(t, path, resolved)
	require.Equal(t, Default().Addr, cfg.Addr)
	require.Equal(t, Default().HTTPRateWindow, cfg.HTTPRateWindow)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config file should be created")
	require.NoError(t, cfg.Validate())
}

func TestLoadFileThenEnvPrecedence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
addr: ":7000"
max_page_size: 80
display_timezone: "Europe/Berlin"
shutdown_timeout: 3s
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("SQUADCHAT_ADDR", ":9000")
	t.Setenv("SQUADCHAT_ALLOWED_ORIGINS", "example.com,*.example.com")

	cfg, _, err := Load(nil, path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.Addr)
	require.Equal(t, 80, cfg.MaxPageSize)
	require.Equal(t, 3*time.Second, cfg.ShutdownTimeout)
	require.Equal(t, []string{"example.com", "*.example.com"}, cfg.AllowedOrigins)

	loc, err := cfg.Location()
	require.NoError(t, err)
	require.Equal(t, "Europe/Berlin", loc.String())
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	bad := Default()
	bad.JWTSecret = ""
	bad.DefaultPageSize = 500
	bad.DisplayTimezone = "Mars/Olympus"
	err := bad.Validate()
	require.Error(t, err)
	require.Contains(t, err.Error(), "jwt_secret")
	require.Contains(t, err.Error(), "default_page_size")
	require.Contains(t, err.Error(), "display_timezone")
}

func TestPlaceholderSecretIsReported(t *testing.T) {
	cfg := Default()
	require.True(t, cfg.UsesPlaceholderSecret())

	t.Setenv("SQUADCHAT_JWT_SECRET", "a-real-secret")
	loaded, _, err := Load(nil, filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	require.False(t, loaded.UsesPlaceholderSecret())
}
