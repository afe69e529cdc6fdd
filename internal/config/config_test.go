package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nonexistent.yaml"))
	// A named file that is missing is an error; the default search path
	// tolerates absence, so load with an empty path from a scratch dir.
	require.Error(t, err)

	t.Chdir(t.TempDir())
	cfg, err = Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "console", cfg.Logger.Format)
	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Browser.QuietWait)
	assert.Equal(t, "es-MX", cfg.Browser.Locale)
	assert.Equal(t, "https://clubvirtual-asd.org.mx/login/auth", cfg.Site.LoginURL())
	assert.Equal(t, "login_error", cfg.Site.LoginErrorMarker)
	assert.Equal(t, "/valida/selecciona-club", cfg.Site.SelectClubPath)
	assert.True(t, cfg.Screenshots.Enabled)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: 127.0.0.1
  port: 9191
browser:
  headless: false
  locale: en-US
site:
  base_url: https://staging.example.test
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9191", cfg.Server.Addr())
	assert.False(t, cfg.Browser.Headless)
	assert.Equal(t, "en-US", cfg.Browser.Locale)
	assert.Equal(t, "https://staging.example.test/login/auth", cfg.Site.LoginURL())
	// Untouched keys keep their defaults.
	assert.Equal(t, "/mi-perfil", cfg.Site.ProfilePath)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CLUBAGENT_SERVER_PORT", "7070")
	t.Setenv("CLUBAGENT_SITE_BASE_URL", "https://env.example.test")
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "https://env.example.test", cfg.Site.BaseURL)
}

func TestLoadExpandsHome(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  dir: ~/clubagent-sessions\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "clubagent-sessions"), cfg.Session.Dir)
}
