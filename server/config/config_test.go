package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 3033, cfg.Server.Port)
	assert.Equal(t, 32, cfg.Server.EventBuffer)
	assert.Equal(t, "yt-dlp", cfg.Paths.DownloaderPath)
	assert.Equal(t, "./downloads", cfg.Paths.DownloadPath)
	assert.False(t, cfg.Authentication.RequireAuth)
	assert.Equal(t, slog.LevelInfo, cfg.Level())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 8080
paths:
  download_path: /data/downloads
  public_path: /data/public
logging:
  level: debug
openid:
  use_openid: true
  openid_email_whitelist:
    - a@example.com
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/data/downloads", cfg.Paths.DownloadPath)
	assert.Equal(t, "/data/public", cfg.Paths.PublicPath)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.True(t, cfg.OpenId.UseOpenId)
	assert.Equal(t, []string{"a@example.com"}, cfg.OpenId.EmailWhitelist)
	assert.Equal(t, filepath.Dir(path), cfg.Dir())
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("APP_SERVER_PORT", "9000")
	t.Setenv("APP_PATHS_DOWNLOADER_PATH", "/opt/yt-dlp")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "/opt/yt-dlp", cfg.Paths.DownloaderPath)
}

func TestLoadRejectsAuthWithoutSecret(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("authentication:\n  require_auth: true\n"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMalformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unterminated"), 0o644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestDump(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, cfg.Dump(&buf))

	var back Config
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &back))
	assert.Equal(t, cfg.Server, back.Server)
	assert.Equal(t, cfg.Paths, back.Paths)
}

func TestDumpRedactsSecrets(t *testing.T) {
	t.Setenv("APP_AUTHENTICATION_REQUIRE_AUTH", "true")
	t.Setenv("APP_AUTHENTICATION_JWT_SECRET", "jwt-s3cr3t")
	t.Setenv("APP_AUTHENTICATION_PASSWORD", "$2a$10$hashhashhash")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yml"))
	require.NoError(t, err)
	cfg.OpenId.ClientSecret = "oidc-s3cr3t"

	var buf bytes.Buffer
	require.NoError(t, cfg.Dump(&buf))

	out := buf.String()
	assert.NotContains(t, out, "jwt-s3cr3t")
	assert.NotContains(t, out, "$2a$10$hashhashhash")
	assert.NotContains(t, out, "oidc-s3cr3t")
	assert.Contains(t, out, redacted)

	// the live config keeps its secrets
	assert.Equal(t, "jwt-s3cr3t", cfg.Authentication.JWTSecret)
	assert.Equal(t, "oidc-s3cr3t", cfg.OpenId.ClientSecret)
}
