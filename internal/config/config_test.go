package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("LIVECOIN_API_KEY", "k")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "https://api.livecoinwatch.com", cfg.UpstreamURL)
	assert.Equal(t, 8*time.Second, cfg.UpstreamTimeout)
	assert.Equal(t, 2, cfg.UpstreamRetries)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoad_EnvFileDoesNotOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "LIVECOIN_API_KEY=from-file\nHTTP_ADDR=:9999\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("LIVECOIN_API_KEY", "from-env")
	t.Setenv("HTTP_ADDR", "")
	require.NoError(t, os.Unsetenv("HTTP_ADDR"))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.UpstreamAPIKey)
	assert.Equal(t, ":9999", cfg.HTTPAddr)
}

func TestNormalize_Clamps(t *testing.T) {
	cfg := &Config{UpstreamTimeout: time.Second, UpstreamRetries: 9}
	cfg.Normalize()
	assert.Equal(t, MinUpstreamTimeout, cfg.UpstreamTimeout)
	assert.Equal(t, MaxUpstreamRetries, cfg.UpstreamRetries)

	cfg = &Config{UpstreamTimeout: time.Minute, UpstreamRetries: -1}
	cfg.Normalize()
	assert.Equal(t, MaxUpstreamTimeout, cfg.UpstreamTimeout)
	assert.Equal(t, 0, cfg.UpstreamRetries)
}

func TestValidate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.Error(t, (&Config{UpstreamAPIKey: "k"}).Validate())
	assert.NoError(t, (&Config{UpstreamAPIKey: "k", UseMemory: true}).Validate())
	assert.NoError(t, (&Config{UpstreamAPIKey: "k", PostgresDSN: "postgres://x"}).Validate())
}
