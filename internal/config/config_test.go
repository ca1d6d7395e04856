package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"ADDR", "LOG_LEVEL", "LOG_JSON", "LOG_FILE", "ORACLE_PROVIDER", "ANTHROPIC_API_KEY",
		"ANTHROPIC_BASE_URL", "ORACLE_MODEL", "ORACLE_MAX_TOKENS", "OLLAMA_BASE_URL",
		"ORACLE_UPSTREAM_TIMEOUT", "ORACLE_DOC_URL", "ORACLE_EXPORT_BASE", "TRACING",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Addr)
	assert.Equal(t, ProviderAnthropic, cfg.Upstream.Provider)
	assert.Equal(t, "claude-3-5-sonnet-20241022", cfg.Upstream.Model)
	assert.Equal(t, 4000, cfg.Upstream.MaxTokens)
	assert.Equal(t, DefaultDocumentURL, cfg.Document.URL)
	assert.Zero(t, cfg.Upstream.Timeout)
	assert.False(t, cfg.HasCredentials(), "no key configured")
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "oracle.yaml")
	yml := `
addr: "9090"
log:
  level: debug
upstream:
  model: claude-test
  max_tokens: 100
  timeout: 45s
document:
  url: https://docs.google.com/document/d/abc/edit
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))

	t.Setenv("ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("ORACLE_MAX_TOKENS", "250")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "claude-test", cfg.Upstream.Model)
	assert.Equal(t, 250, cfg.Upstream.MaxTokens, "env wins over file")
	assert.Equal(t, 45*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, "https://docs.google.com/document/d/abc/edit", cfg.Document.URL)
	assert.True(t, cfg.HasCredentials())
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestTracingEnv(t *testing.T) {
	tests := []struct {
		value    string
		enabled  bool
		exporter string
	}{
		{"true", true, "stdout"},
		{"stdout", true, "stdout"},
		{"false", false, "noop"},
	}
	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			clearEnv(t)
			t.Setenv("TRACING", tt.value)
			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, tt.enabled, cfg.Tracer.Enabled)
			assert.Equal(t, tt.exporter, cfg.Tracer.Exporter)
		})
	}
}

func TestValidateCollectsProblems(t *testing.T) {
	cfg := Defaults()
	cfg.Upstream.Provider = "openai"
	cfg.Upstream.MaxTokens = 0
	cfg.Tracer.Exporter = "jaeger"

	err := Validate(cfg)
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Len(t, ve.Problems, 3)
}

func TestHasCredentialsNonAnthropic(t *testing.T) {
	cfg := Defaults()
	cfg.Upstream.Provider = ProviderEcho
	assert.True(t, cfg.HasCredentials())
}
