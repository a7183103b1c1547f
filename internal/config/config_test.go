package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", cfg.Knowledge.BaseURL)
	assert.Equal(t, 10, cfg.Relay.TopK)
	assert.Equal(t, 60, cfg.Relay.MaxDurationSeconds)
	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
	assert.False(t, cfg.Audit.Enabled)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[knowledge]
base_url = "http://backend.internal:8000"

[llm]
model = "gpt-4o"

[relay]
top_k = 10
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_MODEL", "gpt-4o-mini")
	t.Setenv("AUDIT_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://backend.internal:8000", cfg.Knowledge.BaseURL)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.True(t, cfg.Audit.Enabled)
}

func TestBackendURLAliases(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("NEXT_PUBLIC_API_URL", "http://from-next:8000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "http://from-next:8000", cfg.Knowledge.BaseURL)

	t.Setenv("KNOWLEDGE_BASE_URL", "http://explicit:8000")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, "http://explicit:8000", cfg.Knowledge.BaseURL)
}

func TestValidateRejectsRequiredAuthWithoutSecret(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.toml"))
	t.Setenv("AUTH_REQUIRED", "yes")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestGetEnvAsList(t *testing.T) {
	t.Setenv("ORIGINS", " http://a , ,http://b")
	assert.Equal(t, []string{"http://a", "http://b"}, getEnvAsList("ORIGINS", nil))
	assert.Equal(t, []string{"x"}, getEnvAsList("UNSET_ORIGINS_KEY", []string{"x"}))
}
