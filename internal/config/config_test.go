package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_EmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.HTTP.Port)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, 0.82, cfg.Disambig.ConfidenceThresh)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http:\n  port: 9090\nsession:\n  backend: redis\n  redis_addr: cache:6379\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.HTTP.Port)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, "cache:6379", cfg.Session.RedisAddr)
}

func TestLoad_MissingFileErrors(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestLoad_HTTPPortEnvOverride(t *testing.T) {
	t.Setenv("HTTP_PORT", "7777")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7777, cfg.HTTP.Port)
}

func TestLoad_RedisAddrEnvPromotesMemoryBackendToRedis(t *testing.T) {
	t.Setenv("REDIS_ADDR", "redis-host:6379")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, "redis-host:6379", cfg.Session.RedisAddr)
}

func TestLoad_RedisAddrEnvDoesNotOverrideExplicitNonMemoryBackend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session:\n  backend: postgres\n"), 0o644))
	t.Setenv("REDIS_ADDR", "redis-host:6379")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Session.Backend)
}

func TestLLMConfig_APIKey_FallsBackToDefaultEnvVar(t *testing.T) {
	t.Setenv("LLM_API_KEY", "default-key")
	cfg := LLMConfig{}
	assert.Equal(t, "default-key", cfg.APIKey())
}

func TestLLMConfig_APIKey_UsesConfiguredEnvVarName(t *testing.T) {
	t.Setenv("CUSTOM_LLM_KEY", "custom-key")
	cfg := LLMConfig{APIKeyEnv: "CUSTOM_LLM_KEY"}
	assert.Equal(t, "custom-key", cfg.APIKey())
}
