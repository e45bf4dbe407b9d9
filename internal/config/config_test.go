package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "claude-sonnet-4-5-20250929", cfg.Anthropic.Model)
	assert.Equal(t, int64(4096), cfg.Anthropic.MaxTokens)
	assert.Equal(t, 120, cfg.Anthropic.TimeoutSecs)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "en", cfg.Prompts.Language)
	assert.Equal(t, 50, cfg.Export.Limit)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("CERTIMATE_STORE_DRIVER", "sqlite")
	t.Setenv("CERTIMATE_ANTHROPIC_MODEL", "claude-haiku-4-5-20251001")
	t.Setenv("CERTIMATE_SERVER_PORT", "9090")
	t.Setenv("CERTIMATE_PROMPTS_LANGUAGE", "ko")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "claude-haiku-4-5-20251001", cfg.Anthropic.Model)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "ko", cfg.Prompts.Language)
}

func TestAccessEnforceDefaultsByEnvironment(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Access.Enforce, "development defaults to not enforcing")

	t.Setenv("CERTIMATE_ENVIRONMENT", "production")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.Access.Enforce, "production defaults to enforcing")
}

func TestAccessEnforceExplicitWins(t *testing.T) {
	t.Setenv("CERTIMATE_ENVIRONMENT", "production")
	t.Setenv("CERTIMATE_ACCESS_ENFORCE", "false")

	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Access.Enforce, "explicit setting beats the environment default")

	t.Setenv("CERTIMATE_ENVIRONMENT", "development")
	t.Setenv("CERTIMATE_ACCESS_ENFORCE", "true")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.Access.Enforce)
}

func TestLoadRejectsBadLanguage(t *testing.T) {
	t.Setenv("CERTIMATE_PROMPTS_LANGUAGE", "not a tag!!")
	_, err := Load()
	assert.Error(t, err)
}
