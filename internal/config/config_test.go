package config

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, name := range []string{
		"PORT", "LOG_LEVEL", "TARGET_LLM_PROVIDER",
		"OPENAI_API_KEY", "GEMINI_API_KEY", "ANTHROPIC_API_KEY",
		"OPENAI_BASE_URL", "GEMINI_BASE_URL", "ANTHROPIC_BASE_URL",
		"ANTHROPIC_TO_OPENAI_MAP", "ANTHROPIC_TO_GEMINI_MAP",
	} {
		t.Setenv(name, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, ProviderOpenAI, cfg.TargetProvider)
	assert.Equal(t, DefaultOpenAIBaseURL, cfg.OpenAIBaseURL)
	assert.Equal(t, DefaultGeminiBaseURL, cfg.GeminiBaseURL)
	assert.Equal(t, DefaultAnthropicBaseURL, cfg.AnthropicBaseURL)
	assert.NotEmpty(t, cfg.OpenAIModelMap)
	assert.NotEmpty(t, cfg.GeminiModelMap)
}

func TestLoadOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")
	t.Setenv("LOG_LEVEL", "DEBUG")
	t.Setenv("TARGET_LLM_PROVIDER", "gemini")
	t.Setenv("GEMINI_API_KEY", "sk-test")
	t.Setenv("GEMINI_BASE_URL", "https://gemini.example/v1beta/openai/")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, logrus.DebugLevel, cfg.ParseLogLevel())
	assert.Equal(t, ProviderGemini, cfg.TargetProvider)
	assert.Equal(t, "sk-test", cfg.ProviderKey(ProviderGemini))
	// Trailing slash is trimmed.
	assert.Equal(t, "https://gemini.example/v1beta/openai", cfg.GeminiBaseURL)
}

func TestLoadModelMapOverride(t *testing.T) {
	clearEnv(t)
	t.Setenv("ANTHROPIC_TO_OPENAI_MAP", `{"claude-x":"gpt-x"}`)

	cfg, err := Load("")
	require.NoError(t, err)

	// The override replaces the table, not merges into it.
	assert.Equal(t, map[string]string{"claude-x": "gpt-x"}, cfg.OpenAIModelMap)
}

func TestLoadInvalidValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "not-a-port")
	_, err := Load("")
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("TARGET_LLM_PROVIDER", "mistral")
	_, err = Load("")
	assert.Error(t, err)

	clearEnv(t)
	t.Setenv("ANTHROPIC_TO_GEMINI_MAP", `{broken`)
	_, err = Load("")
	assert.Error(t, err)
}

func TestParseLogLevelFallsBackToInfo(t *testing.T) {
	cfg := &Config{LogLevel: "shouting"}
	assert.Equal(t, logrus.InfoLevel, cfg.ParseLogLevel())
}
