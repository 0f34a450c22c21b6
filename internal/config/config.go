// Package config loads the process configuration from the environment once
// at startup. The resulting snapshot is immutable for the process lifetime;
// handlers only ever read it.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Provider identifies the upstream the proxy forwards to.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderGemini    Provider = "gemini"
	ProviderAnthropic Provider = "anthropic"
)

// Default upstream endpoints. Gemini is reached through its
// OpenAI-compatible surface.
const (
	DefaultOpenAIBaseURL    = "https://api.openai.com/v1"
	DefaultGeminiBaseURL    = "https://generativelanguage.googleapis.com/v1beta/openai"
	DefaultAnthropicBaseURL = "https://api.anthropic.com"
)

// Config is the immutable startup snapshot.
type Config struct {
	Port           int
	LogLevel       string
	TargetProvider Provider

	OpenAIAPIKey    string
	GeminiAPIKey    string
	AnthropicAPIKey string

	OpenAIBaseURL    string
	GeminiBaseURL    string
	AnthropicBaseURL string

	// Routing tables: caller model id -> upstream model id, per provider.
	OpenAIModelMap map[string]string
	GeminiModelMap map[string]string
}

func defaultOpenAIModelMap() map[string]string {
	return map[string]string{
		"claude-3-5-haiku-20241022":   "gpt-4o-mini",
		"claude-sonnet-4-20250514":    "gpt-4o",
		"anthropic/claude-3-opus":     "gpt-4o",
		"anthropic/claude-3.5-sonnet": "gpt-4o",
		"anthropic/claude-3-sonnet":   "gpt-4-turbo",
		"anthropic/claude-3-haiku":    "gpt-4o-mini",
	}
}

func defaultGeminiModelMap() map[string]string {
	return map[string]string{
		"claude-3-5-haiku-20241022":   "gemini-2.0-flash",
		"claude-sonnet-4-20250514":    "gemini-2.5-pro-preview-03-25",
		"anthropic/claude-3-opus":     "gemini-1.5-pro-latest",
		"anthropic/claude-3.5-sonnet": "gemini-1.5-pro-latest",
		"anthropic/claude-3-sonnet":   "gemini-1.5-pro-latest",
		"anthropic/claude-3-haiku":    "gemini-1.5-flash-latest",
	}
}

// Load reads the environment (optionally seeded from an env file) and
// returns the configuration snapshot.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("loading env file %s: %w", envFile, err)
		}
	} else {
		// Best effort: a .env next to the binary is optional.
		_ = godotenv.Load()
	}

	cfg := &Config{
		Port:             8080,
		LogLevel:         "info",
		TargetProvider:   ProviderOpenAI,
		OpenAIBaseURL:    DefaultOpenAIBaseURL,
		GeminiBaseURL:    DefaultGeminiBaseURL,
		AnthropicBaseURL: DefaultAnthropicBaseURL,
		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:     os.Getenv("GEMINI_API_KEY"),
		AnthropicAPIKey:  os.Getenv("ANTHROPIC_API_KEY"),
		OpenAIModelMap:   defaultOpenAIModelMap(),
		GeminiModelMap:   defaultGeminiModelMap(),
	}

	if v := os.Getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid PORT %q", v)
		}
		cfg.Port = port
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("TARGET_LLM_PROVIDER"); v != "" {
		switch Provider(strings.ToLower(v)) {
		case ProviderOpenAI, ProviderGemini, ProviderAnthropic:
			cfg.TargetProvider = Provider(strings.ToLower(v))
		default:
			return nil, fmt.Errorf("invalid TARGET_LLM_PROVIDER %q (want openai, gemini or anthropic)", v)
		}
	}
	if v := os.Getenv("OPENAI_BASE_URL"); v != "" {
		cfg.OpenAIBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("GEMINI_BASE_URL"); v != "" {
		cfg.GeminiBaseURL = strings.TrimRight(v, "/")
	}
	if v := os.Getenv("ANTHROPIC_BASE_URL"); v != "" {
		cfg.AnthropicBaseURL = strings.TrimRight(v, "/")
	}

	if err := overrideMap(&cfg.OpenAIModelMap, "ANTHROPIC_TO_OPENAI_MAP"); err != nil {
		return nil, err
	}
	if err := overrideMap(&cfg.GeminiModelMap, "ANTHROPIC_TO_GEMINI_MAP"); err != nil {
		return nil, err
	}

	if key := cfg.ProviderKey(cfg.TargetProvider); key == "" {
		logrus.Warnf("no API key configured for target provider %s", cfg.TargetProvider)
	}
	return cfg, nil
}

// overrideMap replaces a routing table with the JSON object held in the
// named environment variable, when set.
func overrideMap(dst *map[string]string, envName string) error {
	v := os.Getenv(envName)
	if v == "" {
		return nil
	}
	m := map[string]string{}
	if err := json.Unmarshal([]byte(v), &m); err != nil {
		return fmt.Errorf("invalid %s: %w", envName, err)
	}
	*dst = m
	return nil
}

// ProviderKey returns the credential configured for a provider.
func (c *Config) ProviderKey(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderGemini:
		return c.GeminiAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	}
	return ""
}

// ProviderBaseURL returns the endpoint configured for a provider.
func (c *Config) ProviderBaseURL(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return c.OpenAIBaseURL
	case ProviderGemini:
		return c.GeminiBaseURL
	case ProviderAnthropic:
		return c.AnthropicBaseURL
	}
	return ""
}

// ParseLogLevel converts the configured level to a logrus level, defaulting
// to info.
func (c *Config) ParseLogLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}
