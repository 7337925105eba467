// Package config is the only place that reads the process environment.
// Load runs once at cold start; API keys are resolved per invocation through
// a KeySource so tests can substitute fake credentials.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Provider string

const (
	ProviderDeepSeek Provider = "deepseek"
	ProviderGemini   Provider = "gemini"
)

const (
	envProvider        = "CHAT_PROVIDER"
	envMaxMessageLen   = "MAX_MESSAGE_LENGTH"
	envEnableCORS      = "ENABLE_CORS"
	envUpstreamTimeout = "UPSTREAM_TIMEOUT"
	envAPIKeyParameter = "API_KEY_PARAMETER"
	envLogLevel        = "LOG_LEVEL"
)

// LookupFunc has the signature of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

type Config struct {
	Provider Provider
	// MaxMessageLength caps the trimmed message in characters; 0 disables it.
	MaxMessageLength int
	EnableCORS       bool
	Model            string
	BaseURL          string
	// UpstreamTimeout bounds the provider call; 0 leaves it to the platform.
	UpstreamTimeout time.Duration
	// APIKeyParameter, when set, names the SSM parameter holding the API key.
	APIKeyParameter string
	LogLevel        slog.Level
}

// APIKeyEnv is the environment variable carrying the key for c.Provider.
func (c Config) APIKeyEnv() string {
	return providerEnv(c.Provider, "API_KEY")
}

// FromEnv loads configuration from the process environment.
func FromEnv() (Config, error) {
	return Load(os.LookupEnv)
}

func Load(lookup LookupFunc) (Config, error) {
	if lookup == nil {
		return Config{}, errors.New("config: lookup must not be nil")
	}
	get := func(key string) string {
		v, _ := lookup(key)
		return strings.TrimSpace(v)
	}

	cfg := Config{
		Provider:        ProviderDeepSeek,
		EnableCORS:      true,
		APIKeyParameter: get(envAPIKeyParameter),
		LogLevel:        slog.LevelInfo,
	}

	if v := get(envProvider); v != "" {
		switch p := Provider(strings.ToLower(v)); p {
		case ProviderDeepSeek, ProviderGemini:
			cfg.Provider = p
		default:
			return Config{}, fmt.Errorf("config: %s: unsupported provider %q", envProvider, v)
		}
	}
	cfg.Model = get(providerEnv(cfg.Provider, "MODEL"))
	cfg.BaseURL = get(providerEnv(cfg.Provider, "BASE_URL"))

	if v := get(envMaxMessageLen); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("config: %s: want a non-negative integer, got %q", envMaxMessageLen, v)
		}
		cfg.MaxMessageLength = n
	}
	if v := get(envEnableCORS); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", envEnableCORS, err)
		}
		cfg.EnableCORS = b
	}
	if v := get(envUpstreamTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return Config{}, fmt.Errorf("config: %s: want a non-negative duration, got %q", envUpstreamTimeout, v)
		}
		cfg.UpstreamTimeout = d
	}
	if v := get(envLogLevel); v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", envLogLevel, err)
		}
	}
	return cfg, nil
}

func providerEnv(p Provider, suffix string) string {
	return strings.ToUpper(string(p)) + "_" + suffix
}
