// Package config handles configuration loading from TOML files and environment variables.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/xonecas/arona-chat/internal/constants"
)

// Config is the root configuration structure.
type Config struct {
	Chat      ChatConfig                `toml:"chat"`
	Providers map[string]ProviderConfig `toml:"providers"`
	Remote    RemoteConfig              `toml:"remote"`
}

// ChatConfig holds conversation defaults and client behaviour.
type ChatConfig struct {
	DefaultTitle    string `toml:"default_title"`
	DefaultPersona  string `toml:"default_persona"`
	PageSize        int    `toml:"page_size"`
	ScrollThreshold int    `toml:"scroll_threshold"`
	Provider        string `toml:"provider"`
}

// ProviderConfig holds LLM provider settings.
type ProviderConfig struct {
	Endpoint              string  `toml:"endpoint"`
	Model                 string  `toml:"model"`
	Temperature           float64 `toml:"temperature"`
	RateLimit             float64 `toml:"rate_limit"`
	RateBurst             int     `toml:"rate_burst"`
	RequestTimeoutSeconds int     `toml:"request_timeout_seconds"`
	APIKey                string  `toml:"-"`
}

// RequestTimeout returns the per-request timeout, zero meaning unbounded.
func (p ProviderConfig) RequestTimeout() time.Duration {
	if p.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(p.RequestTimeoutSeconds) * time.Second
}

// RemoteConfig holds the RPC transport settings.
type RemoteConfig struct {
	// Listen is the address the backend server binds to in -serve mode.
	Listen string `toml:"listen"`
	// URL points the client at a remote backend. Empty runs the backend in-process.
	URL string `toml:"url"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Chat: ChatConfig{
			DefaultTitle:    constants.DefaultConversationTitle,
			DefaultPersona:  constants.DefaultPersona,
			PageSize:        constants.DefaultPageSize,
			ScrollThreshold: constants.DefaultScrollThresholdLines,
			Provider:        "deepseek",
		},
		Providers: map[string]ProviderConfig{
			"deepseek": {
				Endpoint:    "https://api.deepseek.com",
				Model:       "deepseek-reasoner",
				Temperature: 1.0,
				RateLimit:   1.0,
				RateBurst:   2,
			},
			"ollama": {
				Endpoint:    "http://localhost:11434",
				Model:       "llama3",
				Temperature: 0.7,
				RateLimit:   2.0,
				RateBurst:   3,
			},
		},
		Remote: RemoteConfig{
			Listen: "127.0.0.1:7420",
		},
	}
}

// Load reads configuration from a TOML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, err
			}
		}
	}

	applyEnvOverrides(cfg)
	normalize(cfg)

	return cfg, nil
}

// ActiveProvider returns the provider selected by chat.provider.
func (c *Config) ActiveProvider() (string, ProviderConfig, bool) {
	p, ok := c.Providers[c.Chat.Provider]
	return c.Chat.Provider, p, ok
}

func normalize(cfg *Config) {
	if cfg.Chat.PageSize <= 0 {
		cfg.Chat.PageSize = constants.DefaultPageSize
	}
	if cfg.Chat.DefaultTitle == "" {
		cfg.Chat.DefaultTitle = constants.DefaultConversationTitle
	}
	if cfg.Chat.DefaultPersona == "" {
		cfg.Chat.DefaultPersona = constants.DefaultPersona
	}
	if cfg.Chat.ScrollThreshold <= 0 {
		cfg.Chat.ScrollThreshold = constants.DefaultScrollThresholdLines
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ARONA_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Chat.PageSize = n
		}
	}

	if v := os.Getenv("ARONA_PERSONA"); v != "" {
		cfg.Chat.DefaultPersona = v
	}

	if v := os.Getenv("ARONA_PROVIDER"); v != "" {
		cfg.Chat.Provider = v
	}

	if v := os.Getenv("ARONA_LISTEN"); v != "" {
		cfg.Remote.Listen = v
	}

	if v := os.Getenv("ARONA_REMOTE_URL"); v != "" {
		cfg.Remote.URL = v
	}

	name := cfg.Chat.Provider
	p, ok := cfg.Providers[name]
	if !ok {
		return
	}

	if v := os.Getenv("ARONA_LLM_ENDPOINT"); v != "" {
		p.Endpoint = v
	}

	if v := os.Getenv("ARONA_LLM_MODEL"); v != "" {
		p.Model = v
	}

	if v := os.Getenv("ARONA_LLM_TEMPERATURE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			p.Temperature = f
		}
	}

	if v := os.Getenv("ARONA_LLM_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			p.RateLimit = f
		}
	}

	if v := os.Getenv("ARONA_LLM_TIMEOUT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			p.RequestTimeoutSeconds = n
		}
	}

	// Fallback key; the apiKey setting stored by the client takes precedence.
	if v := os.Getenv("ARONA_API_KEY"); v != "" {
		p.APIKey = v
	}

	cfg.Providers[name] = p
}

// DataDir returns the path to the data directory (~/.arona-chat).
func DataDir() (string, error) {
	if v := os.Getenv("ARONA_DATA_DIR"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".arona-chat"), nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}
