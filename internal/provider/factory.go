package provider

import (
	"strings"

	"github.com/xonecas/arona-chat/internal/config"
	"golang.org/x/time/rate"
)

type OllamaFactory struct {
	name     string
	endpoint string
	limiter  *rate.Limiter
}

func NewOllamaFactory(name string, endpoint string, rateLimit float64, rateBurst int) *OllamaFactory {
	return &OllamaFactory{
		name:     name,
		endpoint: endpoint,
		limiter:  newLimiter(rateLimit, rateBurst),
	}
}

func (f *OllamaFactory) Name() string { return f.name }

// Create ignores apiKey; Ollama is unauthenticated.
func (f *OllamaFactory) Create(model string, temperature float64, apiKey string) Provider {
	return NewOllamaWithTemp(f.name, f.endpoint, model, temperature, f.limiter)
}

type OpenAIFactory struct {
	name     string
	endpoint string
	limiter  *rate.Limiter
}

func NewOpenAIFactory(name string, endpoint string, rateLimit float64, rateBurst int) *OpenAIFactory {
	return &OpenAIFactory{
		name:     name,
		endpoint: endpoint,
		limiter:  newLimiter(rateLimit, rateBurst),
	}
}

func (f *OpenAIFactory) Name() string { return f.name }

// Create builds a provider bound to apiKey. The key is passed per call so a
// key changed at runtime takes effect on the next request.
func (f *OpenAIFactory) Create(model string, temperature float64, apiKey string) Provider {
	return NewOpenAIWithTemp(f.name, f.endpoint, model, apiKey, temperature, f.limiter)
}

// IsOllamaEndpoint reports whether endpoint looks like an Ollama server.
func IsOllamaEndpoint(endpoint string) bool {
	return strings.Contains(endpoint, ":11434") || strings.Contains(endpoint, "/ollama")
}

// RegistryFromConfig registers one factory per configured provider.
func RegistryFromConfig(cfg *config.Config) *Registry {
	registry := NewRegistry()
	for name, p := range cfg.Providers {
		if IsOllamaEndpoint(p.Endpoint) {
			registry.RegisterFactory(name, NewOllamaFactory(name, p.Endpoint, p.RateLimit, p.RateBurst))
			continue
		}
		registry.RegisterFactory(name, NewOpenAIFactory(name, p.Endpoint, p.RateLimit, p.RateBurst))
	}
	return registry
}

// newLimiter treats a non-positive rate as unlimited.
func newLimiter(rateLimit float64, rateBurst int) *rate.Limiter {
	if rateLimit <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if rateBurst < 1 {
		rateBurst = 1
	}
	return rate.NewLimiter(rate.Limit(rateLimit), rateBurst)
}
