package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

// ErrMissingAPIKey is returned when an authenticated endpoint is called without a key.
var ErrMissingAPIKey = errors.New("api key not configured")

// OpenAIProvider implements the Provider interface for OpenAI-compatible APIs
// such as DeepSeek.
type OpenAIProvider struct {
	name        string
	client      *openai.Client
	model       string
	apiKey      string
	temperature float64
	limiter     *rate.Limiter
}

// NewOpenAI creates a new OpenAI-compatible provider.
func NewOpenAI(endpoint, model, apiKey string) *OpenAIProvider {
	return NewOpenAIWithTemp("openai", endpoint, model, apiKey, 1.0, nil)
}

func NewOpenAIWithTemp(name, endpoint, model, apiKey string, temperature float64, limiter *rate.Limiter) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = endpoint

	return &OpenAIProvider{
		name:        name,
		client:      openai.NewClientWithConfig(config),
		model:       model,
		apiKey:      apiKey,
		temperature: temperature,
		limiter:     limiter,
	}
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Chat sends messages and returns the complete response.
func (p *OpenAIProvider) Chat(ctx context.Context, messages []Message) (Reply, error) {
	if p.apiKey == "" {
		return Reply{}, ErrMissingAPIKey
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return Reply{}, err
		}
	}

	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Messages:    mergeSystemMessagesOpenAI(toOpenAIMessages(messages)),
		Temperature: float32(p.temperature),
	}

	log.Debug().
		Str("provider", p.name).
		Str("model", p.model).
		Int("messages", len(req.Messages)).
		Msg("OpenAI: Sending chat completion")

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Reply{}, fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Reply{}, errors.New("no response choices")
	}

	return Reply{Content: resp.Choices[0].Message.Content}, nil
}
