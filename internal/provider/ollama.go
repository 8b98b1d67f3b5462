package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// OllamaProvider implements the Provider interface for Ollama.
// Ollama exposes an OpenAI-compatible API at /v1; requests are sent over raw
// HTTP so the non-standard reasoning fields survive decoding.
type OllamaProvider struct {
	name        string
	baseURL     string
	httpClient  *http.Client
	model       string
	temperature float64
	limiter     *rate.Limiter
}

// NewOllama creates a new Ollama provider.
func NewOllama(endpoint, model string) *OllamaProvider {
	return NewOllamaWithTemp("ollama", endpoint, model, 0.7, nil)
}

func NewOllamaWithTemp(name, endpoint, model string, temperature float64, limiter *rate.Limiter) *OllamaProvider {
	return &OllamaProvider{
		name:        name,
		baseURL:     strings.TrimRight(endpoint, "/") + "/v1",
		httpClient:  &http.Client{},
		model:       model,
		temperature: temperature,
		limiter:     limiter,
	}
}

// Name returns the provider identifier.
func (p *OllamaProvider) Name() string {
	return p.name
}

// Chat sends messages and returns the complete response.
func (p *OllamaProvider) Chat(ctx context.Context, messages []Message) (Reply, error) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return Reply{}, err
		}
	}

	resp, err := p.createChatCompletion(ctx, ollamaChatRequest{
		Model:       p.model,
		Messages:    mergeConsecutiveSystemMessagesOllama(toOllamaMessages(messages)),
		Temperature: float32(p.temperature),
	})
	if err != nil {
		return Reply{}, err
	}

	if len(resp.Choices) == 0 {
		return Reply{}, errors.New("no response choices")
	}

	msg := resp.Choices[0].Message
	return Reply{Content: msg.Content, Reasoning: msg.reasoning()}, nil
}

type chatCompletionResponse struct {
	Choices []chatCompletionChoice `json:"choices"`
}

type chatCompletionChoice struct {
	Message chatCompletionMessage `json:"message"`
}

type chatCompletionMessage struct {
	Role             string `json:"role"`
	Content          string `json:"content"`
	Reasoning        string `json:"reasoning,omitempty"`
	ReasoningContent string `json:"reasoning_content,omitempty"`
}

type ollamaChatRequest struct {
	Model       string             `json:"model"`
	Messages    []ollamaReqMessage `json:"messages"`
	Temperature float32            `json:"temperature,omitempty"`
}

type ollamaReqMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (m chatCompletionMessage) reasoning() string {
	if m.Reasoning != "" {
		return m.Reasoning
	}
	return m.ReasoningContent
}

func (p *OllamaProvider) createChatCompletion(ctx context.Context, req ollamaChatRequest) (*chatCompletionResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	url := p.baseURL + "/chat/completions"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("chat completion status %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var decoded chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}

	return &decoded, nil
}

func toOllamaMessages(messages []Message) []ollamaReqMessage {
	result := make([]ollamaReqMessage, len(messages))
	for i, m := range messages {
		result[i] = ollamaReqMessage{Role: m.Role, Content: m.Content}
	}
	return result
}

// mergeConsecutiveSystemMessagesOllama merges consecutive system messages into a single message.
func mergeConsecutiveSystemMessagesOllama(messages []ollamaReqMessage) []ollamaReqMessage {
	if len(messages) == 0 {
		return messages
	}

	result := make([]ollamaReqMessage, 0, len(messages))
	var systemBuffer strings.Builder
	inSystemRun := false

	flush := func() {
		result = append(result, ollamaReqMessage{
			Role:    "system",
			Content: systemBuffer.String(),
		})
		systemBuffer.Reset()
		inSystemRun = false
	}

	for _, msg := range messages {
		if msg.Role == "system" {
			if inSystemRun {
				systemBuffer.WriteString("\n\n")
			} else {
				inSystemRun = true
			}
			systemBuffer.WriteString(msg.Content)
			continue
		}
		if inSystemRun {
			flush()
		}
		result = append(result, msg)
	}
	if inSystemRun {
		flush()
	}

	log.Debug().
		Int("original_count", len(messages)).
		Int("merged_count", len(result)).
		Msg("Ollama: Merged consecutive system messages")

	return result
}

// Close closes idle HTTP connections
func (p *OllamaProvider) Close() error {
	if p.httpClient != nil {
		p.httpClient.CloseIdleConnections()
	}
	return nil
}
