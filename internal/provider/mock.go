package provider

import (
	"context"
	"sync"
	"time"
)

// MockProvider is a test provider that returns predefined responses.
type MockProvider struct {
	name     string
	response string
	chatErr  error
	delay    time.Duration
	block    chan struct{}

	mu    sync.Mutex
	calls [][]Message
}

// NewMock creates a new mock provider.
func NewMock(name, response string) *MockProvider {
	return &MockProvider{
		name:     name,
		response: response,
	}
}

// WithChatError sets an error to return from Chat.
func (p *MockProvider) WithChatError(err error) *MockProvider {
	p.chatErr = err
	return p
}

// WithDelay makes Chat wait before answering. The wait honours ctx.
func (p *MockProvider) WithDelay(d time.Duration) *MockProvider {
	p.delay = d
	return p
}

// WithBlock makes Chat wait until release is closed or ctx is done.
func (p *MockProvider) WithBlock(release chan struct{}) *MockProvider {
	p.block = release
	return p
}

// Name returns the provider identifier.
func (p *MockProvider) Name() string {
	return p.name
}

// Chat returns the predefined response or error.
func (p *MockProvider) Chat(ctx context.Context, messages []Message) (Reply, error) {
	p.mu.Lock()
	p.calls = append(p.calls, append([]Message(nil), messages...))
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return Reply{}, ctx.Err()
		}
	}
	if p.block != nil {
		select {
		case <-p.block:
		case <-ctx.Done():
			return Reply{}, ctx.Err()
		}
	}
	if p.chatErr != nil {
		return Reply{}, p.chatErr
	}
	return Reply{Content: p.response}, nil
}

// Calls returns the message lists Chat has received.
func (p *MockProvider) Calls() [][]Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]Message(nil), p.calls...)
}

// MockFactory hands out one shared MockProvider regardless of model or key.
type MockFactory struct {
	Provider *MockProvider
}

func (f *MockFactory) Name() string { return f.Provider.Name() }

func (f *MockFactory) Create(model string, temperature float64, apiKey string) Provider {
	return f.Provider
}
