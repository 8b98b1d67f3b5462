package rpc

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Handler serves one method. The returned value is encoded as the result.
type Handler func(ctx context.Context, params json.RawMessage) (any, error)

// Typed adapts a function taking decoded params into a Handler.
// Malformed params fail with CodeInvalidParams.
func Typed[P any, R any](fn func(ctx context.Context, params P) (R, error)) Handler {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		var params P
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &params); err != nil {
				return nil, Errorf(CodeInvalidParams, "decode params: %v", err)
			}
		}
		return fn(ctx, params)
	}
}

// Dispatcher routes method names to handlers.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]Handler)}
}

// Register binds method to h, replacing any previous handler.
func (d *Dispatcher) Register(method string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[method] = h
}

// Methods returns the registered method names, sorted.
func (d *Dispatcher) Methods() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make([]string, 0, len(d.handlers))
	for name := range d.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs the handler for method and returns its encoded result.
// Errors are always *Error.
func (d *Dispatcher) Dispatch(ctx context.Context, method string, params json.RawMessage) (json.RawMessage, *Error) {
	d.mu.RLock()
	h, ok := d.handlers[method]
	d.mu.RUnlock()
	if !ok {
		return nil, Errorf(CodeUnknownMethod, "unknown method %q", method)
	}

	result, err := h(ctx, params)
	if err != nil {
		rpcErr := toError(err)
		if rpcErr.Code == CodeInternal {
			log.Error().Err(err).Str("method", method).Msg("rpc handler failed")
		} else {
			log.Debug().Str("method", method).Str("code", string(rpcErr.Code)).Msg("rpc call rejected")
		}
		return nil, rpcErr
	}

	encoded, err := json.Marshal(result)
	if err != nil {
		return nil, Errorf(CodeInternal, "encode result: %v", err)
	}
	return encoded, nil
}
