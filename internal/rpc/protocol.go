// Package rpc carries named commands between the chat client and its backend.
//
// A Dispatcher maps method names to handlers. Callers reach it through an
// Invoker: Local runs handlers in-process, Client talks to a Server over a
// websocket. Both encode params and results as JSON so the boundary behaves
// the same either way.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Code classifies a failed call.
type Code string

const (
	CodeNotFound      Code = "not_found"
	CodeInvalidParams Code = "invalid_params"
	CodeUnknownMethod Code = "unknown_method"
	CodeCancelled     Code = "cancelled"
	CodeInternal      Code = "internal"
)

// Error is a failure reported by the far side of the boundary.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Errorf builds an Error with a formatted message.
func Errorf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// toError converts a handler error into its wire form.
func toError(err error) *Error {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &Error{Code: CodeCancelled, Message: err.Error()}
	}
	return &Error{Code: CodeInternal, Message: err.Error()}
}

// Request is one client-to-server frame. A frame with Cancel set aborts the
// in-flight request carrying the same ID.
type Request struct {
	ID     string          `json:"id"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Cancel bool            `json:"cancel,omitempty"`
}

// Response is one server-to-client frame.
type Response struct {
	ID     string          `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *Error          `json:"error,omitempty"`
}

// Invoker performs a named call. params is encoded as JSON; result, when
// non-nil, receives the decoded reply. Remote failures are returned as *Error,
// caller cancellation as the context's error.
type Invoker interface {
	Invoke(ctx context.Context, method string, params any, result any) error
	Close() error
}

func decodeResult(raw json.RawMessage, result any) error {
	if result == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}
