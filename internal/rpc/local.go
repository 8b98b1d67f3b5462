package rpc

import (
	"context"
	"encoding/json"
	"fmt"
)

// Local invokes a Dispatcher in-process.
type Local struct {
	d *Dispatcher
}

// NewLocal creates an in-process invoker.
func NewLocal(d *Dispatcher) *Local {
	return &Local{d: d}
}

// Invoke runs the handler on its own goroutine so a cancelled ctx stops the
// wait immediately. The handler observes the same ctx.
func (l *Local) Invoke(ctx context.Context, method string, params any, result any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}

	type outcome struct {
		raw json.RawMessage
		err *Error
	}
	done := make(chan outcome, 1)
	go func() {
		r, e := l.d.Dispatch(ctx, method, raw)
		done <- outcome{r, e}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case out := <-done:
		if out.err != nil {
			return out.err
		}
		return decodeResult(out.raw, result)
	}
}

// Close is a no-op.
func (l *Local) Close() error {
	return nil
}
