package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/xonecas/arona-chat/internal/constants"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// ErrClosed is returned for calls on a closed or disconnected client.
var ErrClosed = errors.New("rpc client closed")

// Client is an Invoker backed by a websocket connection to a Server.
type Client struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]chan Response
	err     error
	done    chan struct{}
}

// Dial connects to a Server at url (ws:// or wss://).
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	conn.SetReadLimit(maxFrameSize)

	cctx, cancel := context.WithCancel(context.Background())
	c := &Client{
		conn:    conn,
		ctx:     cctx,
		cancel:  cancel,
		pending: make(map[string]chan Response),
		done:    make(chan struct{}),
	}

	go c.readLoop()
	go keepAlive(cctx, conn)

	return c, nil
}

// Invoke sends one request and waits for its response. Cancelling ctx sends a
// cancel frame for the request and returns ctx.Err() without waiting.
func (c *Client) Invoke(ctx context.Context, method string, params any, result any) error {
	raw, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}

	id := uuid.NewString()
	ch := make(chan Response, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer c.forget(id)

	if err := c.write(ctx, Request{ID: id, Method: method, Params: raw}); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case <-ctx.Done():
		// Best effort: the server may already have finished.
		if err := c.write(c.ctx, Request{ID: id, Cancel: true}); err != nil {
			log.Debug().Err(err).Str("method", method).Msg("rpc cancel frame not sent")
		}
		return ctx.Err()
	case resp := <-ch:
		if resp.Error != nil {
			return resp.Error
		}
		return decodeResult(resp.Result, result)
	case <-c.done:
		return c.closedErr()
	}
}

// Close closes the connection and fails pending calls with ErrClosed.
func (c *Client) Close() error {
	c.cancel()
	err := c.conn.Close(websocket.StatusNormalClosure, "bye")
	<-c.done
	return err
}

func (c *Client) write(ctx context.Context, req Request) error {
	writeCtx, cancel := context.WithTimeout(ctx, constants.RPCWriteTimeout)
	defer cancel()
	return wsjson.Write(writeCtx, c.conn, req)
}

func (c *Client) readLoop() {
	defer close(c.done)

	for {
		var resp Response
		if err := wsjson.Read(c.ctx, c.conn, &resp); err != nil {
			c.mu.Lock()
			c.err = ErrClosed
			c.mu.Unlock()
			if c.ctx.Err() == nil {
				log.Warn().Err(err).Msg("rpc connection lost")
			}
			return
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.ID]
		c.mu.Unlock()
		if !ok {
			// Response to a call the caller already abandoned.
			continue
		}
		ch <- resp
	}
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrClosed
}
