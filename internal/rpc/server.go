package rpc

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/arona-chat/internal/constants"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// maxFrameSize bounds a single JSON frame. Full histories travel in one frame.
const maxFrameSize = 16 << 20

const keepAliveInterval = 25 * time.Second

// Server exposes a Dispatcher over websocket connections.
type Server struct {
	d    *Dispatcher
	opts *websocket.AcceptOptions
}

// NewServer creates a websocket server. insecureSkipVerify disables the
// origin check and is meant for local development only.
func NewServer(d *Dispatcher, insecureSkipVerify bool) *Server {
	return &Server{
		d:    d,
		opts: &websocket.AcceptOptions{InsecureSkipVerify: insecureSkipVerify},
	}
}

// ServeHTTP upgrades the request and serves calls until the peer disconnects.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, s.opts)
	if err != nil {
		return // Accept already wrote the error response
	}
	conn.SetReadLimit(maxFrameSize)

	sess := newSession(s.d, conn)
	sess.run(r.Context())
}

type session struct {
	d    *Dispatcher
	conn *websocket.Conn
	send chan Response

	mu       sync.Mutex
	inflight map[string]context.CancelFunc
	wg       sync.WaitGroup
}

func newSession(d *Dispatcher, conn *websocket.Conn) *session {
	return &session{
		d:        d,
		conn:     conn,
		send:     make(chan Response, 64),
		inflight: make(map[string]context.CancelFunc),
	}
}

func (s *session) run(parent context.Context) {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	go s.writeLoop(ctx)
	go keepAlive(ctx, s.conn)

	log.Debug().Msg("rpc session opened")
	defer log.Debug().Msg("rpc session closed")

	for {
		var req Request
		if err := wsjson.Read(ctx, s.conn, &req); err != nil {
			if websocket.CloseStatus(err) == -1 && !errors.Is(err, context.Canceled) {
				log.Warn().Err(err).Msg("rpc read failed")
			}
			break
		}

		if req.Cancel {
			s.cancel(req.ID)
			continue
		}
		s.start(ctx, req)
	}

	s.cancelAll()
	s.wg.Wait()
	_ = s.conn.Close(websocket.StatusNormalClosure, "bye")
}

func (s *session) start(ctx context.Context, req Request) {
	callCtx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.inflight[req.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.finish(req.ID)

		result, rpcErr := s.d.Dispatch(callCtx, req.Method, req.Params)
		if rpcErr == nil && callCtx.Err() != nil {
			rpcErr = &Error{Code: CodeCancelled, Message: callCtx.Err().Error()}
			result = nil
		}

		select {
		case s.send <- Response{ID: req.ID, Result: result, Error: rpcErr}:
		case <-ctx.Done():
		}
	}()
}

func (s *session) finish(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cancel, ok := s.inflight[id]; ok {
		cancel()
		delete(s.inflight, id)
	}
}

func (s *session) cancel(id string) {
	s.mu.Lock()
	cancel, ok := s.inflight[id]
	s.mu.Unlock()
	if ok {
		log.Debug().Str("request_id", id).Msg("rpc call cancelled by peer")
		cancel()
	}
}

func (s *session) cancelAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cancel := range s.inflight {
		cancel()
	}
}

func (s *session) writeLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case resp := <-s.send:
			writeCtx, cancel := context.WithTimeout(ctx, constants.RPCWriteTimeout)
			if err := wsjson.Write(writeCtx, s.conn, resp); err != nil {
				log.Warn().Err(err).Str("request_id", resp.ID).Msg("rpc write failed")
			}
			cancel()
		}
	}
}

func keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(keepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			_ = conn.Ping(pingCtx)
			cancel()
		}
	}
}
