package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/arona-chat/internal/model"
)

// StreamState is the lifecycle stage of one generation attempt.
type StreamState string

const (
	StreamIdle       StreamState = "idle"
	StreamSubmitting StreamState = "submitting"
	StreamStreaming  StreamState = "streaming"
	StreamFinalizing StreamState = "finalizing"
	StreamCancelled  StreamState = "cancelled"
)

var (
	// ErrStreamBusy is returned by Submit while any reply is being generated.
	ErrStreamBusy = errors.New("a reply is already being generated")
	// ErrCancelled is returned by Submit when the attempt was cancelled.
	ErrCancelled = errors.New("generation cancelled")
	// ErrEmptyMessage is returned by Submit for blank content.
	ErrEmptyMessage = errors.New("message is empty")
)

// Coordinator drives one generation attempt at a time: it persists the user
// message, awaits the assistant reply and folds it into the history.
type Coordinator struct {
	gw       Gateway
	store    *Store
	messages *Messages
	bus      *EventBus

	mu             sync.Mutex
	state          StreamState
	conversationID string
	cancel         context.CancelFunc
	cancelled      bool
}

// NewCoordinator creates an idle coordinator.
func NewCoordinator(gw Gateway, store *Store, messages *Messages, bus *EventBus) *Coordinator {
	return &Coordinator{
		gw:       gw,
		store:    store,
		messages: messages,
		bus:      bus,
		state:    StreamIdle,
	}
}

// State returns the current stream state.
func (c *Coordinator) State() StreamState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// ConversationID returns the conversation of the attempt in progress.
func (c *Coordinator) ConversationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conversationID
}

// Submit sends content as a user message and blocks until the assistant
// reply is persisted and appended. The user message is kept whatever the
// outcome. Cancel, or cancelling ctx, aborts the wait and returns
// ErrCancelled without appending a reply. A cancel that arrives while the
// user message is being stored waits for the store to finish and skips the
// completion call.
func (c *Coordinator) Submit(ctx context.Context, conversationID, content string) (model.Message, error) {
	if strings.TrimSpace(content) == "" {
		return model.Message{}, ErrEmptyMessage
	}
	if !c.store.beginStreaming(conversationID) {
		return model.Message{}, ErrStreamBusy
	}
	defer c.store.endStreaming(conversationID)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.conversationID = conversationID
	c.cancel = cancel
	c.cancelled = false
	c.mu.Unlock()
	defer c.finish()

	c.transition(StreamSubmitting)

	// Cancel only takes effect once the user message is stored, so a
	// persisted message always reaches the local history.
	user, err := c.gw.CreateMessage(context.WithoutCancel(runCtx), model.MessageData{
		ConversationID: conversationID,
		Role:           model.RoleUser,
		Content:        content,
	})
	if err != nil {
		return model.Message{}, c.abort(runCtx, CategoryMessage, "send message", err)
	}
	c.messages.Append(conversationID, user)
	c.store.noteMessage(user)
	c.store.clearError(CategoryMessage)

	if runCtx.Err() != nil {
		return model.Message{}, c.abort(runCtx, CategoryStreaming, "chat completion", runCtx.Err())
	}
	c.transition(StreamStreaming)

	reply, err := c.gw.ChatCompletion(runCtx, user, conversationID)
	if err != nil {
		return model.Message{}, c.abort(runCtx, CategoryStreaming, "chat completion", err)
	}
	if runCtx.Err() != nil {
		return model.Message{}, c.abort(runCtx, CategoryStreaming, "chat completion", runCtx.Err())
	}

	c.transition(StreamFinalizing)

	if last, ok := c.messages.MaxIndex(conversationID); ok && reply.Index <= last {
		log.Warn().Str("conversation_id", conversationID).Int("index", reply.Index).Int("last_index", last).Msg("reply index not after history, reloading history")
		c.store.noteMessage(reply)
		if err := c.messages.Reload(context.WithoutCancel(ctx), conversationID); err != nil {
			c.store.fail(CategoryStreaming, "reload history", err)
			return reply, nil
		}
		c.store.clearError(CategoryStreaming)
		return reply, nil
	}
	c.messages.Append(conversationID, reply)
	c.store.noteMessage(reply)
	c.store.clearError(CategoryStreaming)

	log.Info().Str("conversation_id", conversationID).Int("index", reply.Index).Msg("reply received")
	return reply, nil
}

// Cancel aborts the attempt in progress. It reports whether there was one to
// cancel.
func (c *Coordinator) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel == nil || (c.state != StreamSubmitting && c.state != StreamStreaming) {
		return false
	}
	c.cancelled = true
	c.cancel()
	log.Info().Str("conversation_id", c.conversationID).Msg("generation cancelled")
	return true
}

// abort ends a failed attempt. Cancellation, by Cancel or by the caller's
// context, passes through the Cancelled state and is not recorded as an
// error.
func (c *Coordinator) abort(ctx context.Context, category ErrorCategory, op string, err error) error {
	c.mu.Lock()
	userCancelled := c.cancelled
	c.mu.Unlock()

	if userCancelled || ctx.Err() != nil {
		c.transition(StreamCancelled)
		return ErrCancelled
	}

	c.store.fail(category, op, err)
	return fmt.Errorf("%s: %w", op, err)
}

func (c *Coordinator) finish() {
	c.transition(StreamIdle)

	c.mu.Lock()
	c.cancel = nil
	c.conversationID = ""
	c.mu.Unlock()
}

func (c *Coordinator) transition(next StreamState) {
	c.mu.Lock()
	prev := c.state
	c.state = next
	convID := c.conversationID
	c.mu.Unlock()

	if prev == next {
		return
	}
	log.Debug().Str("conversation_id", convID).Str("old_state", string(prev)).Str("new_state", string(next)).Msg("stream state changed")
	c.bus.PublishBlocking(Event{
		Type:           EventStreamState,
		ConversationID: convID,
		Data:           StreamStateData{OldState: prev, NewState: next},
	})
}
