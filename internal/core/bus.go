package core

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/arona-chat/internal/constants"
)

// EventBus fans state changes out to subscribers, typically the UI.
type EventBus struct {
	mu          sync.RWMutex
	subscribers []chan Event
	bufferSize  int
	closed      bool

	dropped atomic.Int64
}

// NewEventBus creates a bus whose subscriber channels hold bufferSize events,
// never fewer than constants.MinEventBusBufferSize.
func NewEventBus(bufferSize int) *EventBus {
	if bufferSize < constants.MinEventBusBufferSize {
		bufferSize = constants.MinEventBusBufferSize
	}
	return &EventBus{
		bufferSize: bufferSize,
	}
}

// Subscribe returns a channel that receives events.
// The caller is responsible for reading from the channel to avoid blocking.
// Subscribing to a closed bus yields a closed channel.
func (b *EventBus) Subscribe() <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, b.bufferSize)
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Unsubscribe removes and closes a subscriber channel.
func (b *EventBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subscribers {
		if sub == ch {
			close(sub)
			b.subscribers = append(b.subscribers[:i], b.subscribers[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers without blocking. A subscriber
// with a full buffer misses the event.
func (b *EventBus) Publish(event Event) {
	b.send(event, 0)
}

// PublishBlocking sends an event, waiting up to EventBusPublishTimeout per
// subscriber. Used for events a view must not miss. It reports whether every
// subscriber received the event.
func (b *EventBus) PublishBlocking(event Event) bool {
	return b.send(event, constants.EventBusPublishTimeout)
}

// Dropped returns how many deliveries were skipped because a subscriber was
// full.
func (b *EventBus) Dropped() int64 {
	if b == nil {
		return 0
	}
	return b.dropped.Load()
}

func (b *EventBus) send(event Event, wait time.Duration) bool {
	if b == nil {
		return false
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := true
	for _, ch := range b.subscribers {
		if !deliver(ch, event, wait) {
			delivered = false
			b.dropped.Add(1)
			log.Debug().Str("event", string(event.Type)).Str("conversation_id", event.ConversationID).Msg("event dropped, subscriber full")
		}
	}
	return delivered
}

func deliver(ch chan Event, event Event, wait time.Duration) bool {
	if wait <= 0 {
		select {
		case ch <- event:
			return true
		default:
			return false
		}
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case ch <- event:
		return true
	case <-timer.C:
		return false
	}
}

// Close closes all subscriber channels. Later publishes are no-ops.
func (b *EventBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
