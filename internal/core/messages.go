package core

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/arona-chat/internal/model"
)

// cursor is the pagination state and local message sequence of one
// conversation. mu serializes every writer of the sequence.
type cursor struct {
	mu       sync.Mutex
	page     int
	hasMore  bool
	messages []model.Message
}

func newCursor() *cursor {
	return &cursor{page: 1, hasMore: true}
}

// Messages keeps the paginated message sequences of open conversations.
type Messages struct {
	gw    Gateway
	store *Store
	bus   *EventBus

	mu      sync.Mutex
	cursors map[string]*cursor
}

// NewMessages creates the message cursors. Fetch failures are recorded in
// store's message error slot.
func NewMessages(gw Gateway, store *Store, bus *EventBus) *Messages {
	return &Messages{
		gw:      gw,
		store:   store,
		bus:     bus,
		cursors: make(map[string]*cursor),
	}
}

func (m *Messages) cursor(conversationID string) *cursor {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.cursors[conversationID]
	if !ok {
		c = newCursor()
		m.cursors[conversationID] = c
	}
	return c
}

func (m *Messages) lookup(conversationID string) (*cursor, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.cursors[conversationID]
	return c, ok
}

// Reset rewinds the cursor to page 1 and clears the local sequence.
func (m *Messages) Reset(conversationID string) {
	c := m.cursor(conversationID)
	c.mu.Lock()
	c.page = 1
	c.hasMore = true
	c.messages = nil
	c.mu.Unlock()

	m.bus.Publish(Event{Type: EventMessagesChanged, ConversationID: conversationID, Data: MessagesData{Page: 1, HasMore: true}})
}

// Close discards the cursor and its sequence.
func (m *Messages) Close(conversationID string) {
	m.mu.Lock()
	delete(m.cursors, conversationID)
	m.mu.Unlock()
}

// FetchNextPage fetches the cursor's current page and merges it into the
// sequence. It returns the number of messages received. Calls for the same
// conversation are serialized; an exhausted cursor returns without a call.
// On failure the cursor is left unchanged.
func (m *Messages) FetchNextPage(ctx context.Context, conversationID string, pageSize int) (int, error) {
	c := m.cursor(conversationID)
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasMore || pageSize < 1 {
		return 0, nil
	}

	page := c.page
	batch, err := m.gw.ListMessagesPage(ctx, conversationID, page, pageSize)
	if err != nil {
		log.Error().Err(err).Str("conversation_id", conversationID).Int("page", page).Msg("fetch messages failed")
		m.store.recordError(CategoryMessage, "fetch messages", err)
		return 0, err
	}

	added := mergeMessages(&c.messages, batch)
	c.page++
	c.hasMore = len(batch) == pageSize
	m.store.clearError(CategoryMessage)

	log.Debug().Str("conversation_id", conversationID).Int("page", page).Int("count", len(batch)).Bool("has_more", c.hasMore).Msg("messages page fetched")
	m.bus.Publish(Event{
		Type:           EventMessagesChanged,
		ConversationID: conversationID,
		Data:           MessagesData{Added: added, Page: c.page, HasMore: c.hasMore},
	})
	return len(batch), nil
}

// Reload replaces the local sequence with the full persisted history and
// marks the cursor exhausted. On failure the sequence is left unchanged.
func (m *Messages) Reload(ctx context.Context, conversationID string) error {
	c := m.cursor(conversationID)
	c.mu.Lock()

	history, err := m.gw.ListMessages(ctx, conversationID)
	if err != nil {
		c.mu.Unlock()
		log.Error().Err(err).Str("conversation_id", conversationID).Msg("reload messages failed")
		return err
	}

	c.messages = nil
	added := mergeMessages(&c.messages, history)
	c.hasMore = false
	page := c.page
	c.mu.Unlock()

	log.Debug().Str("conversation_id", conversationID).Int("count", len(history)).Msg("messages reloaded")
	m.bus.Publish(Event{
		Type:           EventMessagesChanged,
		ConversationID: conversationID,
		Data:           MessagesData{Added: added, Page: page, Appended: true},
	})
	return nil
}

// Append merges persisted messages into the sequence under the
// conversation's writer lock.
func (m *Messages) Append(conversationID string, msgs ...model.Message) {
	c := m.cursor(conversationID)
	c.mu.Lock()
	added := mergeMessages(&c.messages, msgs)
	page, hasMore := c.page, c.hasMore
	c.mu.Unlock()

	if len(added) == 0 {
		return
	}
	m.bus.Publish(Event{
		Type:           EventMessagesChanged,
		ConversationID: conversationID,
		Data:           MessagesData{Added: added, Page: page, HasMore: hasMore, Appended: true},
	})
}

// Messages returns a copy of the local sequence in ascending index order.
func (m *Messages) Messages(conversationID string) []model.Message {
	c, ok := m.lookup(conversationID)
	if !ok {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Message(nil), c.messages...)
}

// HasMore reports whether older pages remain to be fetched.
func (m *Messages) HasMore(conversationID string) bool {
	c, ok := m.lookup(conversationID)
	if !ok {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hasMore
}

// Page returns the next page the cursor will fetch.
func (m *Messages) Page(conversationID string) int {
	c, ok := m.lookup(conversationID)
	if !ok {
		return 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.page
}

// MaxIndex returns the highest index in the local sequence.
func (m *Messages) MaxIndex(conversationID string) (int, bool) {
	c, ok := m.lookup(conversationID)
	if !ok {
		return 0, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.messages) == 0 {
		return 0, false
	}
	return c.messages[len(c.messages)-1].Index, true
}

// mergeMessages inserts batch into seq keeping ascending index order.
// Messages whose index is already present are skipped. It returns the
// messages actually added.
func mergeMessages(seq *[]model.Message, batch []model.Message) []model.Message {
	if len(batch) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(*seq))
	for _, msg := range *seq {
		seen[msg.Index] = struct{}{}
	}

	var added []model.Message
	for _, msg := range batch {
		if _, dup := seen[msg.Index]; dup {
			continue
		}
		seen[msg.Index] = struct{}{}
		added = append(added, msg)
	}
	if len(added) == 0 {
		return nil
	}

	*seq = append(*seq, added...)
	sort.SliceStable(*seq, func(i, j int) bool {
		return (*seq)[i].Index < (*seq)[j].Index
	})
	return added
}
