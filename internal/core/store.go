package core

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/arona-chat/internal/constants"
	"github.com/xonecas/arona-chat/internal/model"
	"golang.org/x/sync/errgroup"
)

// StoreOptions configures new conversations.
type StoreOptions struct {
	DefaultTitle   string
	DefaultPersona string
}

// Store owns the ordered conversation list, the active selection and the
// loading and streaming flags.
//
// Operations never return errors. A failed Gateway call is logged, recorded in
// the last-error slot of its category and published as EventError; local state
// keeps its last-known-good value.
type Store struct {
	gw   Gateway
	bus  *EventBus
	opts StoreOptions

	mu            sync.RWMutex
	conversations []model.ConversationWithStudent
	activeID      string
	loading       int
	streaming     bool
	lastErr       map[ErrorCategory]error
}

// NewStore creates a conversation store.
func NewStore(gw Gateway, bus *EventBus, opts StoreOptions) *Store {
	if opts.DefaultTitle == "" {
		opts.DefaultTitle = constants.DefaultConversationTitle
	}
	if opts.DefaultPersona == "" {
		opts.DefaultPersona = constants.DefaultPersona
	}
	return &Store{
		gw:      gw,
		bus:     bus,
		opts:    opts,
		lastErr: make(map[ErrorCategory]error),
	}
}

// LoadConversations replaces the list with the backend's, resolving each
// entry's last message. The replacement is all-or-nothing.
func (s *Store) LoadConversations(ctx context.Context) {
	s.beginLoading()
	defer s.endLoading()

	list, err := s.gw.ListConversations(ctx)
	if err != nil {
		s.fail(CategoryConversation, "load conversations", err)
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.HistoryLoadConcurrency)
	for i := range list {
		g.Go(func() error {
			history, err := s.gw.ListMessages(gctx, list[i].ID)
			if err != nil {
				return fmt.Errorf("history of %s: %w", list[i].ID, err)
			}
			if n := len(history); n > 0 {
				list[i].LastMessage = history[n-1].Content
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.fail(CategoryConversation, "load conversations", err)
		return
	}

	sortConversations(list)

	s.mu.Lock()
	s.conversations = list
	s.lastErr[CategoryConversation] = nil
	s.mu.Unlock()

	log.Debug().Int("count", len(list)).Msg("conversations loaded")
	s.bus.Publish(Event{Type: EventConversationsLoaded, Data: len(list)})
}

// EnsureLoaded loads the list only when it is empty.
func (s *Store) EnsureLoaded(ctx context.Context) {
	s.mu.RLock()
	empty := len(s.conversations) == 0
	s.mu.RUnlock()
	if empty {
		s.LoadConversations(ctx)
	}
}

// CreateConversation creates a conversation bound to the default persona.
func (s *Store) CreateConversation(ctx context.Context) {
	s.CreateConversationWith(ctx, s.opts.DefaultPersona)
}

// CreateConversationWith creates a conversation bound to studentName, puts it
// at the front of the list without re-sorting and makes it active.
// Concurrent calls are not de-duplicated.
func (s *Store) CreateConversationWith(ctx context.Context, studentName string) {
	s.beginLoading()
	defer s.endLoading()

	title := s.opts.DefaultTitle
	conv, err := s.gw.CreateConversation(ctx, model.ConversationData{
		Title:       &title,
		StudentName: studentName,
	})
	if err != nil {
		s.fail(CategoryConversation, "create conversation", err)
		return
	}

	entry := conv.WithStudent()

	s.mu.Lock()
	s.conversations = append([]model.ConversationWithStudent{entry}, s.conversations...)
	previous := s.activeID
	s.activeID = conv.ID
	s.lastErr[CategoryConversation] = nil
	s.mu.Unlock()

	log.Info().Str("conversation_id", conv.ID).Str("student", studentName).Msg("conversation created")
	s.bus.Publish(Event{Type: EventConversationCreated, ConversationID: conv.ID, Data: entry})
	s.bus.PublishBlocking(Event{Type: EventActiveChanged, ConversationID: conv.ID, Data: ActiveData{PreviousID: previous, Navigate: true}})
}

// DeleteConversation removes the conversation once the backend confirms it.
// Deleting the active conversation clears the selection.
func (s *Store) DeleteConversation(ctx context.Context, id string) {
	if _, err := s.gw.DeleteConversation(ctx, id); err != nil {
		s.fail(CategoryConversation, "delete conversation", err)
		return
	}

	s.mu.Lock()
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			s.conversations = append(s.conversations[:i], s.conversations[i+1:]...)
			break
		}
	}
	wasActive := s.activeID == id
	if wasActive {
		s.activeID = ""
	}
	s.lastErr[CategoryConversation] = nil
	s.mu.Unlock()

	log.Info().Str("conversation_id", id).Msg("conversation deleted")
	s.bus.Publish(Event{Type: EventConversationDeleted, ConversationID: id})
	if wasActive {
		s.bus.PublishBlocking(Event{Type: EventActiveChanged, Data: ActiveData{PreviousID: id}})
	}
}

// UpdateConversation applies update remotely and merges the returned record
// into the local entry, keeping local-only fields.
func (s *Store) UpdateConversation(ctx context.Context, id string, update model.ConversationUpdate) {
	conv, err := s.gw.UpdateConversation(ctx, id, update)
	if err != nil {
		s.fail(CategoryConversation, "update conversation", err)
		return
	}

	s.mu.Lock()
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			s.conversations[i].Merge(conv)
			break
		}
	}
	sortConversations(s.conversations)
	s.lastErr[CategoryConversation] = nil
	s.mu.Unlock()

	s.bus.Publish(Event{Type: EventConversationUpdated, ConversationID: id})
}

// RefreshConversation re-reads one conversation, resolving its student
// profile. An entry the backend no longer knows is dropped.
func (s *Store) RefreshConversation(ctx context.Context, id string) {
	conv, err := s.gw.GetConversation(ctx, id)
	if err != nil {
		s.fail(CategoryConversation, "refresh conversation", err)
		return
	}

	s.mu.Lock()
	idx := s.indexOf(id)
	switch {
	case idx < 0:
	case conv == nil:
		s.conversations = append(s.conversations[:idx], s.conversations[idx+1:]...)
		if s.activeID == id {
			s.activeID = ""
		}
	default:
		entry := &s.conversations[idx]
		entry.Merge(model.Conversation{
			ID:          conv.ID,
			CreatedAt:   conv.CreatedAt,
			UpdatedAt:   conv.UpdatedAt,
			Title:       conv.Title,
			StudentName: conv.StudentName,
		})
		entry.Student = conv.Student
		sortConversations(s.conversations)
	}
	s.mu.Unlock()

	if conv == nil {
		s.bus.Publish(Event{Type: EventConversationDeleted, ConversationID: id})
		return
	}
	s.bus.Publish(Event{Type: EventConversationUpdated, ConversationID: id})
}

// SetActiveConversation selects id and asks the view to navigate to it.
// id must be in the list; it is not checked.
func (s *Store) SetActiveConversation(id string) {
	s.mu.Lock()
	previous := s.activeID
	s.activeID = id
	s.mu.Unlock()

	s.bus.PublishBlocking(Event{Type: EventActiveChanged, ConversationID: id, Data: ActiveData{PreviousID: previous, Navigate: true}})
}

// CloseConversation clears the selection.
func (s *Store) CloseConversation() {
	s.mu.Lock()
	previous := s.activeID
	s.activeID = ""
	s.mu.Unlock()

	s.bus.PublishBlocking(Event{Type: EventActiveChanged, Data: ActiveData{PreviousID: previous}})
}

// SortConversations re-applies the list ordering.
func (s *Store) SortConversations() {
	s.mu.Lock()
	sortConversations(s.conversations)
	s.mu.Unlock()

	s.bus.Publish(Event{Type: EventConversationsSorted})
}

// Conversations returns a copy of the ordered list.
func (s *Store) Conversations() []model.ConversationWithStudent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]model.ConversationWithStudent(nil), s.conversations...)
}

// ActiveConversationID returns the selected id, or "" when none is selected.
func (s *Store) ActiveConversationID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeID
}

// ActiveConversation returns the selected entry.
func (s *Store) ActiveConversation() (model.ConversationWithStudent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx := s.indexOf(s.activeID); idx >= 0 {
		return s.conversations[idx], true
	}
	return model.ConversationWithStudent{}, false
}

// Loading reports whether a load or create is in flight.
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading > 0
}

// Streaming reports whether a reply is being generated anywhere.
func (s *Store) Streaming() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.streaming
}

// LastError returns the most recent failure in category, cleared by the next
// success in the same category.
func (s *Store) LastError(category ErrorCategory) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr[category]
}

// beginStreaming claims the process-wide streaming flag for conversationID.
func (s *Store) beginStreaming(conversationID string) bool {
	s.mu.Lock()
	if s.streaming {
		s.mu.Unlock()
		return false
	}
	s.streaming = true
	s.mu.Unlock()

	s.bus.PublishBlocking(Event{Type: EventStreamingChanged, ConversationID: conversationID, Data: FlagData{Value: true}})
	return true
}

func (s *Store) endStreaming(conversationID string) {
	s.mu.Lock()
	s.streaming = false
	s.mu.Unlock()

	s.bus.PublishBlocking(Event{Type: EventStreamingChanged, ConversationID: conversationID, Data: FlagData{Value: false}})
}

// noteMessage refreshes an entry's lastMessage and recency after msg was
// persisted, then re-sorts.
func (s *Store) noteMessage(msg model.Message) {
	s.mu.Lock()
	idx := s.indexOf(msg.ConversationID)
	if idx < 0 {
		s.mu.Unlock()
		return
	}
	entry := &s.conversations[idx]
	entry.LastMessage = msg.Content
	if msg.CreatedAt.After(entry.UpdatedAt) {
		entry.UpdatedAt = msg.CreatedAt
	}
	sortConversations(s.conversations)
	s.mu.Unlock()

	s.bus.Publish(Event{Type: EventConversationUpdated, ConversationID: msg.ConversationID})
}

func (s *Store) recordError(category ErrorCategory, op string, err error) {
	s.mu.Lock()
	s.lastErr[category] = fmt.Errorf("%s: %w", op, err)
	s.mu.Unlock()

	s.bus.Publish(Event{Type: EventError, Data: ErrorData{Category: category, Op: op, Err: err}})
}

func (s *Store) clearError(category ErrorCategory) {
	s.mu.Lock()
	s.lastErr[category] = nil
	s.mu.Unlock()
}

func (s *Store) fail(category ErrorCategory, op string, err error) {
	log.Error().Err(err).Str("category", string(category)).Msg(op + " failed")
	s.recordError(category, op, err)
}

func (s *Store) beginLoading() {
	s.mu.Lock()
	s.loading++
	first := s.loading == 1
	s.mu.Unlock()
	if first {
		s.bus.Publish(Event{Type: EventLoadingChanged, Data: FlagData{Value: true}})
	}
}

func (s *Store) endLoading() {
	s.mu.Lock()
	s.loading--
	last := s.loading == 0
	s.mu.Unlock()
	if last {
		s.bus.Publish(Event{Type: EventLoadingChanged, Data: FlagData{Value: false}})
	}
}

// indexOf must be called with s.mu held.
func (s *Store) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i := range s.conversations {
		if s.conversations[i].ID == id {
			return i
		}
	}
	return -1
}

// sortConversations orders entries with a last message first, each group by
// descending updatedAt.
func sortConversations(list []model.ConversationWithStudent) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if hasA, hasB := a.LastMessage != "", b.LastMessage != ""; hasA != hasB {
			return hasA
		}
		return a.UpdatedAt.After(b.UpdatedAt)
	})
}
