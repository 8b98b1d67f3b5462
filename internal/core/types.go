// Package core keeps the client-side view of conversations and messages in
// step with the backend.
package core

import (
	"context"
	"time"

	"github.com/xonecas/arona-chat/internal/model"
)

// Gateway is the remote surface core depends on. *gateway.Gateway satisfies it.
type Gateway interface {
	ListConversations(ctx context.Context) ([]model.ConversationWithStudent, error)
	GetConversation(ctx context.Context, id string) (*model.ConversationWithStudent, error)
	CreateConversation(ctx context.Context, data model.ConversationData) (model.Conversation, error)
	UpdateConversation(ctx context.Context, id string, update model.ConversationUpdate) (model.Conversation, error)
	DeleteConversation(ctx context.Context, id string) (model.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	ListMessagesPage(ctx context.Context, conversationID string, page, pageSize int) ([]model.Message, error)
	CreateMessage(ctx context.Context, data model.MessageData) (model.Message, error)
	ChatCompletion(ctx context.Context, message model.Message, conversationID string) (model.Message, error)
	SetStore(ctx context.Context, key string, value any) error
	GetStore(ctx context.Context, key string, out any) (bool, error)
}

// EventType identifies the type of event.
type EventType string

const (
	EventConversationsLoaded EventType = "conversations_loaded"
	EventConversationCreated EventType = "conversation_created"
	EventConversationUpdated EventType = "conversation_updated"
	EventConversationDeleted EventType = "conversation_deleted"
	EventConversationsSorted EventType = "conversations_sorted"
	EventActiveChanged       EventType = "active_changed"
	EventLoadingChanged      EventType = "loading_changed"
	EventStreamingChanged    EventType = "streaming_changed"
	EventMessagesChanged     EventType = "messages_changed"
	EventStreamState         EventType = "stream_state"
	EventError               EventType = "error"
	EventSettingsLoaded      EventType = "settings_loaded"
)

// Event represents a change in client state.
type Event struct {
	Type           EventType
	ConversationID string
	Data           interface{}
	Timestamp      time.Time
}

// ErrorCategory groups failures for the last-error slots.
type ErrorCategory string

const (
	CategoryConversation ErrorCategory = "conversation"
	CategoryMessage      ErrorCategory = "message"
	CategoryStreaming    ErrorCategory = "streaming"
)

// ErrorData contains data for error events.
type ErrorData struct {
	Category ErrorCategory
	Op       string
	Err      error
}

// FlagData carries the new value of a boolean flag.
type FlagData struct {
	Value bool
}

// ActiveData describes a selection change. Navigate is set when the view
// should switch to the conversation.
type ActiveData struct {
	PreviousID string
	Navigate   bool
}

// MessagesData describes messages merged into a conversation's sequence.
type MessagesData struct {
	Added    []model.Message
	Page     int
	HasMore  bool
	Appended bool
}

// StreamStateData contains data for stream state changes.
type StreamStateData struct {
	OldState StreamState
	NewState StreamState
}
