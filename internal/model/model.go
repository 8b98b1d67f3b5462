// Package model defines the records exchanged across the remote-procedure boundary.
//
// JSON field names match the payloads the backend commands expect, so the same
// types are used by the gateway (client side) and the backend (server side).
package model

import "time"

// Role identifies the author of a message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant:
		return true
	}
	return false
}

// Student is the persona bound to a conversation.
type Student struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Avatars []string `json:"avatars"`
	Prompt  string   `json:"prompt"`
}

// Conversation is the persisted conversation record.
type Conversation struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Title       *string   `json:"title"`
	StudentName string    `json:"studentName"`
}

// ConversationWithStudent is the read-side projection shown in conversation lists.
// It is never persisted. LastMessage is empty when the conversation has no history.
type ConversationWithStudent struct {
	ID          string    `json:"id"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	Title       *string   `json:"title"`
	StudentName string    `json:"student_name"`
	Student     *Student  `json:"student,omitempty"`
	LastMessage string    `json:"lastMessage,omitempty"`
}

// WithStudent projects a persisted conversation into its list form.
func (c Conversation) WithStudent() ConversationWithStudent {
	return ConversationWithStudent{
		ID:          c.ID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
		Title:       c.Title,
		StudentName: c.StudentName,
	}
}

// Merge copies the persisted fields of c into the projection, keeping
// local-only fields such as LastMessage and Student.
func (p *ConversationWithStudent) Merge(c Conversation) {
	p.ID = c.ID
	p.CreatedAt = c.CreatedAt
	p.UpdatedAt = c.UpdatedAt
	p.Title = c.Title
	p.StudentName = c.StudentName
}

// DisplayTitle returns the title, or the persona name when the title is unset.
func (p ConversationWithStudent) DisplayTitle() string {
	if p.Title != nil && *p.Title != "" {
		return *p.Title
	}
	return p.StudentName
}

// Message is one persisted turn of a conversation.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversationId"`
	Role           Role      `json:"role"`
	Content        string    `json:"content"`
	Name           string    `json:"name,omitempty"`
	Index          int       `json:"index"`
	CreatedAt      time.Time `json:"createdAt"`
}

// ConversationData is the payload for create_conversation.
type ConversationData struct {
	Title       *string `json:"title,omitempty"`
	StudentName string  `json:"studentName"`
}

// ConversationUpdate is the payload for update_conversation.
type ConversationUpdate struct {
	Title *string `json:"title,omitempty"`
}

// MessageData is the payload for create_message. Index is assigned by the
// backend when nil.
type MessageData struct {
	ConversationID string  `json:"conversationId"`
	Role           Role    `json:"role"`
	Content        string  `json:"content"`
	Name           *string `json:"name,omitempty"`
	Index          *int    `json:"index,omitempty"`
}

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}
