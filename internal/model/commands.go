package model

import "encoding/json"

// Command names understood by the backend.
const (
	CmdSetStore                  = "set_store"
	CmdGetStore                  = "get_store"
	CmdGetConversations          = "get_conversations"
	CmdGetConversationByID       = "get_conversation_by_id"
	CmdCreateConversation        = "create_conversation"
	CmdUpdateConversation        = "update_conversation"
	CmdDeleteConversation        = "delete_conversation"
	CmdGetMessages               = "get_messages_by_conversation_id"
	CmdGetMessagesWithPagination = "get_messages_by_conversation_id_with_pagination"
	CmdCreateMessage             = "create_message"
	CmdChatWithLLM               = "chat_with_llm"
)

// IDParams addresses a conversation.
type IDParams struct {
	ID string `json:"id"`
}

// CreateConversationParams is the payload of create_conversation.
type CreateConversationParams struct {
	Data ConversationData `json:"data"`
}

// UpdateConversationParams is the payload of update_conversation.
type UpdateConversationParams struct {
	ID   string             `json:"id"`
	Data ConversationUpdate `json:"data"`
}

// ConversationMessagesParams is the payload of get_messages_by_conversation_id.
type ConversationMessagesParams struct {
	ConversationID string `json:"conversationId"`
}

// MessagesPageParams is the payload of the paginated history command.
// Page is 1-indexed.
type MessagesPageParams struct {
	ConversationID string `json:"conversationId"`
	Page           int    `json:"page"`
	PageSize       int    `json:"pageSize"`
}

// CreateMessageParams is the payload of create_message.
type CreateMessageParams struct {
	Data MessageData `json:"data"`
}

// ChatParams is the payload of chat_with_llm. Message is the latest user
// message; when it carries an ID it is already persisted.
type ChatParams struct {
	Message        Message `json:"message"`
	ConversationID string  `json:"conversationId"`
}

// SetStoreParams is the payload of set_store.
type SetStoreParams struct {
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
}

// GetStoreParams is the payload of get_store.
type GetStoreParams struct {
	Key string `json:"key"`
}

// StoreValue is the reply of get_store. Value is nil when the key is unset.
type StoreValue struct {
	Key   string          `json:"key"`
	Found bool            `json:"found"`
	Value json.RawMessage `json:"value,omitempty"`
}
