package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xonecas/arona-chat/internal/model"
)

const messageColumns = `id, conversation_id, role, content, name, idx, created_at`

// CreateMessage appends a message to a conversation. When data.Index is nil the
// message is placed after the current last message. The conversation's
// updated_at is bumped in the same transaction.
func (s *Store) CreateMessage(data model.MessageData) (*model.Message, error) {
	if !data.Role.Valid() {
		return nil, fmt.Errorf("invalid role %q", data.Role)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := getConversation(tx, data.ConversationID); err != nil {
		return nil, err
	}

	var index int
	if data.Index != nil {
		index = *data.Index
	} else {
		var maxIdx sql.NullInt64
		if err := tx.QueryRow(`
			SELECT MAX(idx) FROM messages WHERE conversation_id = ?
		`, data.ConversationID).Scan(&maxIdx); err != nil {
			return nil, fmt.Errorf("max index: %w", err)
		}
		if maxIdx.Valid {
			index = int(maxIdx.Int64) + 1
		}
	}

	now := time.Now().UTC()
	result, err := tx.Exec(`
		INSERT INTO messages (conversation_id, role, content, name, created_at, idx)
		VALUES (?, ?, ?, ?, ?, ?)
	`, data.ConversationID, data.Role, data.Content, nullString(data.Name), now, index)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	id, _ := result.LastInsertId()

	if _, err := tx.Exec(`
		UPDATE conversations SET updated_at = ? WHERE id = ?
	`, now, data.ConversationID); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	m := &model.Message{
		ID:             id,
		ConversationID: data.ConversationID,
		Role:           data.Role,
		Content:        data.Content,
		Index:          index,
		CreatedAt:      now,
	}
	if data.Name != nil {
		m.Name = *data.Name
	}
	return m, nil
}

// ListMessages returns the full history of a conversation in ascending index order.
func (s *Store) ListMessages(conversationID string) ([]*model.Message, error) {
	rows, err := s.db.Query(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ?
		ORDER BY idx ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	return scanMessages(rows)
}

// ListMessagesPage returns one page of history in ascending index order.
// Pages are 1-indexed; a page past the end, or a non-positive page or size,
// yields an empty slice.
func (s *Store) ListMessagesPage(conversationID string, page, pageSize int) ([]*model.Message, error) {
	if page < 1 || pageSize < 1 {
		return []*model.Message{}, nil
	}

	rows, err := s.db.Query(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ?
		ORDER BY idx ASC
		LIMIT ? OFFSET ?
	`, conversationID, pageSize, (page-1)*pageSize)
	if err != nil {
		return nil, fmt.Errorf("query message page: %w", err)
	}
	return scanMessages(rows)
}

// LastMessage returns the highest-index message of a conversation, or ErrNotFound
// when the history is empty.
func (s *Store) LastMessage(conversationID string) (*model.Message, error) {
	rows, err := s.db.Query(`
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = ?
		ORDER BY idx DESC
		LIMIT 1
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query last message: %w", err)
	}
	messages, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	if len(messages) == 0 {
		return nil, ErrNotFound
	}
	return messages[0], nil
}

// CountMessages returns the number of messages in a conversation.
func (s *Store) CountMessages(conversationID string) (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM messages WHERE conversation_id = ?`, conversationID).Scan(&count)
	return count, err
}

func scanMessages(rows *sql.Rows) ([]*model.Message, error) {
	defer rows.Close()

	messages := []*model.Message{}
	for rows.Next() {
		var m model.Message
		var name sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &name, &m.Index, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if name.Valid {
			m.Name = name.String
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

// IsNotFound reports whether err is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
