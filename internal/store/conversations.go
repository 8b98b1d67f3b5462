package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/xonecas/arona-chat/internal/model"
)

const conversationColumns = `c.id, c.created_at, c.updated_at, c.title, c.student_name`

// CreateConversation creates a conversation bound to a student. The student is
// created with the default prompt if it does not exist yet.
func (s *Store) CreateConversation(data model.ConversationData) (*model.Conversation, error) {
	if data.StudentName == "" {
		return nil, errors.New("student name is required")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := ensureStudent(tx, data.StudentName); err != nil {
		return nil, fmt.Errorf("ensure student: %w", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC()

	_, err = tx.Exec(`
		INSERT INTO conversations (id, created_at, updated_at, title, student_name)
		VALUES (?, ?, ?, ?, ?)
	`, id, now, now, nullString(data.Title), data.StudentName)
	if err != nil {
		return nil, fmt.Errorf("insert conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	return &model.Conversation{
		ID:          id,
		CreatedAt:   now,
		UpdatedAt:   now,
		Title:       data.Title,
		StudentName: data.StudentName,
	}, nil
}

// GetConversation retrieves a conversation by ID.
func (s *Store) GetConversation(id string) (*model.Conversation, error) {
	return getConversation(s.db, id)
}

// GetConversationWithStudent retrieves a conversation joined with its student profile.
func (s *Store) GetConversationWithStudent(id string) (*model.ConversationWithStudent, error) {
	row := s.db.QueryRow(`
		SELECT `+conversationColumns+`, st.id, st.name, st.avatars, st.prompt
		FROM conversations c
		LEFT JOIN students st ON st.name = c.student_name
		WHERE c.id = ?
	`, id)

	cw, err := scanConversationWithStudent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return cw, err
}

// ListConversations returns all conversations with their students, most recently updated first.
func (s *Store) ListConversations() ([]*model.ConversationWithStudent, error) {
	rows, err := s.db.Query(`
		SELECT ` + conversationColumns + `, st.id, st.name, st.avatars, st.prompt
		FROM conversations c
		LEFT JOIN students st ON st.name = c.student_name
		ORDER BY c.updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var conversations []*model.ConversationWithStudent
	for rows.Next() {
		cw, err := scanConversationWithStudent(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, cw)
	}

	return conversations, rows.Err()
}

// UpdateConversation applies a title change and bumps updated_at.
func (s *Store) UpdateConversation(id string, update model.ConversationUpdate) (*model.Conversation, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	conv, err := getConversation(tx, id)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		conv.Title = update.Title
	}
	conv.UpdatedAt = time.Now().UTC()

	if _, err := tx.Exec(`
		UPDATE conversations SET title = ?, updated_at = ? WHERE id = ?
	`, nullString(conv.Title), conv.UpdatedAt, id); err != nil {
		return nil, fmt.Errorf("update conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return conv, nil
}

// DeleteConversation deletes a conversation and its messages (via CASCADE),
// returning the deleted record.
func (s *Store) DeleteConversation(id string) (*model.Conversation, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	conv, err := getConversation(tx, id)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(`DELETE FROM conversations WHERE id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete conversation: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return conv, nil
}

// CountConversations returns the total number of conversations.
func (s *Store) CountConversations() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM conversations`).Scan(&count)
	return count, err
}

func getConversation(q queryer, id string) (*model.Conversation, error) {
	var c model.Conversation
	var title sql.NullString
	err := q.QueryRow(`
		SELECT `+conversationColumns+` FROM conversations c WHERE c.id = ?
	`, id).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt, &title, &c.StudentName)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if title.Valid {
		c.Title = &title.String
	}
	return &c, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanConversationWithStudent(row scanner) (*model.ConversationWithStudent, error) {
	var cw model.ConversationWithStudent
	var title sql.NullString
	var studentID sql.NullInt64
	var studentName, avatars, prompt sql.NullString

	err := row.Scan(&cw.ID, &cw.CreatedAt, &cw.UpdatedAt, &title, &cw.StudentName,
		&studentID, &studentName, &avatars, &prompt)
	if err != nil {
		return nil, err
	}
	if title.Valid {
		cw.Title = &title.String
	}
	if studentID.Valid {
		cw.Student = &model.Student{
			ID:      studentID.Int64,
			Name:    studentName.String,
			Avatars: decodeAvatars(avatars.String),
			Prompt:  prompt.String,
		}
	}
	return &cw, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
