package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/xonecas/arona-chat/internal/constants"
	"github.com/xonecas/arona-chat/internal/model"
)

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}

// DefaultPrompt returns the persona prompt used for students created on demand.
func DefaultPrompt(name string) string {
	return fmt.Sprintf(constants.PersonaPromptTemplate, name)
}

// CreateStudent inserts a new student. An empty prompt falls back to DefaultPrompt.
func (s *Store) CreateStudent(name string, avatars []string, prompt string) (*model.Student, error) {
	return createStudent(s.db, name, avatars, prompt)
}

// GetStudent retrieves a student by name.
func (s *Store) GetStudent(name string) (*model.Student, error) {
	return getStudent(s.db, name)
}

// EnsureStudent returns the named student, creating it with the default prompt if absent.
func (s *Store) EnsureStudent(name string) (*model.Student, error) {
	return ensureStudent(s.db, name)
}

// AddStudentAvatar appends an avatar URL to a student unless it is already present.
func (s *Store) AddStudentAvatar(name, avatar string) error {
	st, err := getStudent(s.db, name)
	if err != nil {
		return err
	}
	for _, a := range st.Avatars {
		if a == avatar {
			return nil
		}
	}
	encoded, err := json.Marshal(append(st.Avatars, avatar))
	if err != nil {
		return fmt.Errorf("encode avatars: %w", err)
	}
	if _, err := s.db.Exec(`UPDATE students SET avatars = ? WHERE name = ?`, string(encoded), name); err != nil {
		return fmt.Errorf("update avatars: %w", err)
	}
	return nil
}

// ListStudents returns all students ordered by name.
func (s *Store) ListStudents() ([]*model.Student, error) {
	rows, err := s.db.Query(`SELECT id, name, avatars, prompt FROM students ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query students: %w", err)
	}
	defer rows.Close()

	var students []*model.Student
	for rows.Next() {
		var st model.Student
		var avatars string
		if err := rows.Scan(&st.ID, &st.Name, &avatars, &st.Prompt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		st.Avatars = decodeAvatars(avatars)
		students = append(students, &st)
	}
	return students, rows.Err()
}

func createStudent(q queryer, name string, avatars []string, prompt string) (*model.Student, error) {
	if prompt == "" {
		prompt = DefaultPrompt(name)
	}
	if avatars == nil {
		avatars = []string{}
	}
	encoded, err := json.Marshal(avatars)
	if err != nil {
		return nil, fmt.Errorf("encode avatars: %w", err)
	}

	result, err := q.Exec(`
		INSERT INTO students (name, avatars, prompt) VALUES (?, ?, ?)
	`, name, string(encoded), prompt)
	if err != nil {
		return nil, fmt.Errorf("insert student: %w", err)
	}
	id, _ := result.LastInsertId()

	return &model.Student{ID: id, Name: name, Avatars: avatars, Prompt: prompt}, nil
}

func getStudent(q queryer, name string) (*model.Student, error) {
	var st model.Student
	var avatars string
	err := q.QueryRow(`
		SELECT id, name, avatars, prompt FROM students WHERE name = ?
	`, name).Scan(&st.ID, &st.Name, &avatars, &st.Prompt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get student: %w", err)
	}
	st.Avatars = decodeAvatars(avatars)
	return &st, nil
}

func ensureStudent(q queryer, name string) (*model.Student, error) {
	st, err := getStudent(q, name)
	if err == nil {
		return st, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	log.Debug().Str("student", name).Msg("creating student with default prompt")
	return createStudent(q, name, nil, "")
}

// decodeAvatars accepts a JSON array; legacy rows holding a bare URL become a one-element list.
func decodeAvatars(raw string) []string {
	var avatars []string
	if err := json.Unmarshal([]byte(raw), &avatars); err == nil {
		return avatars
	}
	if raw == "" {
		return []string{}
	}
	return []string{raw}
}
