package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	_ "github.com/lib/pq"
)

// ErrNotFound is returned when a record does not exist or is not visible to
// the requesting user.
var ErrNotFound = errors.New("not found")

// Store persists users, research spaces, threads and messages.
type Store struct {
	DB *sql.DB
}

// New opens a postgres-backed store and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}
	return &Store{DB: db}, nil
}

// Space groups related research threads for one user.
type Space struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Thread is one conversation inside a space.
type Thread struct {
	ID        string    `json:"id"`
	SpaceID   string    `json:"space_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is one turn of a thread. Sources holds the ranked grounding
// documents of assistant turns as a JSON document.
type Message struct {
	ID        string          `json:"id"`
	ThreadID  string          `json:"thread_id"`
	Role      string          `json:"role"`
	Content   string          `json:"content"`
	Sources   json.RawMessage `json:"sources,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

func (s *Store) CreateUser(ctx context.Context, email, hash string) error {
	_, err := s.DB.ExecContext(ctx, `INSERT INTO users (email, password_hash) VALUES ($1,$2)`, email, hash)
	return err
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (id string, hash string, err error) {
	err = s.DB.QueryRowContext(ctx, `SELECT id, password_hash FROM users WHERE email=$1`, email).Scan(&id, &hash)
	return
}

func (s *Store) CreateSpace(ctx context.Context, userID, title string) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO spaces (user_id, title) VALUES ($1,$2) RETURNING id`, userID, title).Scan(&id)
	return id, err
}

func (s *Store) ListSpaces(ctx context.Context, userID string) ([]Space, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, user_id, title, created_at FROM spaces WHERE user_id=$1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Space
	for rows.Next() {
		var sp Space
		if err := rows.Scan(&sp.ID, &sp.UserID, &sp.Title, &sp.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (s *Store) GetSpace(ctx context.Context, id, userID string) (Space, error) {
	var sp Space
	err := s.DB.QueryRowContext(ctx, `SELECT id, user_id, title, created_at FROM spaces WHERE id=$1 AND user_id=$2`, id, userID).
		Scan(&sp.ID, &sp.UserID, &sp.Title, &sp.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Space{}, ErrNotFound
	}
	return sp, err
}

func (s *Store) RenameSpace(ctx context.Context, id, userID, title string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE spaces SET title=$1 WHERE id=$2 AND user_id=$3`, title, id, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteSpace removes the space and, via cascade, its threads and messages.
func (s *Store) DeleteSpace(ctx context.Context, id, userID string) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM spaces WHERE id=$1 AND user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (s *Store) CreateThread(ctx context.Context, spaceID, userID, title string) (string, error) {
	if _, err := s.GetSpace(ctx, spaceID, userID); err != nil {
		return "", err
	}
	var id string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO threads (space_id, title) VALUES ($1,$2) RETURNING id`, spaceID, title).Scan(&id)
	return id, err
}

func (s *Store) ListThreads(ctx context.Context, spaceID, userID string) ([]Thread, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT t.id, t.space_id, t.title, t.created_at
		FROM threads t JOIN spaces s ON s.id = t.space_id
		WHERE t.space_id=$1 AND s.user_id=$2
		ORDER BY t.created_at DESC`, spaceID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Thread
	for rows.Next() {
		var t Thread
		if err := rows.Scan(&t.ID, &t.SpaceID, &t.Title, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) GetThread(ctx context.Context, id, userID string) (Thread, error) {
	var t Thread
	err := s.DB.QueryRowContext(ctx, `
		SELECT t.id, t.space_id, t.title, t.created_at
		FROM threads t JOIN spaces s ON s.id = t.space_id
		WHERE t.id=$1 AND s.user_id=$2`, id, userID).
		Scan(&t.ID, &t.SpaceID, &t.Title, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Thread{}, ErrNotFound
	}
	return t, err
}

func (s *Store) DeleteThread(ctx context.Context, id, userID string) error {
	res, err := s.DB.ExecContext(ctx, `
		DELETE FROM threads t USING spaces s
		WHERE t.id=$1 AND s.id = t.space_id AND s.user_id=$2`, id, userID)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// InsertMessage appends one turn to a thread. Ownership is checked through
// the thread's space.
func (s *Store) InsertMessage(ctx context.Context, threadID, userID, role, content string, sources json.RawMessage) (string, error) {
	if _, err := s.GetThread(ctx, threadID, userID); err != nil {
		return "", err
	}
	var id string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO messages (thread_id, role, content, sources) VALUES ($1,$2,$3,$4) RETURNING id`,
		threadID, role, content, nullableJSON(sources)).Scan(&id)
	return id, err
}

// ListMessages returns the thread's turns in chronological order, capped at
// limit when limit > 0.
func (s *Store) ListMessages(ctx context.Context, threadID, userID string, limit int) ([]Message, error) {
	if _, err := s.GetThread(ctx, threadID, userID); err != nil {
		return nil, err
	}
	query := `SELECT id, thread_id, role, content, sources, created_at FROM messages WHERE thread_id=$1 ORDER BY created_at ASC`
	args := []interface{}{threadID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Message
	for rows.Next() {
		var m Message
		var sources sql.NullString
		if err := rows.Scan(&m.ID, &m.ThreadID, &m.Role, &m.Content, &sources, &m.CreatedAt); err != nil {
			return nil, err
		}
		if sources.Valid {
			m.Sources = json.RawMessage(sources.String)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullableJSON(raw json.RawMessage) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return []byte(raw)
}
