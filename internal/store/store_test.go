package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &Store{DB: db}, mock
}

func TestCreateUserAndLookup(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(`INSERT INTO users`).
		WithArgs("a@b.com", "hash").
		WillReturnResult(sqlmock.NewResult(0, 1))
	if err := s.CreateUser(ctx, "a@b.com", "hash"); err != nil {
		t.Fatalf("CreateUser: %v", err)
	}

	mock.ExpectQuery(`SELECT id, password_hash FROM users`).
		WithArgs("a@b.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "password_hash"}).AddRow("u1", "hash"))
	id, hash, err := s.GetUserByEmail(ctx, "a@b.com")
	if err != nil || id != "u1" || hash != "hash" {
		t.Fatalf("GetUserByEmail: %v %q %q", err, id, hash)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSpaceOwnershipScoping(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, user_id, title, created_at FROM spaces WHERE`).
		WithArgs("sp1", "intruder").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "created_at"}))

	_, err := s.GetSpace(ctx, "sp1", "intruder")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign space, got %v", err)
	}
}

func TestDeleteSpaceRequiresMatchingRow(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectExec(`DELETE FROM spaces WHERE`).
		WithArgs("sp1", "u1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	if err := s.DeleteSpace(ctx, "sp1", "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCreateThreadChecksSpaceOwnership(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, user_id, title, created_at FROM spaces WHERE`).
		WithArgs("sp1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "title", "created_at"}).
			AddRow("sp1", "u1", "research", time.Now()))
	mock.ExpectQuery(`INSERT INTO threads`).
		WithArgs("sp1", "first question").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("th1"))

	id, err := s.CreateThread(ctx, "sp1", "u1", "first question")
	if err != nil || id != "th1" {
		t.Fatalf("CreateThread: %v %q", err, id)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertAndListMessagesRoundTrip(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()
	sources := json.RawMessage(`[{"url":"https://example.com"}]`)

	mock.ExpectQuery(`SELECT t.id, t.space_id, t.title, t.created_at`).
		WithArgs("th1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "space_id", "title", "created_at"}).
			AddRow("th1", "sp1", "q", time.Now()))
	mock.ExpectQuery(`INSERT INTO messages`).
		WithArgs("th1", "assistant", "the answer", []byte(sources)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("m1"))

	id, err := s.InsertMessage(ctx, "th1", "u1", "assistant", "the answer", sources)
	if err != nil || id != "m1" {
		t.Fatalf("InsertMessage: %v %q", err, id)
	}

	mock.ExpectQuery(`SELECT t.id, t.space_id, t.title, t.created_at`).
		WithArgs("th1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "space_id", "title", "created_at"}).
			AddRow("th1", "sp1", "q", time.Now()))
	mock.ExpectQuery(`SELECT id, thread_id, role, content, sources, created_at FROM messages`).
		WithArgs("th1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "thread_id", "role", "content", "sources", "created_at"}).
			AddRow("m0", "th1", "user", "question", nil, time.Now().Add(-time.Minute)).
			AddRow("m1", "th1", "assistant", "the answer", string(sources), time.Now()))

	msgs, err := s.ListMessages(ctx, "th1", "u1", 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != "user" || msgs[1].Role != "assistant" {
		t.Fatalf("chronological order violated: %+v", msgs)
	}
	if msgs[0].Sources != nil {
		t.Fatalf("user turn must carry no sources: %s", msgs[0].Sources)
	}
	if string(msgs[1].Sources) != string(sources) {
		t.Fatalf("sources round trip failed: %s", msgs[1].Sources)
	}
}

func TestInsertMessageRejectsForeignThread(t *testing.T) {
	s, mock := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT t.id, t.space_id, t.title, t.created_at`).
		WithArgs("th1", "intruder").
		WillReturnRows(sqlmock.NewRows([]string{"id", "space_id", "title", "created_at"}))

	if _, err := s.InsertMessage(ctx, "th1", "intruder", "user", "hello", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
