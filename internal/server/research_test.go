package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/seeker/internal/engine"
	"github.com/mohammad-safakhou/seeker/internal/store"
)

type stubResearcher struct {
	lastReq engine.Request
	result  *engine.Result
	err     error
}

func (s *stubResearcher) Research(_ context.Context, req engine.Request) (*engine.Result, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

func newResearchHandler(t *testing.T, r Researcher) (*ResearchHandler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &ResearchHandler{
		Store:  &store.Store{DB: db},
		Engine: r,
		Logger: log.New(log.Writer(), "[RESEARCH] ", log.LstdFlags),
	}, mock
}

func TestResearchReturnsEngineResult(t *testing.T) {
	e := echo.New()
	stub := &stubResearcher{result: &engine.Result{
		Answer:        "grounded answer [1]",
		Sources:       []engine.RankedDocument{{RawResult: engine.RawResult{URL: "https://reuters.com/a", Title: "story"}, Relevance: 0.9}},
		SearchQueries: []string{"query"},
		AutoApplied:   engine.AutoApplied{Search: true},
	}}
	h, _ := newResearchHandler(t, stub)

	req := httptest.NewRequest(http.MethodPost, "/api/research", strings.NewReader(`{"query":"what happened today?"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "u1")

	if err := h.research(ctx); err != nil {
		t.Fatalf("research: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	var resp ResearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Answer != "grounded answer [1]" || len(resp.Sources) != 1 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !resp.AutoApplied.Search {
		t.Fatalf("auto_applied not propagated: %+v", resp.AutoApplied)
	}
	if stub.lastReq.Query != "what happened today?" {
		t.Fatalf("engine received %q", stub.lastReq.Query)
	}
}

func TestResearchRequiresQuery(t *testing.T) {
	e := echo.New()
	h, _ := newResearchHandler(t, &stubResearcher{})

	req := httptest.NewRequest(http.MethodPost, "/api/research", strings.NewReader(`{"query":""}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "u1")

	err := h.research(ctx)
	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestResearchThreadFeedsHistoryAndPersistsTurns(t *testing.T) {
	e := echo.New()
	stub := &stubResearcher{result: &engine.Result{Answer: "follow-up answer"}}
	h, mock := newResearchHandler(t, stub)

	created := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)

	// history load
	mock.ExpectQuery(`SELECT t.id, t.space_id, t.title, t.created_at`).
		WithArgs("th1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "space_id", "title", "created_at"}).
			AddRow("th1", "sp1", "topic", created))
	mock.ExpectQuery(`SELECT id, thread_id, role, content, sources, created_at FROM messages`).
		WithArgs("th1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "thread_id", "role", "content", "sources", "created_at"}).
			AddRow("m1", "th1", "user", "earlier question", nil, created).
			AddRow("m2", "th1", "assistant", "earlier answer", nil, created.Add(time.Minute)))

	// persist user turn
	mock.ExpectQuery(`SELECT t.id, t.space_id, t.title, t.created_at`).
		WithArgs("th1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "space_id", "title", "created_at"}).
			AddRow("th1", "sp1", "topic", created))
	mock.ExpectQuery(`INSERT INTO messages`).
		WithArgs("th1", "user", "follow-up?", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("m3"))

	// persist assistant turn
	mock.ExpectQuery(`SELECT t.id, t.space_id, t.title, t.created_at`).
		WithArgs("th1", "u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "space_id", "title", "created_at"}).
			AddRow("th1", "sp1", "topic", created))
	mock.ExpectQuery(`INSERT INTO messages`).
		WithArgs("th1", "assistant", "follow-up answer", nil).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("m4"))

	req := httptest.NewRequest(http.MethodPost, "/api/research", strings.NewReader(`{"query":"follow-up?","thread_id":"th1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.Set("user_id", "u1")

	if err := h.research(ctx); err != nil {
		t.Fatalf("research: %v", err)
	}

	if len(stub.lastReq.History) != 2 {
		t.Fatalf("history not passed to engine: %+v", stub.lastReq.History)
	}
	if stub.lastReq.History[0].Content != "earlier question" {
		t.Fatalf("history order wrong: %+v", stub.lastReq.History)
	}

	var resp ResearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.MessageID != "m4" {
		t.Fatalf("persisted message id missing: %+v", resp)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResearchMapsEngineErrors(t *testing.T) {
	e := echo.New()
	cases := []struct {
		err  error
		code int
	}{
		{engine.ErrInvalidRequest, http.StatusBadRequest},
		{&engine.PlanningError{Err: engine.ErrProviderExhausted}, http.StatusServiceUnavailable},
		{&engine.SynthesisError{Err: context.DeadlineExceeded}, http.StatusBadGateway},
	}
	for _, tc := range cases {
		h, _ := newResearchHandler(t, &stubResearcher{err: tc.err})

		req := httptest.NewRequest(http.MethodPost, "/api/research", strings.NewReader(`{"query":"anything"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		rec := httptest.NewRecorder()
		ctx := e.NewContext(req, rec)
		ctx.Set("user_id", "u1")

		err := h.research(ctx)
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != tc.code {
			t.Fatalf("error %v: expected %d, got %v", tc.err, tc.code, err)
		}
	}
}
