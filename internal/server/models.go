package server

import (
	"encoding/json"

	"github.com/mohammad-safakhou/seeker/internal/engine"
)

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// IDResponse is a generic id response wrapper.
type IDResponse struct {
	ID string `json:"id"`
}

// MeResponse returns the current authenticated user id.
type MeResponse struct {
	UserID string `json:"user_id"`
}

// CreateSpaceRequest represents a new research space payload.
type CreateSpaceRequest struct {
	Title string `json:"title"`
}

// RenameSpaceRequest updates a space title.
type RenameSpaceRequest struct {
	Title string `json:"title"`
}

// CreateThreadRequest starts a new conversation inside a space.
type CreateThreadRequest struct {
	Title string `json:"title"`
}

// ResearchRequest is one research turn. ThreadID is optional; when set the
// turn and its answer are persisted to that thread and prior turns feed the
// model as history.
type ResearchRequest struct {
	Query        string   `json:"query"`
	ThreadID     string   `json:"thread_id,omitempty"`
	Search       bool     `json:"search"`
	Deep         bool     `json:"deep"`
	Thinking     bool     `json:"thinking"`
	CustomPrompt string   `json:"custom_prompt,omitempty"`
	Queries      []string `json:"queries,omitempty"`
}

// ResearchResponse is the orchestration outcome plus persistence ids.
type ResearchResponse struct {
	Answer        string                  `json:"answer"`
	Sources       []engine.RankedDocument `json:"sources"`
	SearchQueries []string                `json:"search_queries"`
	AutoApplied   engine.AutoApplied      `json:"auto_applied"`
	MessageID     string                  `json:"message_id,omitempty"`
}

// MessageView is one persisted thread turn.
type MessageView struct {
	ID      string          `json:"id"`
	Role    string          `json:"role"`
	Content string          `json:"content"`
	Sources json.RawMessage `json:"sources,omitempty"`
}
