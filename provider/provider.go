package provider

import (
	"context"
	"errors"
	"time"

	"github.com/mohammad-safakhou/seeker/models"
	openai_provider "github.com/mohammad-safakhou/seeker/provider/openai"
)

// Client represents different LLM providers
type Client string

const (
	OpenAI Client = "openai"
)

// Provider is the interface all chat-completion implementations satisfy.
// The API key is passed per call so a rotating credential pool can feed it.
type Provider interface {
	Complete(ctx context.Context, apiKey string, messages []models.ChatMessage, params models.CompletionParams) (string, error)
}

// NewProvider creates a new LLM client based on the provided configuration
func NewProvider(client Client, baseURL string, timeout time.Duration) (Provider, error) {
	switch client {
	case OpenAI:
		return openai_provider.NewClient(baseURL, timeout), nil
	default:
		return nil, errors.New("unsupported LLM provider")
	}
}
