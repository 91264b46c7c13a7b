package engine

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"
)

func newTestRotator() *Rotator {
	cfg := testConfig()
	return NewRotator(cfg.Engine, nil)
}

func TestNewPoolDropsEmptyAndDuplicateKeys(t *testing.T) {
	pool, err := NewPool("test", []string{"a", "", "b", "a", "c"})
	if err != nil {
		t.Fatalf("NewPool failed: %v", err)
	}
	if pool.Size() != 3 {
		t.Fatalf("expected 3 unique keys, got %d", pool.Size())
	}
	if got := pool.at(0); got != "a" {
		t.Fatalf("expected first key a, got %q", got)
	}

	if _, err := NewPool("empty", []string{"", ""}); err == nil {
		t.Fatal("expected error for empty pool")
	}
}

func TestRotatorSucceedsWithoutAdvancing(t *testing.T) {
	pool, _ := NewPool("test", []string{"a", "b"})
	r := newTestRotator()

	var used string
	err := r.Execute(context.Background(), pool, 0, func(_ context.Context, apiKey string) error {
		used = apiKey
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if used != "a" {
		t.Fatalf("expected credential a, got %q", used)
	}
	if pool.Cursor() != 0 {
		t.Fatalf("cursor moved on success: %d", pool.Cursor())
	}
}

func TestRotatorAdvancesOnRateLimit(t *testing.T) {
	pool, _ := NewPool("test", []string{"a", "b", "c"})
	r := newTestRotator()

	var used []string
	err := r.Execute(context.Background(), pool, 0, func(_ context.Context, apiKey string) error {
		used = append(used, apiKey)
		if apiKey == "a" {
			return &ProviderError{Provider: "test", Status: http.StatusTooManyRequests, Message: "rate limited"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if len(used) != 2 || used[0] != "a" || used[1] != "b" {
		t.Fatalf("unexpected attempt order: %v", used)
	}
	if pool.Cursor() != 1 {
		t.Fatalf("expected cursor 1 after one rotation, got %d", pool.Cursor())
	}
}

func TestRotatorExhaustsAfterExactlyPoolSizeAttempts(t *testing.T) {
	pool, _ := NewPool("test", []string{"a", "b", "c"})
	r := newTestRotator()

	attempts := 0
	err := r.Execute(context.Background(), pool, 0, func(_ context.Context, apiKey string) error {
		attempts++
		return &ProviderError{Provider: "test", Status: http.StatusServiceUnavailable, Message: "down"}
	})
	if !errors.Is(err, ErrProviderExhausted) {
		t.Fatalf("expected ErrProviderExhausted, got %v", err)
	}
	if attempts != pool.Size() {
		t.Fatalf("expected exactly %d attempts, got %d", pool.Size(), attempts)
	}
}

func TestRotatorStopsOnNonRotatableError(t *testing.T) {
	pool, _ := NewPool("test", []string{"a", "b", "c"})
	r := newTestRotator()

	fatal := &ProviderError{Provider: "test", Status: http.StatusBadRequest, Message: "malformed"}
	attempts := 0
	err := r.Execute(context.Background(), pool, 0, func(_ context.Context, apiKey string) error {
		attempts++
		return fatal
	})
	if !errors.As(err, new(*ProviderError)) {
		t.Fatalf("expected the provider error back, got %v", err)
	}
	if errors.Is(err, ErrProviderExhausted) {
		t.Fatal("bad request must not be reported as exhaustion")
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
	if pool.Cursor() != 0 {
		t.Fatalf("cursor moved on non-rotatable failure: %d", pool.Cursor())
	}
}

func TestRotatorStartOffsetSpreadsFirstPick(t *testing.T) {
	pool, _ := NewPool("test", []string{"a", "b", "c"})
	r := newTestRotator()

	var used string
	err := r.Execute(context.Background(), pool, 1, func(_ context.Context, apiKey string) error {
		used = apiKey
		return nil
	})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if used != "b" {
		t.Fatalf("expected offset start b, got %q", used)
	}
}

func TestRotatorSkipsPacingAfterFinalAttempt(t *testing.T) {
	pool, _ := NewPool("test", []string{"a"})
	cfg := testConfig()
	cfg.Engine.PacingRateLimited = 5 * time.Second
	cfg.Engine.PacingRotatable = 5 * time.Second
	r := NewRotator(cfg.Engine, nil)

	started := time.Now()
	err := r.Execute(context.Background(), pool, 0, func(_ context.Context, apiKey string) error {
		return &ProviderError{Provider: "test", Status: http.StatusTooManyRequests, Message: "rate limited"}
	})
	if !errors.Is(err, ErrProviderExhausted) {
		t.Fatalf("expected ErrProviderExhausted, got %v", err)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Fatalf("exhaustion waited for pacing after the final attempt: %s", elapsed)
	}
}

func TestRotatorRespectsContextCancellation(t *testing.T) {
	pool, _ := NewPool("test", []string{"a", "b"})
	r := newTestRotator()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := r.Execute(ctx, pool, 0, func(_ context.Context, apiKey string) error {
		t.Fatal("fn must not run after cancellation")
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestRotatableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limit", &ProviderError{Status: http.StatusTooManyRequests}, true},
		{"quota", &ProviderError{Status: http.StatusPaymentRequired}, true},
		{"unauthorized", &ProviderError{Status: http.StatusUnauthorized}, true},
		{"forbidden", &ProviderError{Status: http.StatusForbidden}, true},
		{"server error", &ProviderError{Status: http.StatusBadGateway}, true},
		{"bad request", &ProviderError{Status: http.StatusBadRequest}, false},
		{"not found", &ProviderError{Status: http.StatusNotFound}, false},
		{"deadline", context.DeadlineExceeded, true},
		{"plain", fmt.Errorf("boom"), false},
	}
	for _, tc := range cases {
		if got := rotatable(tc.err); got != tc.want {
			t.Errorf("%s: rotatable=%v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestRateLimitedOnlyMatches429(t *testing.T) {
	if !rateLimited(&ProviderError{Status: http.StatusTooManyRequests}) {
		t.Fatal("429 must classify as rate limited")
	}
	if rateLimited(&ProviderError{Status: http.StatusServiceUnavailable}) {
		t.Fatal("503 must not classify as rate limited")
	}
	if rateLimited(fmt.Errorf("boom")) {
		t.Fatal("plain error must not classify as rate limited")
	}
}
