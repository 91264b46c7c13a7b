package engine

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mohammad-safakhou/seeker/config"
	"github.com/mohammad-safakhou/seeker/internal/telemetry"
)

// Rotator executes provider calls under a rotating credential pool. It is the
// single place that mutates pool cursors; every call site reuses it instead
// of hand-rolling retry-with-sleep loops.
type Rotator struct {
	pacingRateLimited time.Duration
	pacingRotatable   time.Duration
	telemetry         *telemetry.Telemetry
	logger            *log.Logger
}

// NewRotator builds a rotator with pacing from engine config. The rate-limit
// delay is roughly twice the generic rotatable delay.
func NewRotator(cfg config.EngineConfig, tele *telemetry.Telemetry) *Rotator {
	return &Rotator{
		pacingRateLimited: cfg.PacingRateLimited,
		pacingRotatable:   cfg.PacingRotatable,
		telemetry:         tele,
		logger:            log.New(log.Writer(), "[ROTATE] ", log.LstdFlags),
	}
}

// Execute runs fn with credentials starting at (pool.cursor + startOffset),
// advancing by one per rotatable failure, for at most pool.Size() attempts.
// startOffset lets concurrent callers spread their first pick across the
// pool. Non-rotatable failures propagate immediately. When every credential
// has failed the call fails with ErrProviderExhausted.
func (r *Rotator) Execute(ctx context.Context, pool *Pool, startOffset int, fn func(ctx context.Context, apiKey string) error) error {
	size := pool.Size()
	start := pool.Cursor() + uint64(startOffset)

	var lastErr error
	for attempt := 0; attempt < size; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := pool.at(start + uint64(attempt))
		err := fn(ctx, key)
		r.telemetry.RecordProviderCall(pool.Name(), err == nil)
		if err == nil {
			return nil
		}
		if !rotatable(err) {
			return err
		}
		lastErr = err
		pool.advance()
		r.telemetry.RecordRotation(pool.Name())
		r.logger.Printf("rotating %s credential (attempt %d/%d): %v", pool.Name(), attempt+1, size, err)

		if attempt == size-1 {
			break
		}
		delay := r.pacingRotatable
		if rateLimited(err) {
			delay = r.pacingRateLimited
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return err
		}
	}

	r.telemetry.RecordExhaustion(pool.Name())
	return fmt.Errorf("%s pool exhausted after %d attempts: %w (last error: %v)", pool.Name(), size, ErrProviderExhausted, lastErr)
}

// sleepCtx waits for d or until ctx is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
