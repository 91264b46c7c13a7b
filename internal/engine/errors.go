package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
)

// ErrInvalidRequest is returned before any provider call when the request
// cannot be processed at all.
var ErrInvalidRequest = errors.New("query is required")

// ErrProviderExhausted is raised by the rotated executor when every credential
// in a pool has failed for one logical request.
var ErrProviderExhausted = errors.New("provider credentials exhausted")

// StatusCoder is implemented by provider error types that carry the HTTP
// status of the failed call. The rotated executor classifies on it.
type StatusCoder interface {
	error
	HTTPStatus() int
}

// ProviderError is the engine's own StatusCoder, used by fakes and by callers
// that synthesise provider failures.
type ProviderError struct {
	Provider string
	Status   int
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s returned status %d: %s", e.Provider, e.Status, e.Message)
}

func (e *ProviderError) HTTPStatus() int { return e.Status }

// PlanningError is fatal: without a plan no search is possible.
type PlanningError struct {
	Err error
}

func (e *PlanningError) Error() string { return fmt.Sprintf("planning failed: %v", e.Err) }
func (e *PlanningError) Unwrap() error { return e.Err }

// SynthesisError is fatal: the request produced no usable answer.
type SynthesisError struct {
	Err error
}

func (e *SynthesisError) Error() string { return fmt.Sprintf("synthesis failed: %v", e.Err) }
func (e *SynthesisError) Unwrap() error { return e.Err }

// rotatable reports whether a failed provider call should advance to the next
// credential. Rate limits, quota/auth rejections, server errors and
// transport-level failures rotate; anything else (e.g. a malformed request)
// propagates immediately.
func rotatable(err error) bool {
	var sc StatusCoder
	if errors.As(err, &sc) {
		switch status := sc.HTTPStatus(); {
		case status == http.StatusTooManyRequests:
			return true
		case status == http.StatusPaymentRequired:
			return true
		case status == http.StatusUnauthorized, status == http.StatusForbidden:
			return true
		case status >= 500:
			return true
		default:
			return false
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

// rateLimited reports whether the failure was specifically a rate limit,
// which earns a longer pacing delay than other rotatable failures.
func rateLimited(err error) bool {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatus() == http.StatusTooManyRequests
	}
	return false
}
