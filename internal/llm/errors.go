package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failed call.
type Kind string

const (
	KindTimeout   Kind = "timeout"
	KindRateLimit Kind = "rate_limit"
	KindAPI       Kind = "api_error"
)

// APIError is returned by clients when a call fails after retries.
type APIError struct {
	Kind       Kind
	Caller     Caller
	StatusCode int
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s %s (HTTP %d): %v", e.Caller, e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Caller, e.Kind, e.Err)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports whether the failure is worth another attempt.
func (e *APIError) Retryable() bool {
	return e.Kind == KindTimeout || e.Kind == KindRateLimit || e.StatusCode >= 500
}

// classify wraps err into an APIError using the HTTP status when known.
func classify(caller Caller, status int, err error) *APIError {
	e := &APIError{Kind: KindAPI, Caller: caller, StatusCode: status, Err: err}
	var netErr net.Error
	switch {
	case status == 429:
		e.Kind = KindRateLimit
	case status == 408 || status == 504:
		e.Kind = KindTimeout
	case errors.Is(err, context.DeadlineExceeded):
		e.Kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		e.Kind = KindTimeout
	}
	return e
}
