package llm

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"
)

// RetryPolicy bounds the per-call retry loop.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy matches the default configuration: three attempts,
// starting at one second, capped at thirty.
var DefaultRetryPolicy = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second, MaxDelay: 30 * time.Second}

// Delay returns the backoff before attempt+1: BaseDelay doubled per attempt,
// plus up to 10% jitter, capped at MaxDelay.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := p.BaseDelay << (attempt - 1)
	if d <= 0 || (p.MaxDelay > 0 && d > p.MaxDelay) {
		d = p.MaxDelay
	}
	d += time.Duration(rand.Float64() * 0.1 * float64(d))
	if p.MaxDelay > 0 && d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}

// do runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out.
func (p RetryPolicy) do(ctx context.Context, logger *slog.Logger, caller Caller, fn func() error) error {
	attempts := max(1, p.MaxAttempts)
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || !apiErr.Retryable() || attempt == attempts {
			return err
		}

		wait := p.Delay(attempt)
		logger.Warn("llm call failed, retrying",
			"caller", caller, "attempt", attempt, "kind", apiErr.Kind, "status", apiErr.StatusCode, "wait", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return err
}
