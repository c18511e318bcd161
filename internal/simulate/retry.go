package simulate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/staffer-dev/staffer-sims/internal/analysis"
	"github.com/staffer-dev/staffer-sims/internal/log"
	"github.com/staffer-dev/staffer-sims/internal/persona"
)

// maxRetryDelay caps the whole-run backoff.
const maxRetryDelay = 60 * time.Second

var transientMarkers = []string{
	"429", "500", "502", "503", "504",
	"timeout", "timed out", "connection reset", "connection refused",
	"temporarily unavailable", "eof",
}

// IsTransient reports whether err looks like a failure worth retrying the
// whole run for. Cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	return isTransientText(err.Error())
}

func isTransientText(msg string) bool {
	lower := strings.ToLower(msg)
	for _, m := range transientMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// RetryOptions control RunWithRetry.
type RetryOptions struct {
	Retries int           // extra attempts after the first
	Delay   time.Duration // base backoff, doubled per attempt
	Events  *log.Logger
	Sleep   func(ctx context.Context, d time.Duration) error
}

// RetryDelay is the backoff before retry attempt n (1-based).
func RetryDelay(base time.Duration, attempt int) time.Duration {
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= maxRetryDelay {
			return maxRetryDelay
		}
	}
	return min(d, maxRetryDelay)
}

// RunWithRetry runs a conversation and re-runs it from scratch when it fails
// transiently, either with a returned error or with an error outcome caused by
// transient API failures. newEngine is called once per attempt so no run
// state carries over. The last result is returned when retries run out.
func RunWithRetry(ctx context.Context, newEngine func() *Engine, p *persona.Persona, s *persona.Scenario, opts Options, ropts RetryOptions) (*Results, error) {
	sleep := ropts.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 0; attempt <= ropts.Retries; attempt++ {
		if attempt > 0 {
			delay := RetryDelay(ropts.Delay, attempt)
			logRetry(ropts.Events, p, s, attempt, delay, lastErr)
			if err := sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		res, err := newEngine().Run(ctx, p, s, opts)
		if err != nil {
			if !IsTransient(err) {
				logFailed(ropts.Events, p, s, attempt, err)
				return nil, err
			}
			lastErr = err
			continue
		}
		if !transientOutcome(res) || attempt == ropts.Retries {
			return res, nil
		}
		lastErr = fmt.Errorf("%s", strings.Join(res.APIErrors, "; "))
	}

	logFailed(ropts.Events, p, s, ropts.Retries, lastErr)
	return nil, fmt.Errorf("simulation failed after %d attempts: %w", ropts.Retries+1, lastErr)
}

// transientOutcome reports whether a finished run ended in an error status
// caused only by transient API failures.
func transientOutcome(res *Results) bool {
	if res == nil || res.FinalOutcome.Status != analysis.StatusError || len(res.APIErrors) == 0 {
		return false
	}
	for _, msg := range res.APIErrors {
		if !isTransientText(msg) {
			return false
		}
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// logRetry logs a run_retry event.
func logRetry(logger *log.Logger, p *persona.Persona, s *persona.Scenario, attempt int, delay time.Duration, cause error) {
	if logger == nil {
		return
	}
	ev := log.LogEvent{
		Event:      log.EventRunRetry,
		Persona:    p.Name,
		Scenario:   s.Title,
		Attempt:    attempt,
		DurationMs: delay.Milliseconds(),
	}
	if cause != nil {
		ev.Error = cause.Error()
	}
	_ = logger.Append(ev)
}

// logFailed logs a run_failed event.
func logFailed(logger *log.Logger, p *persona.Persona, s *persona.Scenario, attempt int, cause error) {
	if logger == nil || cause == nil {
		return
	}
	_ = logger.Append(log.LogEvent{
		Event:    log.EventRunFailed,
		Persona:  p.Name,
		Scenario: s.Title,
		Attempt:  attempt,
		Error:    cause.Error(),
	})
}
