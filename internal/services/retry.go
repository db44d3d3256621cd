package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/illegible-ink/crates/internal/shared"
)

// RetryPolicy bounds the retry loop around a provider call.
type RetryPolicy struct {
	MaxAttempts int           // Attempts before giving up (default 3)
	BaseDelay   time.Duration // Linear backoff unit: attempt n sleeps n * BaseDelay (default 1s)
}

// DefaultRetryPolicy returns the policy used when a call site does not override it.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	return p
}

// APIError is a non-2xx provider response. Unwrap maps the status onto the
// shared outcome sentinels, which is what drives the retry decision.
type APIError struct {
	Status     int
	RetryAfter time.Duration // Retry-After hint on 429 responses, zero if absent
	Body       string
}

func (e *APIError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Body)
	}
	return fmt.Sprintf("provider returned status %d", e.Status)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.Status == http.StatusUnauthorized:
		return shared.ErrTokenExpired
	case e.Status == http.StatusTooManyRequests:
		return shared.ErrRateLimited
	case e.Status >= 400 && e.Status < 500:
		return shared.ErrClientRequest
	default:
		return shared.ErrTransient
	}
}

// Retrier executes provider calls under a [RetryPolicy].
type Retrier struct {
	policy RetryPolicy
	logger *log.Logger

	// sleep waits for d or until ctx is done. Injectable for tests.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewRetrier creates a [Retrier] with the given policy.
func NewRetrier(policy RetryPolicy, logger *log.Logger) *Retrier {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &Retrier{
		policy: policy.normalized(),
		logger: logger,
		sleep:  sleepContext,
	}
}

// Do runs fn under the retrier's policy. See [Retrier.DoWith].
func (r *Retrier) Do(ctx context.Context, op string, fn func(context.Context) error) error {
	return r.DoWith(ctx, r.policy, op, fn)
}

// DoWith runs fn under an explicit policy, overriding the retrier's default for
// this call site.
//
// fn is invoked up to policy.MaxAttempts times. A nil return ends the loop
// immediately. Expired credentials and malformed requests fail on the first
// attempt; rate limiting and transient failures sleep and retry, and surface
// wrapped in [shared.ErrExhausted] once attempts run out.
func (r *Retrier) DoWith(ctx context.Context, policy RetryPolicy, op string, fn func(context.Context) error) error {
	policy = policy.normalized()

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}

		// A stale credential will not become valid by waiting, and a
		// malformed request will not fix itself.
		if errors.Is(err, shared.ErrTokenExpired) || errors.Is(err, shared.ErrClientRequest) {
			r.logger.Warn("operation failed fatally", "op", op, "attempt", attempt, "error", err)
			return err
		}

		lastErr = err
		if attempt == policy.MaxAttempts {
			break
		}

		delay := time.Duration(attempt) * policy.BaseDelay
		var apiErr *APIError
		if errors.As(err, &apiErr) && errors.Is(err, shared.ErrRateLimited) && apiErr.RetryAfter > 0 {
			delay = apiErr.RetryAfter
		}

		r.logger.Debug("retrying operation", "op", op, "attempt", attempt, "delay", delay, "error", err)
		if err := r.sleep(ctx, delay); err != nil {
			return err
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", shared.ErrExhausted, policy.MaxAttempts, lastErr)
}

// sleepContext blocks for d without holding a timer past cancellation.
func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
