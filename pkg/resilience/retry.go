package resilience

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"time"
)

// RetryConfig holds configuration for a retry policy.
type RetryConfig struct {
	// MaxAttempts is the total number of tries, including the first.
	// Defaults to 3.
	MaxAttempts int

	// InitialDelay is the backoff before the second attempt. Defaults to
	// 100ms.
	InitialDelay time.Duration

	// MaxDelay caps the exponential backoff. Defaults to 10s.
	MaxDelay time.Duration

	// Multiplier is the backoff growth factor. Defaults to 2.
	Multiplier float64

	// RetryableErrors is an optional allow-list of error substrings. When
	// non-empty, an error that matches none of them aborts the retry loop
	// immediately (fail-fast for non-transient errors). Matching is
	// case-insensitive.
	RetryableErrors []string

	// Logger receives per-attempt debug logs.
	Logger *slog.Logger
}

// RetryPolicy retries a fallible operation with exponential backoff:
// delay = min(InitialDelay * Multiplier^attempt, MaxDelay).
type RetryPolicy struct {
	cfg    RetryConfig
	logger *slog.Logger
}

// NewRetryPolicy creates a retry policy with defaults applied.
func NewRetryPolicy(cfg RetryConfig) *RetryPolicy {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 100 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2
	}

	lg := cfg.Logger
	if lg == nil {
		lg = slog.Default()
	}

	return &RetryPolicy{cfg: cfg, logger: lg}
}

// Do runs fn up to MaxAttempts times. The final attempt's error is returned
// unchanged so callers can inspect the underlying failure.
func (p *RetryPolicy) Do(ctx context.Context, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 0; attempt < p.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			if err := sleep(ctx, p.delay(attempt-1)); err != nil {
				return err
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		if !p.retryable(lastErr) {
			p.logger.Debug("error not retryable, aborting retry loop",
				"attempt", attempt+1,
				"error", lastErr,
			)
			return lastErr
		}

		p.logger.Debug("attempt failed",
			"attempt", attempt+1,
			"max_attempts", p.cfg.MaxAttempts,
			"error", lastErr,
		)
	}

	return lastErr
}

// delay computes the backoff after the given zero-based attempt.
func (p *RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.cfg.InitialDelay) * math.Pow(p.cfg.Multiplier, float64(attempt))
	if d > float64(p.cfg.MaxDelay) {
		return p.cfg.MaxDelay
	}
	return time.Duration(d)
}

// retryable reports whether err matches the allow-list. An empty list treats
// every error as retryable.
func (p *RetryPolicy) retryable(err error) bool {
	if len(p.cfg.RetryableErrors) == 0 {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, substr := range p.cfg.RetryableErrors {
		if strings.Contains(msg, strings.ToLower(substr)) {
			return true
		}
	}
	return false
}

// sleep waits for d or until ctx is done, whichever comes first.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
