package retry

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SleepFunc delays for d or returns early with the context error.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Policy describes a bounded retry loop with doubling backoff.
// The zero value is not usable; construct with NewPolicy.
type Policy struct {
	maxAttempts    int
	initialBackoff time.Duration
	sleep          SleepFunc
	logger         *zap.Logger
}

// NewPolicy builds a retry policy. Attempts defaults to 3 and backoff to 1s.
func NewPolicy(maxAttempts int, initialBackoff time.Duration, logger *zap.Logger) Policy {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if initialBackoff <= 0 {
		initialBackoff = time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return Policy{
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		sleep:          timerSleep,
		logger:         logger,
	}
}

// WithSleep replaces the delay implementation; used by tests to inject a
// recording clock.
func (p Policy) WithSleep(sleep SleepFunc) Policy {
	if sleep != nil {
		p.sleep = sleep
	}
	return p
}

// MaxAttempts reports the configured attempt bound.
func (p Policy) MaxAttempts() int {
	return p.maxAttempts
}

// Do runs fn until it succeeds or attempts are exhausted, sleeping between
// attempts only. Backoff doubles after every failed attempt. The last error
// is returned after exhaustion; fn is never retried past maxAttempts.
func (p Policy) Do(ctx context.Context, op string, fn func() error) error {
	delay := p.initialBackoff
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		p.logger.Sugar().Warnw("attempt failed",
			"op", op, "attempt", attempt, "max_attempts", p.maxAttempts, "error", lastErr)
		if attempt == p.maxAttempts {
			break
		}
		if err := p.sleep(ctx, delay); err != nil {
			return err
		}
		delay *= 2
	}
	return lastErr
}

func timerSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
