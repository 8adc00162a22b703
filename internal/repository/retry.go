package repository

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/go-sql-driver/mysql"
)

// MySQL server error numbers that indicate a transaction lost a lock race
// and can simply be run again.
const (
	mysqlErrDeadlock        = 1213
	mysqlErrLockWaitTimeout = 1205
)

// RetryConfig bounds how often a transactional write is re-run after a
// deadlock or lock wait timeout.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	Jitter        bool
}

var DefaultRetryConfig = RetryConfig{
	MaxAttempts:   4,
	InitialDelay:  25 * time.Millisecond,
	MaxDelay:      500 * time.Millisecond,
	BackoffFactor: 2.0,
	Jitter:        true,
}

// backoff returns the delay before the given (1-based) retry attempt.
func (c RetryConfig) backoff(attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	delay := float64(c.InitialDelay) * math.Pow(c.BackoffFactor, float64(attempt-1))
	if delay > float64(c.MaxDelay) {
		delay = float64(c.MaxDelay)
	}
	if c.Jitter {
		delay *= 0.8 + rand.Float64()*0.4
	}
	return time.Duration(delay)
}

// isRetryable reports whether err is a transient lock failure.  Domain
// outcomes such as ErrConflict are never retried here.
func isRetryable(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == mysqlErrDeadlock || myErr.Number == mysqlErrLockWaitTimeout
	}
	return false
}

// withRetry runs fn until it succeeds, returns a non-retryable error, or
// the attempt budget is spent.
func withRetry(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil || !isRetryable(lastErr) || attempt == attempts {
			return lastErr
		}
		timer := time.NewTimer(cfg.backoff(attempt))
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}
	return lastErr
}
