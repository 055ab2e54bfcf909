package webhook

import (
	"context"
	"errors"
	"time"

	"github.com/rentfolio/propsync/pkg/logging"
)

// permanent is implemented by errors that must not be retried, such as a
// double-entry integrity violation.
type permanent interface {
	Permanent() bool
}

// IsPermanent reports whether err (or anything it wraps) is non-retryable.
func IsPermanent(err error) bool {
	var p permanent
	return errors.As(err, &p) && p.Permanent()
}

// RetryExecutor runs an operation with bounded in-line retries and
// exponential backoff: baseDelay * 2^(attempt-1) between attempts.
type RetryExecutor struct {
	maxAttempts int
	baseDelay   time.Duration
	logger      *logging.Logger
}

func NewRetryExecutor(maxAttempts int, baseDelay time.Duration, logger *logging.Logger) *RetryExecutor {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &RetryExecutor{maxAttempts: maxAttempts, baseDelay: baseDelay, logger: logger}
}

// MaxAttempts exposes the attempt bound for status bookkeeping.
func (r *RetryExecutor) MaxAttempts() int { return r.maxAttempts }

// Execute runs fn until it succeeds, exhausts attempts, fails permanently,
// or the context ends. onFailure fires after each failed attempt with the
// 1-based attempt number, before any backoff sleep. The returned attempt
// count is the number of attempts actually made.
func (r *RetryExecutor) Execute(ctx context.Context, fn func(ctx context.Context) error, onFailure func(attempt int, err error)) (int, error) {
	var lastErr error
	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return attempt, nil
		}
		if onFailure != nil {
			onFailure(attempt, lastErr)
		}
		if IsPermanent(lastErr) {
			r.logger.Warn("permanent failure, skipping remaining attempts",
				"attempt", attempt, "error", lastErr)
			return attempt, lastErr
		}
		if attempt == r.maxAttempts {
			break
		}

		delay := r.baseDelay * (1 << (attempt - 1))
		r.logger.Debug("attempt failed, backing off",
			"attempt", attempt, "delay", delay, "error", lastErr)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return attempt, ctx.Err()
		}
	}
	return r.maxAttempts, lastErr
}
