package grabber

import (
	"context"
	"fmt"
	"time"

	"github.com/oshokin/media-grabber/internal/client/ytdlp"
	"github.com/oshokin/media-grabber/internal/config"
	"github.com/oshokin/media-grabber/internal/logger"
	"github.com/oshokin/media-grabber/internal/utils"
)

// RetryPolicy decides whether and when a failed retryable operation runs again.
type RetryPolicy interface {
	// CanRetry reports whether another attempt may follow the given number of failed attempts.
	CanRetry(failedAttempts int) bool
	// Pause blocks before the next attempt, returning early when ctx is canceled.
	Pause(ctx context.Context) error
}

// PausePolicy retries up to a maximum number of attempts with a random pause in between.
type PausePolicy struct {
	// maxAttempts is the total number of attempts (0 means unlimited).
	maxAttempts int
	// minPause is the shortest pause between attempts.
	minPause time.Duration
	// maxPause is the longest pause between attempts.
	maxPause time.Duration
}

// NewRetryPolicy creates a policy allowing maxAttempts attempts in total (0 means unlimited).
func NewRetryPolicy(maxAttempts int, minPause, maxPause time.Duration) RetryPolicy {
	return &PausePolicy{
		maxAttempts: max(maxAttempts, 0),
		minPause:    minPause,
		maxPause:    maxPause,
	}
}

// NewRetryPolicyFromConfig creates the retry policy described by the validated configuration.
func NewRetryPolicyFromConfig(cfg *config.Config) RetryPolicy {
	return NewRetryPolicy(int(cfg.RetryAttemptsCount), cfg.ParsedMinRetryPause, cfg.ParsedMaxRetryPause)
}

// CanRetry reports whether another attempt may follow the given number of failed attempts.
func (p *PausePolicy) CanRetry(failedAttempts int) bool {
	return p.maxAttempts == 0 || failedAttempts < p.maxAttempts
}

// Pause blocks for a random duration between the configured bounds.
func (p *PausePolicy) Pause(ctx context.Context) error {
	return utils.RandomPause(ctx, p.minPause, p.maxPause)
}

// retryFunc is a single attempt of a retryable operation.
type retryFunc func(ctx context.Context, attempt int) error

// retryHook observes every failed attempt that is about to be retried.
type retryHook func(attempt int, err error)

// withRetries runs fn until it succeeds, fails with a non-retryable error or the policy gives up.
func withRetries(ctx context.Context, policy RetryPolicy, operation string, fn retryFunc, onRetry retryHook) error {
	for attempt := 1; ; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		if !ytdlp.IsRetryable(err) {
			return err
		}

		if !policy.CanRetry(attempt) {
			return fmt.Errorf("%w: %s failed %d times: %w", ErrRetriesExhausted, operation, attempt, err)
		}

		logger.Warnf(ctx, "Attempt %d to %s failed, retrying: %v", attempt, operation, err)

		if onRetry != nil {
			onRetry(attempt, err)
		}

		if err = policy.Pause(ctx); err != nil {
			return err
		}
	}
}
