// ==================================
// File: internal/retry/retry.go
// ==================================

// Package retry is the single retry-with-backoff primitive shared by the
// funding, submission and recovery paths. All transient-failure loops in the
// bundler go through Do; permanent failures are wrapped with Permanent so the
// loop stops immediately.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"
)

// Policy parameterizes a retry loop: how many attempts and how long the first
// pause is. Subsequent pauses grow exponentially.
type Policy struct {
	MaxAttempts uint
	BaseDelay   time.Duration
}

// DefaultPolicy is used where the config does not override retries.
var DefaultPolicy = Policy{MaxAttempts: 3, BaseDelay: time.Second}

// Permanent marks err as non-retryable: Do returns it without further attempts.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Do runs op until it succeeds, the policy is exhausted, or ctx is cancelled.
// Every retry is logged with the operation name and attempt delay.
func Do[T any](ctx context.Context, logger *zap.Logger, name string, policy Policy, op func() (T, error)) (T, error) {
	if policy.MaxAttempts == 0 {
		policy.MaxAttempts = DefaultPolicy.MaxAttempts
	}
	if policy.BaseDelay <= 0 {
		policy.BaseDelay = DefaultPolicy.BaseDelay
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.BaseDelay

	return backoff.Retry(
		ctx,
		op,
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(policy.MaxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("Operation failed, retrying",
				zap.String("op", name),
				zap.Duration("next_attempt_in", next),
				zap.Error(err))
		}),
	)
}
