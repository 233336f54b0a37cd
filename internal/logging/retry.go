package logging

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy describes exponential backoff for transient failures.
type RetryPolicy struct {
	Attempts       int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultRetryPolicy is used for Redis and database calls.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:       3,
	InitialBackoff: 50 * time.Millisecond,
	MaxBackoff:     time.Second,
}

// Retry runs fn until it succeeds, fails with a non-transient error, or the
// attempts are used up. Any returned error is an *OperationError.
func Retry(ctx context.Context, logger *zap.Logger, policy RetryPolicy, operation, requestID string, fn func() error) error {
	if policy.Attempts <= 1 {
		return NewOperationError(operation, requestID, fn())
	}

	backoff := policy.InitialBackoff
	opLogger := WithOperation(logger, operation, requestID)
	var err error
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return NewOperationError(operation, requestID, ctx.Err())
			case <-time.After(backoff):
			}
			if next := backoff * 2; next <= policy.MaxBackoff {
				backoff = next
			}
		}

		err = fn()
		if err == nil {
			if attempt > 0 {
				opLogger.Info("operation succeeded after retry", zap.Int("attempt", attempt+1))
			}
			return nil
		}

		if !IsTransient(err) || attempt == policy.Attempts-1 {
			opLogger.Error("operation failed", zap.Error(err), zap.Int("attempt", attempt+1))
			return NewOperationError(operation, requestID, err)
		}

		opLogger.Warn("transient error", zap.Error(err), zap.Int("attempt", attempt+1))
	}
	return NewOperationError(operation, requestID, err)
}
