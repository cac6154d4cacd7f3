package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"chatsync/internal/constants"
	"chatsync/internal/retry"
)

// dbBackoff is shared by every cache write. Lock contention clears quickly,
// so the delays stay short.
var dbBackoff = retry.BackoffConfig{
	InitialDelay: time.Duration(constants.DefaultRetryBackoffMs) * time.Millisecond / 10,
	MaxDelay:     time.Second,
	Multiplier:   2,
	MaxAttempts:  constants.DefaultDatabaseRetryAttempts,
	Jitter:       true,
}

// retryableDBOperation runs operation, retrying transient sqlite errors.
func retryableDBOperation(ctx context.Context, operation func() error, operationName string) error {
	var lastErr error
	err := retry.NewBackoff(dbBackoff).RetryWithPredicate(ctx, func() error {
		lastErr = operation()
		return lastErr
	}, isRetryableDBError)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if !isRetryableDBError(lastErr) {
		return fmt.Errorf("%s failed (non-retryable): %w", operationName, lastErr)
	}
	return fmt.Errorf("%s failed after %d attempts: %w", operationName, dbBackoff.MaxAttempts, lastErr)
}

// isRetryableDBError determines if a database error is worth retrying
func isRetryableDBError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "database is locked") ||
		strings.Contains(msg, "database table is locked") ||
		strings.Contains(msg, "disk I/O error")
}
