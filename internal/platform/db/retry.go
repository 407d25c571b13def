package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// TxAttempts bounds how often RetryTx runs a conflicting transaction.
const TxAttempts = 5

// ErrRetryTx marks an error whose transaction can succeed on a fresh snapshot,
// such as a generated number that lost a race to a concurrent writer.
var ErrRetryTx = errors.New("platform/db: transaction conflict")

var retryBackoff = 15 * time.Millisecond

// IsSerializationFailure reports whether err is a serialization_failure (40001)
// or deadlock_detected (40P01).
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}

// IsRetryable reports whether a transaction that failed with err may be rerun.
func IsRetryable(err error) bool {
	return IsSerializationFailure(err) || errors.Is(err, ErrRetryTx)
}

// RetryTx runs fn until it succeeds, fails with a non-retryable error, or
// TxAttempts is reached. fn must open its own transaction on every call.
func RetryTx(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < TxAttempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(time.Duration(i) * retryBackoff):
			}
		}
		lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
	}
	return lastErr
}
