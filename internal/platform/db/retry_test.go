package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryTxRerunsSerializationFailures(t *testing.T) {
	calls := 0
	err := RetryTx(context.Background(), func() error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: "40001"}
		}
		if calls == 2 {
			return fmt.Errorf("apply balances: %w", &pgconn.PgError{Code: "40P01"})
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryTxRerunsMarkedConflicts(t *testing.T) {
	calls := 0
	err := RetryTx(context.Background(), func() error {
		calls++
		if calls < 2 {
			return fmt.Errorf("%w: invoice taken", ErrRetryTx)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetryTxStopsOnOtherErrors(t *testing.T) {
	boom := errors.New("boom")
	calls := 0
	err := RetryTx(context.Background(), func() error {
		calls++
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
	assert.False(t, IsRetryable(&pgconn.PgError{Code: "23505"}))
}

func TestRetryTxGivesUpAfterAttempts(t *testing.T) {
	calls := 0
	err := RetryTx(context.Background(), func() error {
		calls++
		return &pgconn.PgError{Code: "40001"}
	})
	assert.True(t, IsSerializationFailure(err))
	assert.Equal(t, TxAttempts, calls)
}

func TestRetryTxHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryTx(ctx, func() error {
		calls++
		cancel()
		return &pgconn.PgError{Code: "40001"}
	})
	assert.True(t, IsSerializationFailure(err))
	assert.Equal(t, 1, calls)
}
