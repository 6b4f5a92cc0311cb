package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"kokoro/src/retry"
)

// TxManager runs functions inside transactions with timeouts and lock
// retries.
type TxManager struct {
	db *sql.DB
}

func NewTxManager(db *sql.DB) *TxManager {
	return &TxManager{db: db}
}

// TxOptions defines options for transaction execution
type TxOptions struct {
	Timeout time.Duration
}

// DefaultTxOptions returns sensible defaults for most operations
func DefaultTxOptions() *TxOptions {
	return &TxOptions{Timeout: 30 * time.Second}
}

// ExecuteInTransaction executes fn within a transaction, rolling back on
// error or panic.
func (tm *TxManager) ExecuteInTransaction(ctx context.Context, opts *TxOptions, fn func(*sql.Tx) error) error {
	if opts == nil {
		opts = DefaultTxOptions()
	}

	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	tx, err := tm.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("transaction failed: %v, rollback failed: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

const (
	lockRetries   = 3
	lockBaseDelay = 50 * time.Millisecond
)

// WithRetry runs fn in a transaction, retrying only SQLite lock conflicts.
func (tm *TxManager) WithRetry(ctx context.Context, opts *TxOptions, fn func(*sql.Tx) error) error {
	for i := 0; i < lockRetries; i++ {
		err := tm.ExecuteInTransaction(ctx, opts, fn)
		if err == nil {
			return nil
		}
		if !isLockError(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if i == lockRetries-1 {
			return fmt.Errorf("transaction failed after %d retries: %w", lockRetries, err)
		}

		select {
		case <-time.After(retry.Backoff(lockBaseDelay, i)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("transaction retry loop ended unexpectedly")
}

// isLockError checks if an error is a SQLite locking error
func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{"database is locked", "database table is locked", "database schema is locked", "SQLITE_BUSY", "SQLITE_LOCKED"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
