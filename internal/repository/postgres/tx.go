package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"penguin-ternos-backend/internal/logger"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeUndefinedFunction    = "42883"
	codeUniqueViolation      = "23505"
	codeRaiseException       = "P0001"
	codeNoDataFound          = "P0002"
)

// sqlState extracts the SQLSTATE and message from a lib/pq or pgx error.
func sqlState(err error) (code, message string, ok bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Message, true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.Message, true
	}
	return "", "", false
}

func hasCode(err error, codes ...string) bool {
	code, _, ok := sqlState(err)
	if !ok {
		return false
	}
	for _, c := range codes {
		if c == code {
			return true
		}
	}
	return false
}

func isRetryable(err error) bool {
	return hasCode(err, codeSerializationFailure, codeDeadlockDetected)
}

func isUndefinedFunction(err error) bool {
	return hasCode(err, codeUndefinedFunction)
}

type txRunner struct {
	db       *sql.DB
	attempts int
	backoff  time.Duration
}

func newTxRunner(db *sql.DB, attempts int) *txRunner {
	if attempts <= 0 {
		attempts = 1
	}
	return &txRunner{db: db, attempts: attempts, backoff: 25 * time.Millisecond}
}

// retry runs fn until it succeeds, fails with a non retryable error or the
// attempts are used up.
func (r *txRunner) retry(ctx context.Context, operation string, fn func() error) error {
	var err error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		err = fn()
		if err == nil || !isRetryable(err) || attempt == r.attempts {
			return err
		}
		logger.Warn("Retrying after transaction conflict", "operation", operation, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * r.backoff):
		}
	}
	return err
}

// run executes fn in a transaction, retrying on conflicts.
func (r *txRunner) run(ctx context.Context, operation string, fn func(tx *sql.Tx) error) error {
	return r.retry(ctx, operation, func() error {
		return r.once(ctx, fn)
	})
}

func (r *txRunner) once(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				logger.Error("Rollback failed", "error", rbErr)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
