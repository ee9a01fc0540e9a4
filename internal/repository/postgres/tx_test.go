package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"

	"penguin-ternos-backend/internal/domain"
)

func TestSQLState(t *testing.T) {
	code, msg, ok := sqlState(fmt.Errorf("wrapped: %w", &pq.Error{Code: "40P01", Message: "deadlock detected"}))
	assert.True(t, ok)
	assert.Equal(t, "40P01", code)
	assert.Equal(t, "deadlock detected", msg)

	code, _, ok = sqlState(&pgconn.PgError{Code: "42883"})
	assert.True(t, ok)
	assert.Equal(t, "42883", code)
	assert.True(t, isUndefinedFunction(&pgconn.PgError{Code: "42883"}))

	_, _, ok = sqlState(errors.New("plain"))
	assert.False(t, ok)

	assert.True(t, isRetryable(&pgconn.PgError{Code: codeSerializationFailure}))
	assert.False(t, isRetryable(&pq.Error{Code: codeUniqueViolation}))
}

func TestTxRunner_GivesUpAfterAttempts(t *testing.T) {
	_, mock, tx := newMock(t)

	conflict := &pq.Error{Code: codeSerializationFailure}
	calls := 0
	for i := 0; i < 3; i++ {
		mock.ExpectBegin()
		mock.ExpectRollback()
	}

	err := tx.run(context.Background(), "test", func(*sql.Tx) error {
		calls++
		return conflict
	})
	assert.ErrorIs(t, err, conflict)
	assert.Equal(t, 3, calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTranslateProcedureError(t *testing.T) {
	assert.True(t, domain.IsNotFound(translateProcedureError(&pq.Error{Code: codeNoDataFound}, 4)))
	assert.Equal(t, "line 9 is not rented", translateProcedureError(&pq.Error{Code: codeRaiseException, Message: "line 9 is not rented"}, 4).Error())
	plain := errors.New("boom")
	assert.Equal(t, plain, translateProcedureError(plain, 4))
}
