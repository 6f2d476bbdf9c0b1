package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"stoq/internal/core/apperror"
)

func TestMapError(t *testing.T) {
	assert.NoError(t, MapError(nil, "get", "payment", "x"))
	assert.True(t, apperror.IsNotFound(MapError(pgx.ErrNoRows, "get", "payment", "x")))

	unique := &pgconn.PgError{Code: "23505", ConstraintName: "payments_pkey"}
	assert.True(t, apperror.HasCode(MapError(fmt.Errorf("wrapped: %w", unique), "insert", "payment", nil), apperror.CodeConflict))

	fk := &pgconn.PgError{Code: "23503"}
	assert.True(t, apperror.IsValidation(MapError(fk, "insert", "payment", nil)))

	check := &pgconn.PgError{Code: "23514", ColumnName: "value"}
	assert.True(t, apperror.IsInvalidValue(MapError(check, "insert", "payment", nil)))

	other := errors.New("connection reset")
	err := MapError(other, "insert", "payment", nil)
	assert.ErrorIs(t, err, other)
	assert.False(t, apperror.IsAppError(err))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, isRetryable(&pgconn.PgError{Code: "40001"}))
	assert.True(t, isRetryable(fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40P01"})))
	assert.False(t, isRetryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, isRetryable(errors.New("boom")))
}
