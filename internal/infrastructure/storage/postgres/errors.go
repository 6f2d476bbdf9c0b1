package postgres

import (
	"errors"
	"fmt"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5/pgconn"

	"stoq/internal/core/apperror"
)

// PostgreSQL error codes mapped to application errors.
const (
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
)

// MapError converts driver errors to apperror values. entity and key name
// the row for NotFound; op describes the statement for wrapped errors.
func MapError(err error, op, entity string, key any) error {
	if err == nil {
		return nil
	}
	if pgxscan.NotFound(err) {
		return apperror.NewNotFound(entity, key)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return apperror.NewConflict(fmt.Sprintf("%s already exists", entity)).
				WithDetail("constraint", pgErr.ConstraintName).WithCause(err)
		case codeForeignKeyViolation:
			return apperror.NewValidation(fmt.Sprintf("%s references a missing record", entity)).
				WithDetail("constraint", pgErr.ConstraintName).WithCause(err)
		case codeCheckViolation:
			return apperror.NewInvalidValue(pgErr.ColumnName, pgErr.Message).WithCause(err)
		}
	}
	return fmt.Errorf("%s %s: %w", op, entity, err)
}
