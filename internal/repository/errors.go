package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes for integrity violations.
const (
	codeNotNullViolation    = "23502"
	codeForeignKeyViolation = "23503"
	codeUniqueViolation     = "23505"
	codeCheckViolation      = "23514"
)

// Repositories never translate integrity errors; they wrap them with %w so callers can
// classify them with these helpers.

// IsUniqueViolation reports whether err carries a unique constraint violation.
func IsUniqueViolation(err error) bool {
	return sqlState(err) == codeUniqueViolation
}

// IsForeignKeyViolation reports whether err carries a foreign key violation, which is how a
// protected reference surfaces when its target is deleted.
func IsForeignKeyViolation(err error) bool {
	return sqlState(err) == codeForeignKeyViolation
}

// IsNotNullViolation reports whether err carries a NOT NULL violation.
func IsNotNullViolation(err error) bool {
	return sqlState(err) == codeNotNullViolation
}

// IsCheckViolation reports whether err carries a CHECK constraint violation.
func IsCheckViolation(err error) bool {
	return sqlState(err) == codeCheckViolation
}

// ConstraintName returns the violated constraint, or "" when err is not an integrity error.
func ConstraintName(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.ConstraintName
	}
	return ""
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}
