package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories translate into domain errors.
const (
	CodeUniqueViolation     = "23505"
	CodeForeignKeyViolation = "23503"
	CodeCheckViolation      = "23514"
	CodeExclusionViolation  = "23P01"
)

// Violation returns the SQLSTATE and constraint name of a Postgres error, or
// empty strings if err is not one.
func Violation(err error) (code, constraint string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

// IsViolation reports whether err is a Postgres error with the given code on
// the given constraint. An empty constraint matches any.
func IsViolation(err error, code, constraint string) bool {
	c, name := Violation(err)
	if c != code {
		return false
	}
	return constraint == "" || constraint == name
}
