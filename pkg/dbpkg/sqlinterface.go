package dbpkg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

// SQLInterface provides neccessary db methods to perform transactions and queries.
type SQLInterface interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Postgres error codes of failures that may succeed when retried.
const (
	CodeSerializationFailure = pq.ErrorCode("40001")
	CodeDeadlockDetected     = pq.ErrorCode("40P01")
	CodeLockNotAvailable     = pq.ErrorCode("55P03")
	CodeQueryCanceled        = pq.ErrorCode("57014")
)

// IsTransient reports whether err is a postgres failure caused by contention.
func IsTransient(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}

	switch pqErr.Code {
	case CodeSerializationFailure, CodeDeadlockDetected, CodeLockNotAvailable, CodeQueryCanceled:
		return true
	}

	return false
}

// Constraint returns the name of the constraint violated by err, if any.
func Constraint(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Constraint
	}

	return ""
}
