package db

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

// Class buckets storage failures for logging and retry decisions.
type Class string

const (
	ClassNone      Class = ""
	ClassConflict  Class = "conflict"
	ClassNotFound  Class = "not_found"
	ClassRetryable Class = "retryable"
	ClassCanceled  Class = "canceled"
	ClassInternal  Class = "internal"
)

// Classify maps driver and gorm errors into a Class.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ClassNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassCanceled
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch strings.TrimSpace(pgErr.Code) {
		case "23505":
			return ClassConflict // unique_violation
		case "40001", "40P01", "55P03", "57P01":
			return ClassRetryable // serialization/deadlock/lock_not_available/admin_shutdown
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "duplicate key"), strings.Contains(msg, "unique constraint failed"):
		return ClassConflict
	case strings.Contains(msg, "deadlock"),
		strings.Contains(msg, "serialization"),
		strings.Contains(msg, "database is locked"),
		strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "bad connection"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "timeout"):
		return ClassRetryable
	default:
		return ClassInternal
	}
}

// IsRetryable reports whether a retry of the same operation may succeed.
// Cancellation counts as retryable: the caller, not the statement, gave up.
func IsRetryable(err error) bool {
	switch Classify(err) {
	case ClassRetryable, ClassCanceled:
		return true
	}
	return false
}
