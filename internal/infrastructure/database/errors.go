package database

import (
	stderrors "errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fairdial/leadline-backend/internal/domain/errors"
)

// PostgreSQL error codes the engine reacts to.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Classify maps PostgreSQL failures onto the domain error taxonomy.
// Serialization failures and deadlocks come back retryable so the service
// layer replays the transaction; unique violations become conflicts.
// Anything else passes through unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if !stderrors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected:
		return errors.NewTransientError("transaction conflicted, safe to retry").WithCause(err)
	case codeUniqueViolation:
		return errors.NewConflictError("row already exists").
			WithDetails(map[string]interface{}{"constraint": pgErr.ConstraintName}).
			WithCause(err)
	default:
		return err
	}
}

// IsUniqueViolation reports whether err is a unique violation, optionally
// on a specific constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !stderrors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != codeUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}
