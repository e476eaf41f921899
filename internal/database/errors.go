package database

import (
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"
)

// Engine error kinds. Errors returned by DB wrap one of these together
// with the original driver error.
var (
	ErrUniqueViolation     = errors.New("unique constraint violation")
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")
	ErrCheckViolation      = errors.New("constraint violation")
	// ErrBusy means another writer holds the database lock. Retryable.
	ErrBusy = errors.New("database is busy")
)

// Classify maps a mattn/go-sqlite3 error onto the sentinels above. Errors
// that are already classified, and non-engine errors, are returned as is.
func Classify(err error) error {
	if err == nil || isClassified(err) {
		return err
	}

	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}

	switch sqliteErr.ExtendedCode {
	case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
		return fmt.Errorf("%w: %w", ErrUniqueViolation, err)
	case sqlite3.ErrConstraintForeignKey:
		return fmt.Errorf("%w: %w", ErrForeignKeyViolation, err)
	}

	switch sqliteErr.Code {
	case sqlite3.ErrConstraint:
		return fmt.Errorf("%w: %w", ErrCheckViolation, err)
	case sqlite3.ErrBusy, sqlite3.ErrLocked:
		return fmt.Errorf("%w: %w", ErrBusy, err)
	}
	return err
}

func isClassified(err error) bool {
	return errors.Is(err, ErrUniqueViolation) ||
		errors.Is(err, ErrForeignKeyViolation) ||
		errors.Is(err, ErrCheckViolation) ||
		errors.Is(err, ErrBusy)
}

// IsConstraint reports whether err is any constraint failure.
func IsConstraint(err error) bool {
	err = Classify(err)
	return errors.Is(err, ErrUniqueViolation) ||
		errors.Is(err, ErrForeignKeyViolation) ||
		errors.Is(err, ErrCheckViolation)
}

// IsRetryable reports whether the operation may succeed if retried.
func IsRetryable(err error) bool {
	return errors.Is(Classify(err), ErrBusy)
}
