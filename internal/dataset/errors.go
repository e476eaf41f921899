package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mrlokans/annotator/internal/database"
	"github.com/mrlokans/annotator/internal/metrics"
)

// Error kinds. Test with errors.Is.
var (
	ErrValidation    = errors.New("validation failed")
	ErrConstraint    = errors.New("constraint violation")
	ErrAlreadyExists = errors.New("already exists")
	ErrNotFound      = errors.New("not found")
	// ErrBusy means the store was locked by another writer; the call may
	// be retried.
	ErrBusy = errors.New("database is busy")
)

// ValidationError lists every problem found in an input record. No write
// was attempted.
type ValidationError struct {
	Entity   string
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Entity, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// Error is a domain error with a user-facing message.
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newValidationError(entity string, problems ...string) error {
	return &ValidationError{Entity: entity, Problems: problems}
}

func duplicateFilename(err error) error {
	return &Error{Kind: ErrConstraint, Message: "image with this filename already exists", Err: err}
}

func duplicateLabelName(err error) error {
	return &Error{Kind: ErrConstraint, Message: "label with this name already exists", Err: err}
}

func duplicateAnnotation(err error) error {
	return &Error{Kind: ErrAlreadyExists, Message: "annotation already exists for this image and label", Err: err}
}

func notFound(format string, args ...any) error {
	return &Error{Kind: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

// translate maps engine errors that no operation-specific rule handled.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrBusy):
		return &Error{Kind: ErrBusy, Message: "database is busy, try again", Err: err}
	case errors.Is(err, database.ErrUniqueViolation),
		errors.Is(err, database.ErrForeignKeyViolation),
		errors.Is(err, database.ErrCheckViolation):
		return &Error{Kind: ErrConstraint, Message: "the change conflicts with existing data", Err: err}
	}
	return err
}

// outcome classifies err for metrics.
func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, ErrValidation):
		return metrics.OutcomeInvalid
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrConstraint), errors.Is(err, ErrAlreadyExists):
		return metrics.OutcomeConflict
	case errors.Is(err, ErrBusy):
		return metrics.OutcomeBusy
	}
	return metrics.OutcomeError
}
