package workflow

import (
	"errors"
	"fmt"
	"time"

	"github.com/montron/pm_backend/models"
	"github.com/montron/pm_backend/utils"
)

var (
	// ErrNotFound covers missing and cross-tenant records.
	ErrNotFound = errors.New("not found")
	// ErrConflict covers already-released workdays and concurrent releases.
	ErrConflict = errors.New("conflict")
	// ErrPinNotConfigured means the user never registered a PIN.
	ErrPinNotConfigured = errors.New("pin not configured")
)

// ValidationBlockedError aborts a release over unresolved ERROR issues.
type ValidationBlockedError struct {
	Issues []models.ValidationIssue
}

func (e *ValidationBlockedError) Error() string {
	n := 0
	for _, issue := range e.Issues {
		if issue.Severity == models.IssueSeverityError {
			n++
		}
	}
	return fmt.Sprintf("release blocked by %d error-level validation issue(s)", n)
}

// BadInputError reports a malformed argument.
type BadInputError struct {
	Field  string
	Reason string
}

func (e *BadInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// PinInvalidError is a PIN mismatch that did not yet trigger a lockout.
type PinInvalidError struct {
	RemainingAttempts int
}

func (e *PinInvalidError) Error() string {
	return fmt.Sprintf("invalid pin, %d attempt(s) remaining", e.RemainingAttempts)
}

// PinLockedError carries the lockout expiry so clients can show a countdown.
type PinLockedError struct {
	LockedUntil time.Time
}

func (e *PinLockedError) Error() string {
	return fmt.Sprintf("pin locked until %s", e.LockedUntil.UTC().Format(time.RFC3339))
}

// StorageError wraps a render or export failure during release.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage failure during %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func notFound(what, id string) error {
	return fmt.Errorf("%s %s: %w", what, id, ErrNotFound)
}

// mapNotFound turns the models' not-found sentinel into ErrNotFound.
func mapNotFound(err error, what, id string) error {
	if errors.Is(err, utils.ErrorRecordNotFound) {
		return notFound(what, id)
	}
	return err
}
