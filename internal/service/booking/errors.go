package booking

import (
	"errors"
	"fmt"
	"strings"
)

// Errors returned by Service.  Callers match them with errors.Is; the
// wrapped message carries the offending id or field.
var (
	// ErrNotFound: a referenced room, reservation, cancellation or user
	// does not exist.  Nothing was written.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput: the request was rejected before any write.
	ErrInvalidInput = errors.New("invalid input")
	// ErrConflict: a concurrent writer kept winning the same room after
	// the bounded retries.  Nothing was written.
	ErrConflict = errors.New("conflict")
	// ErrRoomUnavailable: strict availability is on and a requested night
	// is already blocked.
	ErrRoomUnavailable = fmt.Errorf("%w: room unavailable", ErrConflict)
	// ErrInternal: storage failure.  See StepError for details.
	ErrInternal = errors.New("internal error")
	// ErrForbidden: the caller may not act on another user's reservation.
	ErrForbidden = errors.New("forbidden")
)

// StepError reports which step of a flow failed.  The flow's transaction
// was rolled back unless NeedsReconcile is set: then the commit itself
// failed and its outcome is unknown, so the room ledger, reservation and
// booking index should be checked with Service.Reconcile.
type StepError struct {
	Flow           string
	Step           string
	Err            error
	NeedsReconcile bool
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s: step %s failed: %v", e.Flow, e.Step, e.Err)
}

// Unwrap exposes ErrInternal and the underlying cause.
func (e *StepError) Unwrap() []error { return []error{ErrInternal, e.Err} }

// stepFailure tags an error with the step that produced it while the
// transaction is still running.
type stepFailure struct {
	step string
	err  error
}

func (f *stepFailure) Error() string { return f.step + ": " + f.err.Error() }
func (f *stepFailure) Unwrap() error { return f.err }

func at(step string, err error) error {
	if err == nil || isDomain(err) {
		return err
	}
	return &stepFailure{step: step, err: err}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func roomUnavailable(roomID uint64, taken []string) error {
	return fmt.Errorf("%w: room %d is booked on %s", ErrRoomUnavailable, roomID, strings.Join(taken, ", "))
}

func notFound(entity string, id uint64) error {
	return fmt.Errorf("%w: %s %d", ErrNotFound, entity, id)
}

// isDomain reports whether err is one of the caller-facing outcomes that
// pass through unchanged.
func isDomain(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrForbidden)
}
