package sessionstate

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownEvent is returned for an event kind outside created/updated/terminated.
	ErrUnknownEvent = errors.New("sessionstate: unknown lifecycle event")

	// ErrLockFailed is returned when the per-key lock cannot be acquired.
	ErrLockFailed = errors.New("sessionstate: failed to lock session key")

	// ErrInconsistentState is matched by every InconsistentStateError.
	ErrInconsistentState = errors.New("sessionstate: more than one record for key")
)

// InconsistentStateError reports that the store holds more than one record
// for a (user, service provider) pair. The reconciliation that found it was
// rolled back.
type InconsistentStateError struct {
	User            string
	ServiceProvider string
	Err             error
}

func (e *InconsistentStateError) Error() string {
	return fmt.Sprintf("sessionstate: more than one record for user=%s service_provider=%s: %v",
		e.User, e.ServiceProvider, e.Err)
}

func (e *InconsistentStateError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrInconsistentState) match.
func (e *InconsistentStateError) Is(target error) bool {
	return target == ErrInconsistentState
}
