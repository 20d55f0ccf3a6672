package service

import (
	"github.com/pkg/errors"
)

var (
	// ErrNotServing is returned by ReleaseRoom when the user holds no room.
	ErrNotServing = errors.New("user is not being served")
	// ErrNotRegistered is returned when an unregistered user tries to check in.
	ErrNotRegistered = errors.New("user is not registered")
	// ErrInvalidUser is returned for an empty user id.
	ErrInvalidUser = errors.New("user id is required")
)

// Reasons are the enumerated rejection strings exposed to callers.
const (
	ReasonNotServing    = "NOT_SERVING"
	ReasonNotRegistered = "NOT_REGISTERED"
	ReasonInvalidUser   = "INVALID_USER"
	ReasonUnavailable   = "UNAVAILABLE"
)

// SystemError wraps a store failure, a timeout or exhausted conflict
// retries.  The operation did not apply and may be retried by the caller.
type SystemError struct {
	Op  string
	Err error
}

func (e *SystemError) Error() string { return e.Op + ": " + e.Err.Error() }

func (e *SystemError) Unwrap() error { return e.Err }

// Temporary reports that the caller may retry.
func (e *SystemError) Temporary() bool { return true }

// Reason maps err onto its enumerated reason string.  Unknown errors are
// reported as UNAVAILABLE.
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrNotServing):
		return ReasonNotServing
	case errors.Is(err, ErrNotRegistered):
		return ReasonNotRegistered
	case errors.Is(err, ErrInvalidUser):
		return ReasonInvalidUser
	default:
		return ReasonUnavailable
	}
}
