package domain

import "errors"

var (
	ErrNotFound           = errors.New("not found")
	ErrAlreadyExists      = errors.New("already exists")
	ErrRateLimited        = errors.New("rate limited")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrLockHeld           = errors.New("lock already held")
	ErrRejected           = errors.New("resolution rejected")
	ErrAlreadyResolved    = errors.New("contract already resolved")
	ErrNotMultiAnswer     = errors.New("contract is not a multi-answer market")
	ErrInvalidMode        = errors.New("invalid resolution mode")
	ErrInvalidAnswer      = errors.New("invalid answer id")
	ErrValidationGuard    = errors.New("resolution choice is not submittable")
	ErrSubmissionInFlight = errors.New("resolution submission in flight")
	ErrSessionClosed      = errors.New("resolution session closed")
)

// UserFacing is implemented by errors whose message may be shown to an end
// user verbatim.
type UserFacing interface {
	UserMessage() string
}

// RejectionError is a classified refusal that did not come from the remote
// API, e.g. a concurrent resolution holding the contract lock.
type RejectionError struct {
	Message string
}

func (e *RejectionError) Error() string       { return e.Message }
func (e *RejectionError) UserMessage() string { return e.Message }
func (e *RejectionError) Unwrap() error       { return ErrRejected }
