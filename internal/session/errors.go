package session

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthFailed marks a credential whose authentication cannot
	// complete; the account's retrieval yields no data and the run
	// moves on.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrChallengeLimit is wrapped into ErrAuthFailed when the endpoint
	// keeps raising challenges past the resubmission bound.
	ErrChallengeLimit = errors.New("challenge limit exceeded")

	// ErrNoMedia means the endpoint requires a named TAN medium but
	// offers none. Fatal for that credential.
	ErrNoMedia = errors.New("no TAN media available")
)

// TransportError wraps a network or endpoint failure during retrieval
// or TAN resubmission.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
