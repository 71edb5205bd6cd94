package transport

import (
	"errors"
	"fmt"

	"github.com/pion/webrtc/v4"
)

var (
	// ErrInvalidState rejects an operation that does not fit the session's
	// role or state. The session is left unchanged.
	ErrInvalidState = errors.New("invalid session state")

	// ErrNotConnected is returned by Send when the message channel is not
	// open. The message is dropped.
	ErrNotConnected = errors.New("message channel is not open")

	// ErrNotReady means gathering has not finished or no local description exists yet.
	ErrNotReady = errors.New("negotiation packet not ready")

	// ErrTransportUnavailable means the underlying peer connection could not
	// be created or refused an operation.
	ErrTransportUnavailable = errors.New("transport unavailable")

	// ErrTransportFailure is reported once connectivity is lost. It is never retried.
	ErrTransportFailure = errors.New("transport failure")
)

// CandidateError records one remote candidate that could not be applied.
// It is logged and skipped; the session continues with the rest.
type CandidateError struct {
	Index     int
	Candidate webrtc.ICECandidateInit
	Err       error
}

func (e *CandidateError) Error() string {
	return fmt.Sprintf("remote candidate #%d %q: %v", e.Index, e.Candidate.Candidate, e.Err)
}

func (e *CandidateError) Unwrap() error { return e.Err }
