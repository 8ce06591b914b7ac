package model

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across controllers.
var (
	// ErrSessionInvalid is returned when the backend reports the
	// session invalid or expired. Controllers fail closed on it: the
	// caller must run the expiry path (best-effort logout, clear
	// persisted session, return to the entry point).
	ErrSessionInvalid = errors.New("session invalid or expired")

	// ErrNoSession is returned by calls that need a persisted session
	// when none exists.
	ErrNoSession = errors.New("no active session")

	// ErrSoldOut rejects selecting a train with no seats left.
	ErrSoldOut = errors.New("train is sold out")

	// ErrUnknownTrain rejects selecting a train id absent from the
	// current train list.
	ErrUnknownTrain = errors.New("unknown train")

	// ErrNoSelection rejects booking without a selected train.
	ErrNoSelection = errors.New("no train selected")

	// ErrBookingInFlight rejects a booking call while another one is
	// outstanding on the same controller (single-flight guard).
	ErrBookingInFlight = errors.New("booking already in flight")
)

// TransportError wraps a network or connection failure on a gateway
// call. It is distinct from an application-level rejection: transport
// errors on queue entry and session validation are fatal for the
// current flow, while booking transport errors may be retried by the
// user.
type TransportError struct {
	Op  string // gateway operation, e.g. "enter queue", "book"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// RejectionError is a well-formed application-level failure from the
// backend (invalid credentials, seat gone, session invalid). It is
// never retried automatically and its Message is shown to the user
// verbatim when present.
type RejectionError struct {
	Status  int    // HTTP status code
	Message string // backend-provided message, may be empty
}

func (e *RejectionError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("request rejected (status %d)", e.Status)
}

// AsRejection extracts a RejectionError from err, if any.
func AsRejection(err error) (*RejectionError, bool) {
	var re *RejectionError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}
