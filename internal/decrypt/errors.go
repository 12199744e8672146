package decrypt

import (
	"errors"
	"fmt"
)

// ErrorKind classifies why an oracle call failed
type ErrorKind int

const (
	// InvalidInput means the call was rejected before any network I/O
	InvalidInput ErrorKind = iota
	// Network means the oracle could not be reached
	Network
	// BadStatus means the oracle answered with a non-2xx status
	BadStatus
	// ParseFailure means the oracle answered but the body was unusable
	ParseFailure
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidInput:
		return "invalid input"
	case Network:
		return "network"
	case BadStatus:
		return "bad status"
	case ParseFailure:
		return "parse failure"
	default:
		return "unknown"
	}
}

// Error is returned by every Client method
type Error struct {
	Kind     ErrorKind
	Endpoint string
	// Status is the HTTP status for BadStatus errors, zero otherwise
	Status int
	Err    error
}

func (e *Error) Error() string {
	msg := "decrypt: " + e.Kind.String()
	if e.Status != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.Status)
	}
	if e.Endpoint != "" {
		msg += " from " + e.Endpoint
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsKind reports whether err is a decrypt error of the given kind
func IsKind(err error, kind ErrorKind) bool {
	var de *Error
	return errors.As(err, &de) && de.Kind == kind
}

// IsOracleDown reports whether err means the oracle itself is unavailable,
// as opposed to a bad token or an unexpected payload.
func IsOracleDown(err error) bool {
	return IsKind(err, Network) || IsKind(err, BadStatus)
}
