package transport

import (
	"errors"
	"fmt"

	"gqlherd/internal/graphql"
)

// Kind classifies an upstream failure for the retry policy
type Kind int

const (
	// Transient failures are retry-worthy: connection refusal, DNS
	// failures, timeouts, aborted requests, server-side HTTP errors.
	Transient Kind = iota
	// Permanent failures cannot be fixed by retrying: client-side HTTP
	// errors and application-level errors in the response envelope.
	Permanent
)

// String returns the kind name
func (k Kind) String() string {
	if k == Permanent {
		return "permanent"
	}
	return "transient"
}

// Error represents a classified transport failure
type Error struct {
	Kind   Kind
	Status int // HTTP status, 0 if the request never completed
	Err    error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("upstream HTTP %d: %v", e.Status, e.Err)
	}
	return fmt.Sprintf("upstream request failed: %v", e.Err)
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the classification of err.
// Errors without an explicit classification default to transient:
// a round trip that never completed (connection refused, DNS failure,
// timeout, abort) is always worth another attempt, and only errors
// provably caused by the request itself are worth giving up on.
func KindOf(err error) Kind {
	var te *Error
	if errors.As(err, &te) {
		return te.Kind
	}
	var re *graphql.ResponseError
	if errors.As(err, &re) {
		return Permanent
	}
	return Transient
}

// IsPermanent returns true if err is classified as permanent
func IsPermanent(err error) bool {
	return KindOf(err) == Permanent
}
