package api

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindTransport   ErrorKind = "TRANSPORT"
	KindApplication ErrorKind = "APPLICATION"
	KindAuth        ErrorKind = "AUTH"
	KindDecode      ErrorKind = "DECODE"
)

var (
	ErrNoSession   = errors.New("no active session")
	ErrAuthExpired = errors.New("authentication expired")
)

// Error is the normalized failure every call site sees. The duck-typed
// response shapes of the remote API are folded into it once, at the
// transport boundary.
type Error struct {
	Kind    ErrorKind
	Status  int // HTTP status, 0 on network-level failure
	Code    int // envelope code, 0 when absent
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.cause)
	}
	return string(e.Kind)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// Statuses worth another attempt. Everything else propagates immediately.
var retryableStatuses = map[int]bool{
	408: true,
	429: true,
	500: true,
	502: true,
	503: true,
	504: true,
}

func isRetryable(err error) bool {
	var apiErr *Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Kind != KindTransport {
		return false
	}
	if apiErr.Status == 0 {
		// Network-level failure
		return true
	}
	return retryableStatuses[apiErr.Status]
}

func isUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindAuth
}
