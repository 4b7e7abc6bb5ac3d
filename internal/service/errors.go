package service

import "fmt"

// ErrorKind classifies recoverable failures so handlers can map them to
// toast severities without string matching.
type ErrorKind string

const (
	ErrParseFailure      ErrorKind = "parseFailure"
	ErrLocalWriteFailure ErrorKind = "localWriteFailure"
	ErrRemoteTransport   ErrorKind = "remoteTransportFailure"
	ErrRemoteStale       ErrorKind = "remoteStale"
	ErrBusy              ErrorKind = "busy"
	ErrSourceSync        ErrorKind = "sourceSyncFailure"
	ErrNotAuthenticated  ErrorKind = "notAuthenticated"
	ErrUnknown           ErrorKind = "unknown"
)

// ServiceError is the typed result variant surfaced instead of raw
// errors.
type ServiceError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, err error) *ServiceError {
	return &ServiceError{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the error kind, defaulting to unknown.
func KindOf(err error) ErrorKind {
	if se, ok := err.(*ServiceError); ok {
		return se.Kind
	}
	return ErrUnknown
}
