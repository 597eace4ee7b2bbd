package backend

import (
	"errors"
	"fmt"
)

// ErrorKind classifies provider failures.
type ErrorKind int

const (
	// KindTransport covers network and backend failures during any call.
	KindTransport ErrorKind = iota
	// KindAuth covers login, logout and token failures.
	KindAuth
	// KindNotFound is returned when a task or list does not exist.
	KindNotFound
	// KindUnsupported marks a call the provider cannot serve, such as
	// streaming from a provider without stream support. It is a caller bug.
	KindUnsupported
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth error"
	case KindNotFound:
		return "not found"
	case KindUnsupported:
		return "unsupported operation"
	default:
		return "transport error"
	}
}

// Sentinel errors for use with errors.Is.
var (
	ErrTransport   = errors.New("transport error")
	ErrAuth        = errors.New("auth error")
	ErrNotFound    = errors.New("not found")
	ErrUnsupported = errors.New("unsupported operation")
)

// Error is the error type returned by providers.
type Error struct {
	Kind    ErrorKind
	Service Service
	Op      string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s: %s", e.Service, e.Op, e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error chain support.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel error of the same kind.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrTransport:
		return e.Kind == KindTransport
	case ErrAuth:
		return e.Kind == KindAuth
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrUnsupported:
		return e.Kind == KindUnsupported
	}
	return false
}

// TransportError wraps a network or backend failure.
func TransportError(service Service, op string, err error) error {
	return &Error{Kind: KindTransport, Service: service, Op: op, Err: err}
}

// AuthError wraps an authentication failure.
func AuthError(service Service, op string, err error) error {
	return &Error{Kind: KindAuth, Service: service, Op: op, Err: err}
}

// NotFoundError reports a missing task or list.
func NotFoundError(service Service, op, id string) error {
	return &Error{Kind: KindNotFound, Service: service, Op: op, Err: fmt.Errorf("%q does not exist", id)}
}

// UnsupportedError reports an operation the provider cannot perform.
func UnsupportedError(service Service, op string) error {
	return &Error{Kind: KindUnsupported, Service: service, Op: op}
}
