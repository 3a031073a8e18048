// Package neterr defines the typed error taxonomy shared across the
// scanning, discovery, and API layers.
package neterr

import (
	"errors"
	"fmt"
)

// Kind classifies an error so callers can branch on it with errors.Is
// without string matching, and so the API layer can map it to an HTTP
// status without inspecting message text.
type Kind string

const (
	KindConfig        Kind = "config"
	KindTransport     Kind = "transport"
	KindParse         Kind = "parse"
	KindAuth          Kind = "auth"
	KindSingletonBusy Kind = "singleton_busy"
	KindToolMissing   Kind = "tool_missing"
	KindStore         Kind = "store"
)

// Error wraps an underlying cause with a Kind and a component tag.
type Error struct {
	Kind      Kind
	Component string
	Message   string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Component, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Component, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err (or anything it wraps) carries the given Kind.
func IsKind(err error, k Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == k
}

func newErr(kind Kind, component, message string, cause error) *Error {
	return &Error{Kind: kind, Component: component, Message: message, Err: cause}
}

func ConfigError(component, message string, cause error) *Error {
	return newErr(KindConfig, component, message, cause)
}

func TransportError(component, message string, cause error) *Error {
	return newErr(KindTransport, component, message, cause)
}

func ParseError(component, message string, cause error) *Error {
	return newErr(KindParse, component, message, cause)
}

func AuthError(component, message string, cause error) *Error {
	return newErr(KindAuth, component, message, cause)
}

func SingletonBusyError(component, message string) *Error {
	return newErr(KindSingletonBusy, component, message, nil)
}

func ToolMissingError(component, message string, cause error) *Error {
	return newErr(KindToolMissing, component, message, cause)
}

func StoreError(component, message string, cause error) *Error {
	return newErr(KindStore, component, message, cause)
}

// HTTPStatus maps a Kind to the status code the façade should return.
func HTTPStatus(err error) int {
	var e *Error
	if !errors.As(err, &e) {
		return 500
	}
	switch e.Kind {
	case KindConfig, KindParse:
		return 400
	case KindAuth:
		return 401
	case KindToolMissing:
		return 503
	case KindSingletonBusy:
		return 409
	case KindTransport:
		return 502
	case KindStore:
		return 500
	default:
		return 500
	}
}
