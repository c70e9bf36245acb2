package observer

import (
	"errors"
	"fmt"
)

// Error is an observer failure with a DOM-exception style name.
type Error struct {
	Name    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}

// Is reports whether target is an *Error with the same name, so that
// errors.Is(err, ErrNotSupported("")) matches any NotSupportedError.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Name == e.Name
}

// ErrConfiguration creates a ConfigurationError.
func ErrConfiguration(format string, args ...any) *Error {
	return &Error{Name: "ConfigurationError", Message: fmt.Sprintf(format, args...)}
}

// ErrNotSupported creates a NotSupportedError.
func ErrNotSupported(message string) *Error {
	return &Error{Name: "NotSupportedError", Message: message}
}

// ErrInvalidState creates an InvalidStateError.
func ErrInvalidState(message string) *Error {
	return &Error{Name: "InvalidStateError", Message: message}
}

// ErrReentrantCheck is returned when a check is requested while another check
// is still delivering its batch, typically because the callback triggered an
// event synchronously.
var ErrReentrantCheck = ErrInvalidState("check requested while a check is already running")
