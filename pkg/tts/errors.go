package tts

import (
	"errors"
	"strings"
)

// Error kinds. Match them with errors.Is; every failure returned by this
// package is an *Error carrying one of these as its Kind.
var (
	// ErrUnknownProvider is returned when a selector prefix names no registered provider.
	ErrUnknownProvider = errors.New("unknown tts provider")

	// ErrEmptyText is returned when attempting to synthesize empty text.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrProvider is returned when the provider's own status field reports failure.
	ErrProvider = errors.New("provider reported failure")

	// ErrTransport is returned on connection failures and non-2xx responses.
	ErrTransport = errors.New("provider transport failure")

	// ErrParse is returned when a response does not have the expected shape.
	ErrParse = errors.New("unexpected provider response")

	// ErrDecode is returned when an inline audio payload is not valid base64.
	ErrDecode = errors.New("audio payload decode failure")

	// ErrFetch is returned when downloading a hosted audio file fails.
	ErrFetch = errors.New("audio download failure")

	// ErrIO is returned when the artifact cannot be written.
	ErrIO = errors.New("artifact write failure")
)

// Error provides detailed information about a failed synthesis attempt.
type Error struct {
	// Provider is the provider tag, empty when the failure happened before
	// a provider was selected.
	Provider string

	// Kind is one of the Err* sentinels above.
	Kind error

	// Message is the detail, usually the provider's own text for ErrProvider.
	Message string

	// Cause is the underlying error, if any.
	Cause error
}

func (e *Error) Error() string {
	parts := make([]string, 0, 4)
	if e.Provider != "" {
		parts = append(parts, e.Provider)
	}
	if e.Kind != nil {
		parts = append(parts, e.Kind.Error())
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

// Is reports whether target is this error's kind.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func newError(provider string, kind error, message string, cause error) *Error {
	return &Error{
		Provider: provider,
		Kind:     kind,
		Message:  message,
		Cause:    cause,
	}
}
