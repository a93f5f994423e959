package apiclient

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies failures surfaced by the client and the session layer.
type Kind int

const (
	KindUnknown Kind = iota
	// KindInvalidCredentials: the server rejected a login or registration.
	KindInvalidCredentials
	// KindMalformedResponse: a 2xx response missing required fields.
	KindMalformedResponse
	// KindSessionExpired: a 401 on an authenticated call.
	KindSessionExpired
	// KindNetwork: no response was received (includes timeouts).
	KindNetwork
	// KindValidation: a client-side precondition failed; nothing was sent.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindInvalidCredentials:
		return "invalid credentials"
	case KindMalformedResponse:
		return "malformed response"
	case KindSessionExpired:
		return "session expired"
	case KindNetwork:
		return "network error"
	case KindValidation:
		return "validation error"
	default:
		return "unknown error"
	}
}

// FieldError is a validation failure on a single input field.
type FieldError struct {
	Field   string
	Message string
}

// Error is a typed failure carrying its Kind.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Fields  []FieldError
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	for _, f := range e.Fields {
		fmt.Fprintf(&b, "; %s: %s", f.Field, f.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError builds an *Error of the given kind.
func NewError(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether err (or any error in its chain) is an *Error of kind.
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// StatusError is a non-2xx response other than an intercepted 401. It is
// passed to the caller unmodified.
type StatusError struct {
	StatusCode int
	Method     string
	Path       string

	// Message is the server's "message" field, when it sent one.
	Message string
	Body    []byte
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("unexpected status %d on %s %s: %s",
			e.StatusCode, e.Method, e.Path, e.Message)
	}
	return fmt.Sprintf("unexpected status %d on %s %s: %s",
		e.StatusCode, e.Method, e.Path, string(e.Body))
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}
