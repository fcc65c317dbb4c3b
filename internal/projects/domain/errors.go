package domain

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("project not found")
	ErrForbidden       = errors.New("forbidden")
)

// Error carries a machine-readable code and a caller-facing message for one
// of the sentinel kinds above. errors.Is(err, ErrNotFound) and friends work on it.
type Error struct {
	Kind    error
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Kind
}

func InvalidArgument(code, msg string) *Error {
	return &Error{Kind: ErrInvalidArgument, Code: code, Message: msg}
}

func NotFound(msg string) *Error {
	return &Error{Kind: ErrNotFound, Code: "not_found", Message: msg}
}

func Forbidden(msg string) *Error {
	return &Error{Kind: ErrForbidden, Code: "forbidden", Message: msg}
}
