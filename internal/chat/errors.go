package chat

import "errors"

// Error codes exposed over the wire.
const (
	ErrCodeNotFound         = "not_found"
	ErrCodeForbidden        = "forbidden"
	ErrCodeInvalidOperation = "invalid_operation"
	ErrCodeUnauthenticated  = "unauthenticated"
)

var (
	// ErrNotFound covers missing boxes, messages, and user references.
	// It also masks unauthorized message access: mark-read by a
	// non-receiver reports the message as missing rather than revealing
	// that it exists.
	ErrNotFound = errors.New("not found")
	// ErrForbidden means the caller is authenticated but is not a
	// participant of the target box.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidOperation covers self-chat attempts, empty or oversized
	// content, and malformed ids.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrUnauthenticated means the caller's credential did not resolve.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// ErrorCode maps a domain error to its wire code, or "internal".
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return ErrCodeNotFound
	case errors.Is(err, ErrForbidden):
		return ErrCodeForbidden
	case errors.Is(err, ErrInvalidOperation):
		return ErrCodeInvalidOperation
	case errors.Is(err, ErrUnauthenticated):
		return ErrCodeUnauthenticated
	}
	return "internal"
}
