package drive

// Error represents a domain error from engine operations.
//
// These are business logic errors (record not found, permission denied,
// validation failure) as opposed to infrastructure errors (disk failure,
// network failure). The HTTP layer translates Error codes to status codes.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Field is the request field related to the error (if applicable).
	// Validation failures always carry it.
	Field string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field != "" {
		return e.Message + ": " + e.Field
	}
	return e.Message
}

// ErrorCode represents the category of a domain error.
type ErrorCode int

const (
	// ErrUnauthenticated indicates no valid API key was presented
	ErrUnauthenticated ErrorCode = iota

	// ErrUnauthorized indicates the principal lacks the needed right
	ErrUnauthorized

	// ErrNotFound indicates an ID or path has no live record
	ErrNotFound

	// ErrBadRequest indicates a validation failure; Field names the input
	ErrBadRequest

	// ErrAlreadyExists indicates a path-bound create collides with a live record
	ErrAlreadyExists

	// ErrAlreadyClaimed indicates a client-suggested UUID is already issued
	ErrAlreadyClaimed

	// ErrConflict indicates the write would violate an invariant
	// Examples: redeeming a non-placeholder invite, restoring onto an
	// occupied path without a resolution
	ErrConflict

	// ErrUnreachable indicates a required cross-tenant call did not
	// complete in time
	ErrUnreachable

	// ErrInternal indicates serialization or index corruption
	ErrInternal
)

// String returns the canonical name of the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrUnauthenticated:
		return "unauthenticated"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrNotFound:
		return "not_found"
	case ErrBadRequest:
		return "bad_request"
	case ErrAlreadyExists:
		return "already_exists"
	case ErrAlreadyClaimed:
		return "already_claimed"
	case ErrConflict:
		return "conflict"
	case ErrUnreachable:
		return "unreachable"
	case ErrInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// NotFound builds a NotFound error for the given entity description.
func NotFound(what string) *Error {
	return &Error{Code: ErrNotFound, Message: what + " not found"}
}

// BadRequest builds a validation error naming the offending field.
func BadRequest(field, message string) *Error {
	return &Error{Code: ErrBadRequest, Message: message, Field: field}
}

// Unauthorized builds a permission error.
func Unauthorized(message string) *Error {
	return &Error{Code: ErrUnauthorized, Message: message}
}

// Conflict builds an invariant-violation error.
func Conflict(message string) *Error {
	return &Error{Code: ErrConflict, Message: message}
}

// Internal builds an internal error.
func Internal(message string) *Error {
	return &Error{Code: ErrInternal, Message: message}
}
