package records

import "fmt"

// ErrorCode identifies why a record could not be resolved.
type ErrorCode string

const (
	// ErrCodeInvalidReference: the caller reference could not be parsed (no separator)
	ErrCodeInvalidReference ErrorCode = "invalid_reference"

	// ErrCodeNotFound: no record exists for the caller's identity and upload reference
	ErrCodeNotFound ErrorCode = "not_found"

	// ErrCodeNotReady: the record exists but has no object key yet
	ErrCodeNotReady ErrorCode = "not_ready"

	// ErrCodeStoreUnavailable: the record store returned an error
	ErrCodeStoreUnavailable ErrorCode = "store_unavailable"
)

// ResolveError is returned by the Resolver for every failed lookup.
type ResolveError struct {
	code    ErrorCode
	message string

	// status is the record status (NotReady only)
	status Status

	wrapped error
}

func (e *ResolveError) Error() string {
	if e.wrapped != nil {
		return fmt.Sprintf("%s: %v", e.message, e.wrapped)
	}
	return e.message
}

func (e *ResolveError) Code() ErrorCode { return e.code }
func (e *ResolveError) Unwrap() error   { return e.wrapped }

// Status returns the record status carried by a NotReady error.
func (e *ResolveError) Status() Status { return e.status }

// NewResolveError creates a ResolveError with the given code.
func NewResolveError(code ErrorCode, msg string) error {
	return &ResolveError{code: code, message: msg}
}

// WrapResolveError wraps an existing error as a ResolveError with the given code.
func WrapResolveError(err error, code ErrorCode, msg string) error {
	return &ResolveError{code: code, message: msg, wrapped: err}
}

// NewNotReadyError reports a record that exists but has no artifact yet.
func NewNotReadyError(key RecordKey, status Status) error {
	return &ResolveError{
		code:    ErrCodeNotReady,
		message: fmt.Sprintf("record %s has status %s and no object key", key.ID(), status),
		status:  status,
	}
}
