// Package dberror defines the error taxonomy shared by the query builders.
// Every failure carries an HTTP-like status and a machine-readable sub-code
// so the transport layer can map it without string matching.
package dberror

import (
	"errors"
	"fmt"
	"net/http"

	pkgerrors "github.com/pkg/errors"
)

// SubCode identifies the failure class independent of the HTTP status.
type SubCode string

const (
	SubCodeBadRequest              SubCode = "BadRequest"
	SubCodeAuthorizationCheck      SubCode = "AuthorizationCheckFailed"
	SubCodeUnexpected              SubCode = "UnexpectedError"
	SubCodeItemNotFound            SubCode = "ItemNotFound"
	SubCodeNotSupported            SubCode = "NotSupported"
	SubCodeAuthorizationCumulative SubCode = "AuthorizationCumulativeColumnCheckFailed"
)

// Error is the typed error raised by query-structure construction.
type Error struct {
	Status  int
	SubCode SubCode
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As chains.
func (e *Error) Unwrap() error { return e.cause }

// NewBadRequest reports malformed or inconsistent caller input.
func NewBadRequest(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, SubCode: SubCodeBadRequest, Message: msg}
}

// NewBadRequestf is NewBadRequest with formatting.
func NewBadRequestf(format string, args ...interface{}) *Error {
	return NewBadRequest(fmt.Sprintf(format, args...))
}

// WrapBadRequest preserves the parse/validation failure as cause.
func WrapBadRequest(cause error, msg string) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		SubCode: SubCodeBadRequest,
		Message: msg,
		cause:   pkgerrors.WithStack(cause),
	}
}

// NewAuthorizationCheckFailed reports a database policy that could not be
// evaluated or satisfied. Malformed policy must never silently pass.
func NewAuthorizationCheckFailed(msg string) *Error {
	return &Error{Status: http.StatusForbidden, SubCode: SubCodeAuthorizationCheck, Message: msg}
}

// WrapAuthorizationCheckFailed preserves the policy translation failure as cause.
func WrapAuthorizationCheckFailed(cause error, msg string) *Error {
	return &Error{
		Status:  http.StatusForbidden,
		SubCode: SubCodeAuthorizationCheck,
		Message: msg,
		cause:   pkgerrors.WithStack(cause),
	}
}

// NewCumulativeColumnCheckFailed reports a create payload that leaves
// policy-referenced columns unset, so the row-level policy could not be
// checked against the complete row.
func NewCumulativeColumnCheckFailed(msg string) *Error {
	return &Error{Status: http.StatusForbidden, SubCode: SubCodeAuthorizationCumulative, Message: msg}
}

// NewNotSupported reports an operation the entity is not configured for.
func NewNotSupported(msg string) *Error {
	return &Error{Status: http.StatusBadRequest, SubCode: SubCodeNotSupported, Message: msg}
}

// NewUnexpectedError reports a programming-contract violation that request
// and schema validation should already have prevented. These are logged
// distinctly from BadRequest by the transport layer.
func NewUnexpectedError(msg string) *Error {
	return &Error{Status: http.StatusInternalServerError, SubCode: SubCodeUnexpected, Message: msg}
}

// NewItemNotFound reports a targeted row that does not exist.
func NewItemNotFound(msg string) *Error {
	return &Error{Status: http.StatusNotFound, SubCode: SubCodeItemNotFound, Message: msg}
}

// IsBadRequest returns true if err is or wraps a BadRequest taxonomy error.
func IsBadRequest(err error) bool { return hasSubCode(err, SubCodeBadRequest) }

// IsAuthorizationCheckFailed returns true if err is or wraps either
// authorization taxonomy error, the policy check or the cumulative
// column check.
func IsAuthorizationCheckFailed(err error) bool {
	return hasSubCode(err, SubCodeAuthorizationCheck) || hasSubCode(err, SubCodeAuthorizationCumulative)
}

// IsNotSupported returns true if err is or wraps a NotSupported taxonomy error.
func IsNotSupported(err error) bool { return hasSubCode(err, SubCodeNotSupported) }

// IsUnexpected returns true if err is or wraps an UnexpectedError taxonomy error.
func IsUnexpected(err error) bool { return hasSubCode(err, SubCodeUnexpected) }

func hasSubCode(err error, code SubCode) bool {
	var typed *Error
	return errors.As(err, &typed) && typed.SubCode == code
}
