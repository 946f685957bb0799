// Package errs defines the coded error kinds used across smartblinds.
package errs

import (
	"errors"
	"fmt"
)

// Standard error codes for the application.
const (
	CodeUnknown       = "UNKNOWN"
	CodeStoreConnect  = "STORE_CONNECT"
	CodeStoreQuery    = "STORE_QUERY"
	CodeScheduling    = "SCHEDULING"
	CodeInconsistency = "INCONSISTENCY"
	CodeValidation    = "VALIDATION"
	CodeConfig        = "CONFIG"
)

// ErrConflict marks a store write rejected by a uniqueness constraint.
var ErrConflict = errors.New("conflicting action")

// ApplicationError is the interface that all our custom errors implement.
type ApplicationError interface {
	error
	Code() string
	Unwrap() error
}

// Error represents a coded application error.
type Error struct {
	code    string
	message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}

	return e.message
}

func (e *Error) Code() string {
	return e.code
}

func (e *Error) Unwrap() error {
	return e.err
}

// Code returns the code of the outermost ApplicationError in err's chain,
// or CodeUnknown if it doesn't carry one.
func Code(err error) string {
	var appErr ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Code()
	}

	return CodeUnknown
}

// HasCode reports whether any ApplicationError in err's chain carries code.
func HasCode(err error, code string) bool {
	for err != nil {
		if appErr, ok := err.(ApplicationError); ok && appErr.Code() == code {
			return true
		}
		err = errors.Unwrap(err)
	}

	return false
}

func newError(code, message string, cause error) error {
	return &Error{code: code, message: message, err: cause}
}

// NewStoreConnectError reports that the store could not be reached while
// starting up. It is fatal for the scheduler.
func NewStoreConnectError(message string, cause error) error {
	return newError(CodeStoreConnect, message, cause)
}

// NewStoreQueryError reports a failed store operation, including corrupt
// persisted rows.
func NewStoreQueryError(message string, cause error) error {
	return newError(CodeStoreQuery, message, cause)
}

// NewSchedulingError reports that the timer engine failed to arm a timer.
func NewSchedulingError(message string, cause error) error {
	return newError(CodeScheduling, message, cause)
}

// NewInconsistencyError reports a broken invariant between the store and
// the timer registry.
func NewInconsistencyError(message string, cause error) error {
	return newError(CodeInconsistency, message, cause)
}

func NewValidationError(message string, cause error) error {
	return newError(CodeValidation, message, cause)
}

func NewConfigError(message string, cause error) error {
	return newError(CodeConfig, message, cause)
}

func IsStoreQuery(err error) bool    { return HasCode(err, CodeStoreQuery) }
func IsScheduling(err error) bool    { return HasCode(err, CodeScheduling) }
func IsInconsistency(err error) bool { return HasCode(err, CodeInconsistency) }
func IsValidation(err error) bool    { return HasCode(err, CodeValidation) }
