// Package errors provides the unified error type and factory functions for the
// materials recommendation service. Every layer (domain, application,
// infrastructure, interfaces) reports failures as *AppError so that HTTP
// responses, CLI output and logs stay consistent.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// stackDepth is the maximum number of frames captured per error.
const stackDepth = 32

// captureStack returns a formatted call-stack string starting two frames above
// the caller (skipping captureStack itself and New/Wrap).
func captureStack(skip int) string {
	pcs := make([]uintptr, stackDepth)
	n := runtime.Callers(skip+2, pcs)
	if n == 0 {
		return ""
	}
	frames := runtime.CallersFrames(pcs[:n])
	var sb strings.Builder
	for {
		f, more := frames.Next()
		if !strings.Contains(f.File, "runtime/") {
			fmt.Fprintf(&sb, "\n\t%s:%d %s", f.File, f.Line, f.Function)
		}
		if !more {
			break
		}
	}
	return sb.String()
}

// AppError is the structured error type used throughout the service. It
// supports errors.Is / errors.As / errors.Unwrap through Unwrap.
//
// Usage:
//
//	return errors.New(errors.ErrCodeInputPrecondition, "PCA needs at least 2 records")
//	return errors.Wrap(err, errors.ErrCodeDatabaseError, "failed to load catalog")
//	return errors.InputPrecondition("k must be >= 1").WithDetail("k=0")
type AppError struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is the human-readable description returned to callers.
	Message string

	// Detail carries supplementary context (parameters, column names, ...).
	Detail string

	// Cause is the underlying error, if any.
	Cause error

	// Stack is the call stack captured at creation. It is not part of Error().
	Stack string
}

// Error implements the error interface.
// Format: "[<code>] <message>: <detail>: <cause>"; empty segments are omitted.
func (e *AppError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %s", e.Code.String(), e.Message)
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}
	return sb.String()
}

func (e *AppError) Unwrap() error { return e.Cause }

// Is matches another AppError with the same code and message, so sentinels
// such as a cache miss survive WithCause and WithDetail copies.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t != nil && e.Code == t.Code && e.Message == t.Message
}

// HTTPStatus is the response status for the error's code.
func (e *AppError) HTTPStatus() int { return HTTPStatusForCode(e.Code) }

// WithDetail returns a shallow copy of the receiver with Detail set.
// It is safe to call on a nil pointer (returns nil).
func (e *AppError) WithDetail(detail string) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Detail = detail
	return &clone
}

// WithDetailf is WithDetail with fmt formatting.
func (e *AppError) WithDetailf(format string, args ...interface{}) *AppError {
	return e.WithDetail(fmt.Sprintf(format, args...))
}

// WithCause returns a shallow copy of the receiver with Cause set to err.
func (e *AppError) WithCause(err error) *AppError {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Cause = err
	return &clone
}

// build is the common constructor. skip counts the exported frames between
// the caller and build.
func build(skip int, code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause, Stack: captureStack(skip + 1)}
}

// New constructs an AppError with the given code and message.
func New(code ErrorCode, message string) *AppError {
	return build(1, code, message, nil)
}

// Wrap constructs an AppError around err. A nil err yields nil. CodeUnknown
// keeps the code of the first AppError already in err's chain.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	if code == CodeUnknown {
		code = GetCode(err)
	}
	return build(1, code, message, err)
}

// InputPrecondition reports a caller mistake (empty requirements, too few
// records, a non-numeric column). These are never retried.
func InputPrecondition(message string) *AppError {
	return build(1, ErrCodeInputPrecondition, message, nil)
}

func DegenerateData(message string) *AppError { return build(1, ErrCodeDegenerateData, message, nil) }
func NotFound(message string) *AppError       { return build(1, CodeNotFound, message, nil) }
func InvalidParam(message string) *AppError   { return build(1, CodeInvalidParam, message, nil) }
func Internal(message string) *AppError       { return build(1, CodeInternal, message, nil) }

// IsCode reports whether any error in err's chain is an *AppError with code.
func IsCode(err error, code ErrorCode) bool {
	var ae *AppError
	for err != nil {
		if errors.As(err, &ae) && ae.Code == code {
			return true
		}
		err = errors.Unwrap(err)
	}
	return false
}

// IsInputPrecondition reports whether err is an input-precondition failure.
func IsInputPrecondition(err error) bool {
	return IsCode(err, ErrCodeInputPrecondition)
}

// IsNotFound reports whether err's chain carries a not-found code.
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound) || IsCode(err, ErrCodeCatalogNotFound)
}

// GetCode extracts the ErrorCode from the first *AppError in err's chain.
// A nil error yields CodeOK; a foreign error yields CodeUnknown.
func GetCode(err error) ErrorCode {
	if err == nil {
		return CodeOK
	}
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeUnknown
}
