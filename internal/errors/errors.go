// Package errors defines the application error taxonomy and its reporting.
package errors

import (
	"errors"
	"fmt"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Error codes.
const (
	CodeValidation  = "E100"
	CodeDatabase    = "E200"
	CodeExternalAPI = "E300"
	CodeRateLimit   = "E500"
	CodePanic       = "E900"
)

var codeTypes = map[string]string{
	CodeValidation:  "validation",
	CodeDatabase:    "database",
	CodeExternalAPI: "external_api",
	CodeRateLimit:   "rate_limit",
	CodePanic:       "panic",
}

type AppError struct {
	Code      string
	Message   string
	Severity  Severity
	Retryable bool
	cause     error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.cause
}

func (e *AppError) Cause() error {
	return e.Unwrap()
}

// Type is the metrics label for the error code.
func (e *AppError) Type() string {
	if e == nil {
		return "unknown"
	}
	if t, ok := codeTypes[e.Code]; ok {
		return t
	}
	return "unknown"
}

// As extracts an *AppError from err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr, true
	}
	return nil, false
}

func NewValidationError(msg string) *AppError {
	return &AppError{
		Code:      CodeValidation,
		Message:   msg,
		Severity:  SeverityLow,
		Retryable: false,
	}
}

func NewDatabaseError(cause error) *AppError {
	var underlyingMsg string
	if cause != nil {
		underlyingMsg = cause.Error()
	}

	return &AppError{
		Code:      CodeDatabase,
		Message:   fmt.Sprintf("Database error: %s", underlyingMsg),
		Severity:  SeverityHigh,
		Retryable: false,
		cause:     cause,
	}
}

func NewExternalAPIError(apiName string, cause error) *AppError {
	msg := fmt.Sprintf("External API error: %s", apiName)
	if cause != nil {
		msg = fmt.Sprintf("%s: %s", msg, cause.Error())
	}

	return &AppError{
		Code:      CodeExternalAPI,
		Message:   msg,
		Severity:  SeverityMedium,
		Retryable: false,
		cause:     cause,
	}
}

func NewRateLimitError(retryAfter int) *AppError {
	return &AppError{
		Code:      CodeRateLimit,
		Message:   fmt.Sprintf("Rate limit exceeded: retry after %d seconds", retryAfter),
		Severity:  SeverityLow,
		Retryable: false,
	}
}

// NewPanicError wraps a recovered panic value.
func NewPanicError(recovered any) *AppError {
	cause, ok := recovered.(error)
	if !ok {
		cause = fmt.Errorf("%v", recovered)
	}

	return &AppError{
		Code:      CodePanic,
		Message:   fmt.Sprintf("panic: %v", recovered),
		Severity:  SeverityCritical,
		Retryable: false,
		cause:     cause,
	}
}
