package errors

import (
	"errors"
	"fmt"
)

// ErrCode represents an error code
type ErrCode string

const (
	ErrCodeToolMissing  ErrCode = "TOOL_MISSING"
	ErrCodeUnauthorized ErrCode = "UNAUTHORIZED"
	ErrCodeSetup        ErrCode = "SETUP_FAILED"
	ErrCodeBuild        ErrCode = "BUILD_FAILED"
	ErrCodePublish      ErrCode = "PUBLISH_FAILED"
	ErrCodeParse        ErrCode = "PARSE_FAILED"
	ErrCodeNotFound     ErrCode = "NOT_FOUND"
	ErrCodeBadRequest   ErrCode = "BAD_REQUEST"
	ErrCodeInternal     ErrCode = "INTERNAL_ERROR"
)

// AppError represents an application error
type AppError struct {
	Code    ErrCode
	Message string
	Err     error
	// Hints are remedies printed below the message, one per line.
	Hints []string
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithHint returns e with an extra remedy line
func (e *AppError) WithHint(hint string) *AppError {
	e.Hints = append(e.Hints, hint)
	return e
}

// NewToolMissingError creates an error for a CLI that is not installed
func NewToolMissingError(tool string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeToolMissing,
		Message: fmt.Sprintf("%s is not installed. Please install it first:", tool),
		Err:     err,
	}
}

// NewUnauthorizedError creates a new unauthorized error
func NewUnauthorizedError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeUnauthorized,
		Message: message,
		Err:     err,
	}
}

// NewSetupError creates an error for a failed first-time repository setup
func NewSetupError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeSetup,
		Message: message,
		Err:     err,
	}
}

// NewBuildError creates an error for a failed build
func NewBuildError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeBuild,
		Message: message,
		Err:     err,
	}
}

// NewPublishError creates an error for a failed publish
func NewPublishError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodePublish,
		Message: message,
		Err:     err,
	}
}

// NewParseError creates an error for output that did not match the expected pattern
func NewParseError(what, input string) *AppError {
	return &AppError{
		Code:    ErrCodeParse,
		Message: fmt.Sprintf("could not parse %s from %q", what, input),
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

// NewBadRequestError creates a new bad request error
func NewBadRequestError(message string) *AppError {
	return &AppError{
		Code:    ErrCodeBadRequest,
		Message: message,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Err:     err,
	}
}

// CodeOf returns the code of the first AppError in err's chain, or "" if there is none
func CodeOf(err error) ErrCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HintsOf returns the hints of the first AppError in err's chain
func HintsOf(err error) []string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Hints
	}
	return nil
}

// MessageOf returns the user-facing message of err: the AppError message when
// there is one, err.Error() otherwise
func MessageOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		if appErr.Err != nil {
			return fmt.Sprintf("%s: %v", appErr.Message, appErr.Err)
		}
		return appErr.Message
	}
	return err.Error()
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrCodeNotFound
}
