package errors

import (
	stderrors "errors"
	"fmt"
	"sort"
)

// ErrorCode represents an intake error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"      // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"            // 404
	ErrCapture            ErrorCode = "CAPTURE"              // 409
	ErrAttachmentTooLarge ErrorCode = "ATTACHMENT_TOO_LARGE" // 413
	ErrValidation         ErrorCode = "VALIDATION"           // 422
	ErrInternal           ErrorCode = "INTERNAL"             // 500
	ErrSubmission         ErrorCode = "SUBMISSION"           // 502
	ErrDraftPersistence   ErrorCode = "DRAFT_PERSISTENCE"    // 503
)

// IntakeError represents a structured error with code, status, and details.
type IntakeError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any

	cause error
}

// Error implements the error interface.
func (e *IntakeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *IntakeError) Unwrap() error {
	return e.cause
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *IntakeError {
	return &IntakeError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for an unknown protocol.
func NewNotFound(protocol string) *IntakeError {
	return &IntakeError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("protocolo não encontrado: %s", protocol),
		Details: map[string]any{"protocol": protocol},
	}
}

// NewCapture creates a 409 error for a recording device that could not be used.
// The message is user-facing; the cause is kept for logs.
func NewCapture(msg string, cause error) *IntakeError {
	return &IntakeError{
		Code:    ErrCapture,
		Status:  409,
		Message: msg,
		cause:   cause,
	}
}

// NewAttachmentTooLarge creates a 413 error when an attachment exceeds its limit.
func NewAttachmentTooLarge(field string, max, actual int64) *IntakeError {
	return &IntakeError{
		Code:    ErrAttachmentTooLarge,
		Status:  413,
		Message: fmt.Sprintf("%s exceeds maximum size: %d bytes (max %d)", field, actual, max),
		Details: map[string]any{"field": field, "max_bytes": max, "actual_bytes": actual},
	}
}

// NewValidation creates a 422 error carrying field-scoped messages.
func NewValidation(fields map[string]string) *IntakeError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	return &IntakeError{
		Code:    ErrValidation,
		Status:  422,
		Message: fmt.Sprintf("invalid fields: %v", names),
		Details: map[string]any{"fields": copied},
	}
}

// NewSubmission creates a 502 error for a failed call to the submission service.
// Status is the upstream HTTP status, or 0 when the request never got a response.
func NewSubmission(status int, cause error) *IntakeError {
	details := map[string]any{}
	if status > 0 {
		details["upstream_status"] = status
	}
	return &IntakeError{
		Code:    ErrSubmission,
		Status:  502,
		Message: "Não foi possível enviar agora. Verifique sua conexão e tente novamente.",
		Details: details,
		cause:   cause,
	}
}

// NewDraftPersistence creates a 503 error for a failed draft operation.
func NewDraftPersistence(op string, cause error) *IntakeError {
	msg := "draft " + op + " failed"
	if cause != nil {
		msg = fmt.Sprintf("draft %s failed: %v", op, cause)
	}
	return &IntakeError{
		Code:    ErrDraftPersistence,
		Status:  503,
		Message: msg,
		Details: map[string]any{"op": op},
		cause:   cause,
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *IntakeError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &IntakeError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
		cause:   err,
	}
}

// Is checks if an error is (or wraps) an IntakeError with the given code.
func Is(err error, code ErrorCode) bool {
	var iErr *IntakeError
	if stderrors.As(err, &iErr) {
		return iErr.Code == code
	}
	return false
}

// FieldErrors returns the field messages of a VALIDATION error, or nil.
func FieldErrors(err error) map[string]string {
	var iErr *IntakeError
	if !stderrors.As(err, &iErr) || iErr.Code != ErrValidation {
		return nil
	}
	fields, _ := iErr.Details["fields"].(map[string]string)
	return fields
}
