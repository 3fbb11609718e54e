// Package errors provides the standardized error taxonomy used by the relay
// and its mapping onto HTTP status codes.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

// Client input errors
const (
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidEmail     ErrorCode = "INVALID_EMAIL"
	ErrCodeInvalidBody      ErrorCode = "INVALID_BODY"
	ErrCodeMethodNotAllowed ErrorCode = "METHOD_NOT_ALLOWED"
)

// Server side errors
const (
	ErrCodeConfigurationMissing ErrorCode = "CONFIGURATION_MISSING"
	ErrCodeProfileUpsertFailed  ErrorCode = "PROFILE_UPSERT_FAILED"
	ErrCodeInternal             ErrorCode = "INTERNAL_ERROR"
)

// Non-fatal step errors, reported inside a 200 body
const (
	ErrCodeProfileUpdateFailed    ErrorCode = "PROFILE_UPDATE_FAILED"
	ErrCodeSubscriptionFailed     ErrorCode = "SUBSCRIPTION_FAILED"
	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Retryable bool      `json:"retryable"`
	Timestamp time.Time `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// HTTPStatus returns the status code the relay answers with for this error.
func (e *StandardError) HTTPStatus() int {
	return HTTPStatus(e.Code)
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a client input error for missing or malformed fields.
func NewValidationError(message, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidEmailError creates a client input error for a syntactically invalid email.
func NewInvalidEmailError(email string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidEmail,
		Message:   "Invalid email format",
		Details:   fmt.Sprintf("email: %q", email),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidBodyError creates a client input error for an unparseable request body.
func NewInvalidBodyError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidBody,
		Message:   "Invalid JSON body",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewConfigurationMissingError signals that a required secret or identifier is not configured.
func NewConfigurationMissingError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeConfigurationMissing,
		Message:   "Server configuration error",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewProfileUpsertFailedError is the hard failure of the profile create call.
func NewProfileUpsertFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProfileUpsertFailed,
		Message:   "Profile creation failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewProfileUpdateFailedError records a failed refresh of an existing profile.
func NewProfileUpdateFailedError(profileID string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeProfileUpdateFailed,
		Message:   "Profile update failed",
		Details:   fmt.Sprintf("profileId: %s, error: %s", profileID, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewSubscriptionFailedError records a failed list subscription job.
func NewSubscriptionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSubscriptionFailed,
		Message:   "Subscription failed",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewNotificationSendFailedError records a failed transactional SMS.
func NewNotificationSendFailedError(provider string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeNotificationSendFailed,
		Message:   "Notification delivery failed",
		Details:   fmt.Sprintf("provider: %s, error: %s", provider, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// NewInternalError wraps an unexpected error. Details are kept for logs only.
func NewInternalError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Server error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
		cause:     err,
	}
}

// ==========================
// 3. HTTP Mapping
// ==========================

// HTTPStatusMapping maps error codes to the status returned to the caller.
// Codes absent from the map are non-fatal and surface inside a 200 body.
var HTTPStatusMapping = map[ErrorCode]int{
	ErrCodeValidationFailed:     http.StatusBadRequest,
	ErrCodeInvalidEmail:         http.StatusBadRequest,
	ErrCodeInvalidBody:          http.StatusBadRequest,
	ErrCodeMethodNotAllowed:     http.StatusMethodNotAllowed,
	ErrCodeConfigurationMissing: http.StatusInternalServerError,
	ErrCodeProfileUpsertFailed:  http.StatusInternalServerError,
	ErrCodeInternal:             http.StatusInternalServerError,
}

// HTTPStatus returns the response status for an error code.
func HTTPStatus(code ErrorCode) int {
	if status, ok := HTTPStatusMapping[code]; ok {
		return status
	}
	return http.StatusOK
}

// ==========================
// 4. Utility Functions
// ==========================

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// GetErrorCategory returns the taxonomy bucket of the error code, used as a metric label.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.HasPrefix(codeStr, "INVALID"):
		return "client_input"
	case strings.Contains(codeStr, "CONFIGURATION"):
		return "configuration"
	case strings.Contains(codeStr, "PROFILE"):
		return "profile"
	case strings.Contains(codeStr, "SUBSCRIPTION"):
		return "subscription"
	case strings.Contains(codeStr, "NOTIFICATION"):
		return "notification"
	case strings.Contains(codeStr, "METHOD"):
		return "method"
	default:
		return "internal"
	}
}
