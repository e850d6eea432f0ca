// Package errors provides the standardized error taxonomy returned by relay
// endpoints and its mapping onto HTTP statuses.
package errors

import (
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

const (
	ErrCodeValidationFailed     ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidPayload       ErrorCode = "INVALID_PAYLOAD"
	ErrCodePayloadTooLarge      ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrCodeAuthenticationFailed ErrorCode = "AUTHENTICATION_FAILED"
	ErrCodeForbidden            ErrorCode = "FORBIDDEN"
	ErrCodeAuthNotConfigured    ErrorCode = "AUTH_NOT_CONFIGURED"
	ErrCodeCRMNotConfigured     ErrorCode = "CRM_NOT_CONFIGURED"

	ErrCodeContactNotFound  ErrorCode = "CONTACT_NOT_FOUND"
	ErrCodePageNotFound     ErrorCode = "PAGE_NOT_FOUND"
	ErrCodeEndpointDisabled ErrorCode = "ENDPOINT_DISABLED"
	ErrCodeUnknownAction    ErrorCode = "UNKNOWN_ACTION"

	ErrCodeUpstreamLookupFailed ErrorCode = "UPSTREAM_LOOKUP_FAILED"
	ErrCodeUpstreamUpdateFailed ErrorCode = "UPSTREAM_UPDATE_FAILED"
	ErrCodeUpstreamCreateFailed ErrorCode = "UPSTREAM_CREATE_FAILED"
	ErrCodeUpstreamRejected     ErrorCode = "UPSTREAM_REJECTED"

	ErrCodeSettingsStoreFailed ErrorCode = "SETTINGS_STORE_FAILED"
	ErrCodeTallyBufferFailed   ErrorCode = "TALLY_BUFFER_FAILED"
	ErrCodeInternal            ErrorCode = "INTERNAL_ERROR"
)

// Metadata keys carried by upstream errors.
const (
	MetaUpstreamStatus = "upstreamStatus"
	MetaUpstreamBody   = "upstreamBody"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Status returns the HTTP status the error is reported with.
func (e *StandardError) Status() int {
	if e.Code == ErrCodeUpstreamRejected {
		if status, ok := e.Metadata[MetaUpstreamStatus].(int); ok && status >= 300 && status <= 599 {
			return status
		}
	}
	return HTTPStatus(e.Code)
}

// Body returns the JSON error envelope {error:{code,message,details}}.
func (e *StandardError) Body() map[string]interface{} {
	inner := map[string]interface{}{
		"code":    string(e.Code),
		"message": e.Message,
	}
	if e.Details != "" {
		inner["details"] = e.Details
	}
	return map[string]interface{}{"error": inner}
}

func newError(code ErrorCode, message, details string) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError reports an inbound payload that failed validation.
func NewValidationError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Input validation failed", details)
}

// NewInvalidPayloadError reports a body that could not be decoded at all.
func NewInvalidPayloadError(err error) *StandardError {
	return newError(ErrCodeInvalidPayload, "Request body is not valid", err.Error())
}

func NewAuthenticationError(details string) *StandardError {
	return newError(ErrCodeAuthenticationFailed, "Authentication failed", details)
}

func NewForbiddenError(details string) *StandardError {
	return newError(ErrCodeForbidden, "Request not allowed", details)
}

// NewAuthNotConfiguredError is returned when a guarded endpoint has no
// secret to compare against. Requests fail closed.
func NewAuthNotConfiguredError(details string) *StandardError {
	return newError(ErrCodeAuthNotConfigured, "Endpoint authentication is not configured", details)
}

// NewCRMNotConfiguredError reports a missing CRM credential.
func NewCRMNotConfiguredError() *StandardError {
	return newError(ErrCodeCRMNotConfigured, "Missing API token", "hubspot token is not configured")
}

func NewContactNotFoundError(email string) *StandardError {
	return newError(ErrCodeContactNotFound, "Contact not found", fmt.Sprintf("email: %s", email))
}

func NewPageNotFoundError(slug string) *StandardError {
	return newError(ErrCodePageNotFound, "Page not found", fmt.Sprintf("slug: %s", slug))
}

func NewEndpointDisabledError(name string) *StandardError {
	return newError(ErrCodeEndpointDisabled, "Endpoint disabled", fmt.Sprintf("endpoint: %s", name))
}

func NewUnknownActionError(action string) *StandardError {
	return newError(ErrCodeUnknownAction, "unknown action", fmt.Sprintf("action: %s", action))
}

// NewUpstreamError wraps a failed CRM call. status is zero when the call
// never produced a response.
func NewUpstreamError(code ErrorCode, service string, status int, err error) *StandardError {
	e := newError(code, fmt.Sprintf("Upstream service '%s' call failed", service), err.Error())
	e.Retryable = status == 0 || status >= 500
	e.Metadata = map[string]interface{}{"service": service}
	if status != 0 {
		e.Metadata[MetaUpstreamStatus] = status
	}
	return e
}

// NewUpstreamRejectedError carries an upstream non-2xx response that is
// surfaced to the caller unchanged.
func NewUpstreamRejectedError(service string, status int, body []byte) *StandardError {
	e := newError(ErrCodeUpstreamRejected, fmt.Sprintf("Upstream service '%s' rejected the request", service),
		fmt.Sprintf("status %d", status))
	e.Metadata = map[string]interface{}{
		"service":          service,
		MetaUpstreamStatus: status,
		MetaUpstreamBody:   append([]byte(nil), body...),
	}
	return e
}

func NewSettingsStoreError(err error) *StandardError {
	e := newError(ErrCodeSettingsStoreFailed, "Settings store error", err.Error())
	e.Retryable = true
	return e
}

func NewTallyBufferError(err error) *StandardError {
	e := newError(ErrCodeTallyBufferFailed, "Interest tally buffer error", err.Error())
	e.Retryable = true
	return e
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err.Error())
}

// ==========================
// 3. HTTP Mapping
// ==========================

// HTTPStatusMapping maps error codes onto response statuses.
var HTTPStatusMapping = map[ErrorCode]int{
	ErrCodeValidationFailed:     http.StatusBadRequest,
	ErrCodeInvalidPayload:       http.StatusBadRequest,
	ErrCodePayloadTooLarge:      http.StatusRequestEntityTooLarge,
	ErrCodeUnknownAction:        http.StatusBadRequest,
	ErrCodeAuthenticationFailed: http.StatusUnauthorized,
	ErrCodeForbidden:            http.StatusForbidden,
	ErrCodeAuthNotConfigured:    http.StatusInternalServerError,
	ErrCodeCRMNotConfigured:     http.StatusInternalServerError,
	ErrCodeContactNotFound:      http.StatusNotFound,
	ErrCodePageNotFound:         http.StatusNotFound,
	ErrCodeEndpointDisabled:     http.StatusNotFound,
	ErrCodeUpstreamLookupFailed: http.StatusInternalServerError,
	ErrCodeUpstreamUpdateFailed: http.StatusInternalServerError,
	ErrCodeUpstreamCreateFailed: http.StatusInternalServerError,
	ErrCodeUpstreamRejected:     http.StatusBadGateway,
	ErrCodeSettingsStoreFailed:  http.StatusInternalServerError,
	ErrCodeTallyBufferFailed:    http.StatusInternalServerError,
	ErrCodeInternal:             http.StatusInternalServerError,
}

// HTTPStatus returns the response status for an error code.
func HTTPStatus(code ErrorCode) int {
	if status, ok := HTTPStatusMapping[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// ==========================
// 4. Utility Functions
// ==========================

// IsCode reports whether err is a StandardError carrying code.
func IsCode(err error, code ErrorCode) bool {
	stdErr, ok := err.(*StandardError)
	return ok && stdErr.Code == code
}

// GetErrorCategory returns the category of the error code, used as a metric label.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INVALID") || strings.Contains(codeStr, "UNKNOWN"):
		return "VALIDATION"
	case strings.Contains(codeStr, "AUTH") || strings.Contains(codeStr, "FORBIDDEN"):
		return "AUTH"
	case strings.Contains(codeStr, "UPSTREAM") || strings.Contains(codeStr, "CRM"):
		return "UPSTREAM"
	case strings.Contains(codeStr, "NOT_FOUND") || strings.Contains(codeStr, "DISABLED"):
		return "NOT_FOUND"
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "BUFFER"):
		return "STORAGE"
	default:
		return "OTHER"
	}
}

// CodeOf extracts the error code, falling back to INTERNAL_ERROR.
func CodeOf(err error) string {
	if stdErr, ok := err.(*StandardError); ok {
		return string(stdErr.Code)
	}
	return string(ErrCodeInternal)
}
