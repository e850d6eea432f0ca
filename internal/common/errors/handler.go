package errors

import (
	"encoding/json"
	"time"

	"graphwise-relay/internal/relay"
)

// ErrorHandler turns handler errors into relay responses.
type ErrorHandler struct {
	logger Logger
}

type Logger interface {
	Error(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
}

func NewErrorHandler(logger Logger) *ErrorHandler {
	return &ErrorHandler{logger: logger}
}

// Respond normalizes err, logs it and builds the error response.
func (h *ErrorHandler) Respond(err error, fields map[string]interface{}) relay.Response {
	stdErr := h.Report(err, fields)

	if stdErr.Code == ErrCodeUpstreamRejected {
		if raw, ok := stdErr.Metadata[MetaUpstreamBody].([]byte); ok {
			return relay.RawResponse(stdErr.Status(), contentTypeFor(raw), raw)
		}
	}
	return relay.JSON(stdErr.Status(), stdErr.Body())
}

// Report normalizes and logs err without building a response, for endpoints
// that answer with their own envelope.
func (h *ErrorHandler) Report(err error, fields map[string]interface{}) *StandardError {
	stdErr := Normalize(err)
	h.logError(stdErr, fields)
	return stdErr
}

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return &StandardError{
		Code:      ErrCodeInternal,
		Message:   "Unexpected error",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

func (h *ErrorHandler) logError(stdErr *StandardError, fields map[string]interface{}) {
	logFields := map[string]interface{}{
		"errorCode":     string(stdErr.Code),
		"message":       stdErr.Message,
		"details":       stdErr.Details,
		"retryable":     stdErr.Retryable,
		"status":        stdErr.Status(),
		"errorCategory": GetErrorCategory(stdErr.Code),
	}
	if status, ok := stdErr.Metadata[MetaUpstreamStatus]; ok {
		logFields["upstreamStatus"] = status
	}
	for k, v := range fields {
		logFields[k] = v
	}

	// Client mistakes are warnings; everything else is ours or upstream's.
	if stdErr.Status() < 500 && GetErrorCategory(stdErr.Code) != "UPSTREAM" {
		h.logger.Warn("Request rejected", logFields)
		return
	}
	h.logger.Error("Request failed", logFields)
}

func contentTypeFor(raw []byte) string {
	if json.Valid(raw) {
		return "application/json"
	}
	return "text/plain; charset=utf-8"
}
