package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"graphwise-relay/internal/common/logger"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  *StandardError
		want int
	}{
		{"validation", NewValidationError("email: required"), http.StatusBadRequest},
		{"authentication", NewAuthenticationError("bad key"), http.StatusUnauthorized},
		{"forbidden", NewForbiddenError("nonce"), http.StatusForbidden},
		{"auth not configured", NewAuthNotConfiguredError("no secret"), http.StatusInternalServerError},
		{"crm not configured", NewCRMNotConfiguredError(), http.StatusInternalServerError},
		{"contact not found", NewContactNotFoundError("a@b.co"), http.StatusNotFound},
		{"lookup failed", NewUpstreamError(ErrCodeUpstreamLookupFailed, "hubspot", 503, fmt.Errorf("down")), http.StatusInternalServerError},
		{"rejected keeps upstream status", NewUpstreamRejectedError("hubspot", 409, []byte(`{}`)), http.StatusConflict},
		{"rejected without usable status", NewUpstreamRejectedError("hubspot", 200, nil), http.StatusBadGateway},
		{"payload too large", &StandardError{Code: ErrCodePayloadTooLarge}, http.StatusRequestEntityTooLarge},
		{"unknown code", &StandardError{Code: "SOMETHING_ELSE"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Status())
		})
	}
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeValidationFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeUnknownAction))
	assert.Equal(t, "AUTH", GetErrorCategory(ErrCodeForbidden))
	assert.Equal(t, "UPSTREAM", GetErrorCategory(ErrCodeUpstreamUpdateFailed))
	assert.Equal(t, "UPSTREAM", GetErrorCategory(ErrCodeCRMNotConfigured))
	assert.Equal(t, "NOT_FOUND", GetErrorCategory(ErrCodeContactNotFound))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeSettingsStoreFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
}

func TestNewUpstreamError_Metadata(t *testing.T) {
	err := NewUpstreamError(ErrCodeUpstreamUpdateFailed, "hubspot", 0, fmt.Errorf("connection refused"))
	assert.True(t, err.Retryable)
	_, hasStatus := err.Metadata[MetaUpstreamStatus]
	assert.False(t, hasStatus)

	err = NewUpstreamError(ErrCodeUpstreamUpdateFailed, "hubspot", 400, fmt.Errorf("bad property"))
	assert.False(t, err.Retryable)
	assert.Equal(t, 400, err.Metadata[MetaUpstreamStatus])
}

func TestErrorHandler_Respond(t *testing.T) {
	h := NewErrorHandler(logger.NewTestLogger(t))

	t.Run("standard error gets json envelope", func(t *testing.T) {
		resp := h.Respond(NewContactNotFoundError("jane@example.com"), map[string]interface{}{"handler": "test"})

		assert.Equal(t, http.StatusNotFound, resp.Status)
		raw, err := json.Marshal(resp.Body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"error":{"code":"CONTACT_NOT_FOUND","message":"Contact not found","details":"email: jane@example.com"}}`, string(raw))
	})

	t.Run("upstream rejection is passed through verbatim", func(t *testing.T) {
		body := []byte(`{"status":"error","message":"Property values were not valid","category":"VALIDATION_ERROR"}`)
		resp := h.Respond(NewUpstreamRejectedError("hubspot", http.StatusBadRequest, body), nil)

		assert.Equal(t, http.StatusBadRequest, resp.Status)
		assert.Equal(t, "application/json", resp.ContentType)
		assert.Equal(t, body, resp.Raw)
	})

	t.Run("non json upstream body", func(t *testing.T) {
		resp := h.Respond(NewUpstreamRejectedError("hubspot", http.StatusBadGateway, []byte("bad gateway")), nil)

		assert.Equal(t, http.StatusBadGateway, resp.Status)
		assert.Contains(t, resp.ContentType, "text/plain")
	})

	t.Run("plain errors become internal errors", func(t *testing.T) {
		resp := h.Respond(fmt.Errorf("boom"), nil)

		assert.Equal(t, http.StatusInternalServerError, resp.Status)
		raw, _ := json.Marshal(resp.Body)
		assert.Contains(t, string(raw), "INTERNAL_ERROR")
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, "VALIDATION_FAILED", CodeOf(NewValidationError("x")))
	assert.Equal(t, "INTERNAL_ERROR", CodeOf(fmt.Errorf("x")))
	assert.True(t, IsCode(NewCRMNotConfiguredError(), ErrCodeCRMNotConfigured))
	assert.False(t, IsCode(fmt.Errorf("x"), ErrCodeCRMNotConfigured))
}
