package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestAdapt_PassesTypedRequest(t *testing.T) {
	var got Request
	r := gin.New()
	r.POST("/pages/:slug", Adapt(EndpointFunc(func(ctx context.Context, req Request) Response {
		got = req
		return OK(map[string]string{"status": "ok"})
	})))

	req := httptest.NewRequest(http.MethodPost, "/pages/thank-you?email=a%40b.co", strings.NewReader(`{"k":"v"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", "secret")
	req.AddCookie(&http.Cookie{Name: "graphwise_session", Value: "sid"})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, http.MethodPost, got.Method)
	assert.Equal(t, "thank-you", got.Params["slug"])
	assert.Equal(t, "a@b.co", got.Query.Get("email"))
	assert.Equal(t, "secret", got.Header("X-API-Key"))
	assert.Equal(t, "sid", got.Cookies["graphwise_session"])
	assert.JSONEq(t, `{"k":"v"}`, string(got.Body))
	assert.Empty(t, got.Form)
}

func TestAdapt_ParsesFormBodies(t *testing.T) {
	var got Request
	r := gin.New()
	r.POST("/ajax", Adapt(EndpointFunc(func(ctx context.Context, req Request) Response {
		got = req
		return JSON(http.StatusAccepted, nil)
	})))

	req := httptest.NewRequest(http.MethodPost, "/ajax?action=fromquery", strings.NewReader("action=graphwise_get_contact&email=jane%40example.com"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "graphwise_get_contact", got.Value("action"))
	assert.Equal(t, "jane@example.com", got.Value("email"))
}

func TestAdapt_BodySizeLimit(t *testing.T) {
	var served int
	r := gin.New()
	r.POST("/hook", Adapt(EndpointFunc(func(ctx context.Context, req Request) Response {
		served++
		return OK(map[string]int{"bytes": len(req.Body)})
	})))

	tests := []struct {
		name       string
		size       int
		wantStatus int
		wantCode   string
	}{
		{"at the limit", MaxBodyBytes, http.StatusOK, ""},
		{"one byte over", MaxBodyBytes + 1, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			served = 0
			req := httptest.NewRequest(http.MethodPost, "/hook", strings.NewReader(strings.Repeat("x", tt.size)))
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			require.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode == "" {
				assert.Equal(t, 1, served)
				assert.JSONEq(t, fmt.Sprintf(`{"bytes":%d}`, tt.size), w.Body.String())
				return
			}
			assert.Zero(t, served, "an oversized body never reaches the endpoint")
			var body struct {
				Error struct {
					Code string `json:"code"`
				} `json:"error"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body.Error.Code)
		})
	}
}

func TestWrite_RawAndJSON(t *testing.T) {
	tests := []struct {
		name       string
		resp       Response
		wantStatus int
		wantType   string
		wantBody   string
	}{
		{
			name:       "json body",
			resp:       OK(map[string]string{"status": "ok"}),
			wantStatus: http.StatusOK,
			wantType:   "application/json",
			wantBody:   `{"status":"ok"}`,
		},
		{
			name:       "raw upstream body kept verbatim",
			resp:       RawResponse(http.StatusConflict, "application/json", []byte(`{"status":"error","message":"dup"}`)),
			wantStatus: http.StatusConflict,
			wantType:   "application/json",
			wantBody:   `{"status":"error","message":"dup"}`,
		},
		{
			name:       "html page",
			resp:       HTML(http.StatusOK, []byte("<p>hi</p>")),
			wantStatus: http.StatusOK,
			wantType:   "text/html",
			wantBody:   "<p>hi</p>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			Write(c, tt.resp)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Contains(t, w.Header().Get("Content-Type"), tt.wantType)
			if json.Valid([]byte(tt.wantBody)) {
				assert.JSONEq(t, tt.wantBody, w.Body.String())
			} else {
				assert.Equal(t, tt.wantBody, w.Body.String())
			}
		})
	}
}
