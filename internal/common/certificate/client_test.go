package certificate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Issue(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantURL string
		errMsg  string
	}{
		{
			name:    "issued",
			status:  http.StatusOK,
			body:    `{"certificate_url":"https://certs.example.com/abc.pdf"}`,
			wantURL: "https://certs.example.com/abc.pdf",
		},
		{
			name:   "server error",
			status: http.StatusBadGateway,
			body:   `upstream down`,
			errMsg: "status 502",
		},
		{
			name:   "missing url",
			status: http.StatusOK,
			body:   `{}`,
			errMsg: "no certificate_url",
		},
		{
			name:   "garbage body",
			status: http.StatusOK,
			body:   `<html>`,
			errMsg: "decode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Request
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(srv.URL+"/generate", nil)
			url, err := client.Issue(context.Background(), Request{
				Email:       "ada@example.com",
				CourseID:    "intro-graphdb",
				CourseName:  "intro-graphdb",
				CompletedAt: "2026-10-01T10:00:00Z",
			})

			assert.Equal(t, "ada@example.com", got.Email)
			assert.Equal(t, "intro-graphdb", got.CourseID)

			if tt.errMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errMsg)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantURL, url)
		})
	}
}
