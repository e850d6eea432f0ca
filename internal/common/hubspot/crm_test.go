package hubspot

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	relayhttp "graphwise-relay/internal/common/http"
)

type recordedCall struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]interface{}
}

func newFakeHubSpot(t *testing.T, handler func(w http.ResponseWriter, call recordedCall)) (*httptest.Server, *[]recordedCall) {
	t.Helper()
	calls := &[]recordedCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		call := recordedCall{Method: r.Method, Path: r.URL.Path, Auth: r.Header.Get("Authorization")}
		if len(raw) > 0 {
			require.NoError(t, json.Unmarshal(raw, &call.Body))
		}
		*calls = append(*calls, call)
		handler(w, call)
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func TestCRMClient_SearchContactByEmail(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		response  string
		wantID    string
		wantNil   bool
		wantErr   bool
		errStatus int
	}{
		{
			name:     "contact found",
			status:   http.StatusOK,
			response: `{"total":1,"results":[{"id":"101","properties":{"email":"a@example.com","firstname":"Ada"}}]}`,
			wantID:   "101",
		},
		{
			name:     "no contact",
			status:   http.StatusOK,
			response: `{"total":0,"results":[]}`,
			wantNil:  true,
		},
		{
			name:      "unauthorized",
			status:    http.StatusUnauthorized,
			response:  `{"status":"error","message":"Authentication credentials not found"}`,
			wantErr:   true,
			errStatus: http.StatusUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, calls := newFakeHubSpot(t, func(w http.ResponseWriter, _ recordedCall) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.response))
			})
			client := NewCRMClient(srv.URL, relayhttp.NewClient(time.Second))

			contact, err := client.SearchContactByEmail(context.Background(), "pat-test", "a@example.com", []string{"email", "firstname"})

			require.Len(t, *calls, 1)
			call := (*calls)[0]
			assert.Equal(t, http.MethodPost, call.Method)
			assert.Equal(t, "/crm/v3/objects/contacts/search", call.Path)
			assert.Equal(t, "Bearer pat-test", call.Auth)

			groups := call.Body["filterGroups"].([]interface{})
			filter := groups[0].(map[string]interface{})["filters"].([]interface{})[0].(map[string]interface{})
			assert.Equal(t, "email", filter["propertyName"])
			assert.Equal(t, "EQ", filter["operator"])
			assert.Equal(t, "a@example.com", filter["value"])

			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, tt.errStatus, StatusOf(err))
				var upErr *UpstreamError
				require.ErrorAs(t, err, &upErr)
				assert.JSONEq(t, tt.response, string(upErr.Body))
				return
			}
			require.NoError(t, err)
			if tt.wantNil {
				assert.Nil(t, contact)
				return
			}
			require.NotNil(t, contact)
			assert.Equal(t, tt.wantID, contact.ID)
			assert.Equal(t, "Ada", contact.Property("firstname"))
		})
	}
}

func TestCRMClient_UpdateContact(t *testing.T) {
	srv, calls := newFakeHubSpot(t, func(w http.ResponseWriter, _ recordedCall) {
		_, _ = w.Write([]byte(`{"id":"101","properties":{"course_completed":"Intro"}}`))
	})
	client := NewCRMClient(srv.URL+"/", nil)

	contact, err := client.UpdateContact(context.Background(), "pat-test", "101", map[string]string{
		"course_completed": "Intro",
	})
	require.NoError(t, err)
	assert.Equal(t, "101", contact.ID)

	require.Len(t, *calls, 1)
	assert.Equal(t, http.MethodPatch, (*calls)[0].Method)
	assert.Equal(t, "/crm/v3/objects/contacts/101", (*calls)[0].Path)
	assert.Equal(t, map[string]interface{}{"properties": map[string]interface{}{"course_completed": "Intro"}}, (*calls)[0].Body)

	_, err = client.UpdateContact(context.Background(), "pat-test", "", nil)
	assert.Error(t, err)
}

func TestCRMClient_CreateContact(t *testing.T) {
	srv, calls := newFakeHubSpot(t, func(w http.ResponseWriter, _ recordedCall) {
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"202","properties":{"email":"new@example.com"}}`))
	})
	client := NewCRMClient(srv.URL, nil)

	contact, err := client.CreateContact(context.Background(), "pat-test", map[string]string{"email": "new@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "202", contact.ID)
	assert.Equal(t, "/crm/v3/objects/contacts", (*calls)[0].Path)
	assert.Equal(t, http.MethodPost, (*calls)[0].Method)
}

func TestCRMClient_MissingToken(t *testing.T) {
	srv, calls := newFakeHubSpot(t, func(w http.ResponseWriter, _ recordedCall) {})
	client := NewCRMClient(srv.URL, nil)

	_, err := client.SearchContactByEmail(context.Background(), "", "a@example.com", nil)
	assert.ErrorIs(t, err, ErrMissingToken)
	assert.Empty(t, *calls)
}

func TestCRMClient_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewCRMClient(srv.URL, relayhttp.NewClient(time.Second))
	_, err := client.SearchContactByEmail(context.Background(), "pat-test", "a@example.com", nil)
	require.Error(t, err)
	assert.Equal(t, 0, StatusOf(err))
}
