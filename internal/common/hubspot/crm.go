package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	relayhttp "graphwise-relay/internal/common/http"
	"graphwise-relay/internal/common/metrics"
)

const (
	DefaultBaseURL = "https://api.hubapi.com"
	contactsPath   = "/crm/v3/objects/contacts"
	serviceName    = "hubspot"
)

// ErrMissingToken is returned before any call is made without a credential.
var ErrMissingToken = errors.New("hubspot: token is required")

// ContactAPI is the set of contact operations the relay endpoints use.
type ContactAPI interface {
	SearchContactByEmail(ctx context.Context, token, email string, properties []string) (*Contact, error)
	UpdateContact(ctx context.Context, token, contactID string, properties map[string]string) (*Contact, error)
	CreateContact(ctx context.Context, token string, properties map[string]string) (*Contact, error)
}

var _ ContactAPI = (*CRMClient)(nil)

// CRMClient talks to the HubSpot CRM v3 contacts API. It holds no credential;
// the private app token travels with each call so a settings change applies
// to the next request.
type CRMClient struct {
	baseURL    string
	httpClient relayhttp.Doer
}

type Contact struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties"`
	CreatedAt  string            `json:"createdAt,omitempty"`
	UpdatedAt  string            `json:"updatedAt,omitempty"`
	Archived   bool              `json:"archived,omitempty"`
}

// Property returns a contact property or "" when absent.
func (c *Contact) Property(name string) string {
	if c == nil || c.Properties == nil {
		return ""
	}
	return c.Properties[name]
}

type searchFilter struct {
	PropertyName string `json:"propertyName"`
	Operator     string `json:"operator"`
	Value        string `json:"value"`
}

type searchFilterGroup struct {
	Filters []searchFilter `json:"filters"`
}

type searchRequest struct {
	FilterGroups []searchFilterGroup `json:"filterGroups"`
	Properties   []string            `json:"properties,omitempty"`
	Limit        int                 `json:"limit"`
}

type searchResponse struct {
	Total   int       `json:"total"`
	Results []Contact `json:"results"`
}

type propertiesPayload struct {
	Properties map[string]string `json:"properties"`
}

// UpstreamError is a non-2xx answer from HubSpot. Body is kept verbatim.
type UpstreamError struct {
	Operation  string
	StatusCode int
	Body       []byte
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("failed to %s (status %d): %s", e.Operation, e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// StatusOf returns the upstream status carried by err, or 0.
func StatusOf(err error) int {
	var upErr *UpstreamError
	if errors.As(err, &upErr) {
		return upErr.StatusCode
	}
	return 0
}

func NewCRMClient(baseURL string, httpClient relayhttp.Doer) *CRMClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = relayhttp.NewClient(10 * time.Second)
	}
	return &CRMClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// SearchContactByEmail runs an exact email match and returns the first
// contact, or nil when there is none.
func (c *CRMClient) SearchContactByEmail(ctx context.Context, token, email string, properties []string) (*Contact, error) {
	payload := searchRequest{
		FilterGroups: []searchFilterGroup{{
			Filters: []searchFilter{{PropertyName: "email", Operator: "EQ", Value: email}},
		}},
		Properties: properties,
		Limit:      1,
	}

	body, err := c.call(ctx, token, http.MethodPost, contactsPath+"/search", payload, "search contacts")
	if err != nil {
		return nil, err
	}

	var result searchResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	if len(result.Results) == 0 {
		return nil, nil
	}
	return &result.Results[0], nil
}

// UpdateContact patches exactly the given properties.
func (c *CRMClient) UpdateContact(ctx context.Context, token, contactID string, properties map[string]string) (*Contact, error) {
	if contactID == "" {
		return nil, fmt.Errorf("contact id is required")
	}
	path := contactsPath + "/" + url.PathEscape(contactID)
	body, err := c.call(ctx, token, http.MethodPatch, path, propertiesPayload{Properties: properties}, "update contact")
	if err != nil {
		return nil, err
	}
	return decodeContact(body)
}

func (c *CRMClient) CreateContact(ctx context.Context, token string, properties map[string]string) (*Contact, error) {
	body, err := c.call(ctx, token, http.MethodPost, contactsPath, propertiesPayload{Properties: properties}, "create contact")
	if err != nil {
		return nil, err
	}
	return decodeContact(body)
}

func decodeContact(body []byte) (*Contact, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return &Contact{}, nil
	}
	var contact Contact
	if err := json.Unmarshal(body, &contact); err != nil {
		return nil, fmt.Errorf("failed to decode contact: %w", err)
	}
	return &contact, nil
}

func (c *CRMClient) call(ctx context.Context, token, method, path string, payload interface{}, operation string) ([]byte, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.ObserveUpstream(serviceName, operation, "transport_error", time.Since(start))
		return nil, fmt.Errorf("failed to %s: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveUpstream(serviceName, operation, "transport_error", time.Since(start))
		return nil, fmt.Errorf("failed to read %s response: %w", operation, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ObserveUpstream(serviceName, operation, fmt.Sprintf("%dxx", resp.StatusCode/100), time.Since(start))
		return nil, &UpstreamError{Operation: operation, StatusCode: resp.StatusCode, Body: body}
	}

	metrics.ObserveUpstream(serviceName, operation, "ok", time.Since(start))
	return body, nil
}
