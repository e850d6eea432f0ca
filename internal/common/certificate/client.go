package certificate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	relayhttp "graphwise-relay/internal/common/http"
	"graphwise-relay/internal/common/metrics"
)

const serviceName = "certificate"

// Request is the payload sent to the certificate generation API.
type Request struct {
	Email       string `json:"email"`
	CourseID    string `json:"course_id"`
	CourseName  string `json:"course_name"`
	CompletedAt string `json:"completed_at,omitempty"`
}

type response struct {
	CertificateURL string `json:"certificate_url"`
}

// Issuer issues a certificate and returns its public URL.
type Issuer interface {
	Issue(ctx context.Context, req Request) (string, error)
}

type Client struct {
	url        string
	httpClient relayhttp.Doer
}

func NewClient(url string, httpClient relayhttp.Doer) *Client {
	if httpClient == nil {
		httpClient = relayhttp.NewClient(10 * time.Second)
	}
	return &Client{url: url, httpClient: httpClient}
}

func (c *Client) Issue(ctx context.Context, req Request) (string, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal certificate request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		metrics.ObserveUpstream(serviceName, "issue", "transport_error", time.Since(start))
		return "", fmt.Errorf("failed to issue certificate: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		metrics.ObserveUpstream(serviceName, "issue", "transport_error", time.Since(start))
		return "", fmt.Errorf("failed to read certificate response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ObserveUpstream(serviceName, "issue", fmt.Sprintf("%dxx", resp.StatusCode/100), time.Since(start))
		return "", fmt.Errorf("certificate service returned status %d: %s", resp.StatusCode, string(body))
	}
	metrics.ObserveUpstream(serviceName, "issue", "ok", time.Since(start))

	var result response
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode certificate response: %w", err)
	}
	if result.CertificateURL == "" {
		return "", fmt.Errorf("certificate service returned no certificate_url")
	}
	return result.CertificateURL, nil
}
