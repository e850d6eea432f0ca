// internal/common/http/client.go
package http

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Doer is the subset of *http.Client the outbound clients depend on.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client bounds every outbound call with a per-call timeout. The timeout is
// applied to the request context so a caller deadline that is shorter wins.
type Client struct {
	httpClient *http.Client
	timeout    time.Duration
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		},
		timeout: timeout,
	}
}

// Timeout returns the configured per-call timeout.
func (c *Client) Timeout() time.Duration {
	return c.timeout
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.timeout <= 0 {
		return c.httpClient.Do(req)
	}
	ctx, cancel := context.WithTimeout(req.Context(), c.timeout)
	resp, err := c.httpClient.Do(req.WithContext(ctx))
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	return c.Do(req.WithContext(ctx))
}

// cancelOnClose releases the per-call context once the body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
