// Package relay holds the transport-neutral request and response model shared
// by every endpoint, and the single adapter that binds it to gin.
package relay

import (
	"context"
	"errors"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxBodyBytes caps how much of an inbound body is read.
const MaxBodyBytes = 1 << 20

// ErrBodyTooLarge is returned by FromGin for bodies over MaxBodyBytes.
var ErrBodyTooLarge = errors.New("request body exceeds 1 MiB")

// Request is the decoded inbound call an endpoint operates on.
type Request struct {
	Method  string
	Path    string
	Headers http.Header
	Query   url.Values
	Form    url.Values
	Params  map[string]string
	Cookies map[string]string
	Body    []byte
}

// Header returns the first value of the named header.
func (r Request) Header(name string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(name)
}

// Value looks a field up in the form body first, then in the query string.
func (r Request) Value(name string) string {
	if v := r.Form.Get(name); v != "" {
		return v
	}
	return r.Query.Get(name)
}

// Response is what an endpoint hands back. Body is JSON encoded unless Raw is set.
type Response struct {
	Status      int
	Body        interface{}
	Raw         []byte
	ContentType string
	Headers     http.Header
}

// Endpoint serves one relay route.
type Endpoint interface {
	Serve(ctx context.Context, req Request) Response
}

// EndpointFunc adapts a function to Endpoint.
type EndpointFunc func(ctx context.Context, req Request) Response

func (f EndpointFunc) Serve(ctx context.Context, req Request) Response {
	return f(ctx, req)
}

func OK(body interface{}) Response {
	return Response{Status: http.StatusOK, Body: body}
}

func JSON(status int, body interface{}) Response {
	return Response{Status: status, Body: body}
}

func RawResponse(status int, contentType string, raw []byte) Response {
	return Response{Status: status, Raw: raw, ContentType: contentType}
}

// HTML renders a pre-built page.
func HTML(status int, page []byte) Response {
	return RawResponse(status, "text/html; charset=utf-8", page)
}

// FromGin builds a Request from the gin context. It reads the body once.
func FromGin(c *gin.Context) (Request, error) {
	req := Request{
		Method:  c.Request.Method,
		Path:    c.Request.URL.Path,
		Headers: c.Request.Header.Clone(),
		Query:   c.Request.URL.Query(),
		Form:    url.Values{},
		Params:  make(map[string]string, len(c.Params)),
		Cookies: make(map[string]string),
	}
	for _, p := range c.Params {
		req.Params[p.Key] = p.Value
	}
	for _, ck := range c.Request.Cookies() {
		req.Cookies[ck.Name] = ck.Value
	}

	if c.Request.Body != nil {
		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				return req, ErrBodyTooLarge
			}
			return req, err
		}
		req.Body = body
	}

	if isForm(c.GetHeader("Content-Type")) && len(req.Body) > 0 {
		form, err := url.ParseQuery(string(req.Body))
		if err != nil {
			return req, err
		}
		req.Form = form
	}
	return req, nil
}

func isForm(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return strings.EqualFold(mediaType, "application/x-www-form-urlencoded")
}

// Write sends the Response through gin.
func Write(c *gin.Context, resp Response) {
	for k, values := range resp.Headers {
		for _, v := range values {
			c.Writer.Header().Add(k, v)
		}
	}
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	if resp.Raw != nil {
		ct := resp.ContentType
		if ct == "" {
			ct = "application/octet-stream"
		}
		c.Data(status, ct, resp.Raw)
		return
	}
	if resp.Body == nil {
		c.Status(status)
		return
	}
	c.JSON(status, resp.Body)
}

// Adapt converts an Endpoint into a gin handler.
func Adapt(e Endpoint) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, err := FromGin(c)
		if errors.Is(err, ErrBodyTooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": gin.H{
				"code":    "PAYLOAD_TOO_LARGE",
				"message": "Request body is too large",
				"details": err.Error(),
			}})
			return
		}
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": gin.H{
				"code":    "INVALID_PAYLOAD",
				"message": "Request body is not valid",
				"details": err.Error(),
			}})
			return
		}
		Write(c, e.Serve(c.Request.Context(), req))
	}
}
