// Package apitest provides typed test helpers for oapi routers.
package apitest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bjaus/oapi"
)

// Client wraps an httptest.Server for convenient API testing.
type Client struct {
	Server *httptest.Server

	header http.Header
}

// NewClient creates a test client serving h, usually an *oapi.Router.
func NewClient(t testing.TB, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &Client{Server: srv, header: make(http.Header)}
}

// WithHeader returns a client that sends the header on every request.
func (c *Client) WithHeader(key, value string) *Client {
	nc := &Client{Server: c.Server, header: c.header.Clone()}
	nc.header.Set(key, value)
	return nc
}

// WithBearer returns a client that sends an Authorization bearer token.
func (c *Client) WithBearer(token string) *Client {
	return c.WithHeader("Authorization", "Bearer "+token)
}

// Response holds a decoded API response. Body is set for successful
// responses with content, Problem for problem detail responses.
type Response[T any] struct {
	Status  int
	Headers http.Header
	Body    *T
	Problem *oapi.ProblemDetail
	Raw     []byte
}

// Get sends a typed GET request.
func Get[Resp any](t testing.TB, c *Client, path string) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodGet, path, nil)
}

// Post sends a typed POST request with a JSON body. Req is inferred from
// body: apitest.Post[Item](t, c, "/items", &input).
func Post[Resp, Req any](t testing.TB, c *Client, path string, body *Req) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodPost, path, body)
}

// Put sends a typed PUT request with a JSON body.
func Put[Resp, Req any](t testing.TB, c *Client, path string, body *Req) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodPut, path, body)
}

// Patch sends a typed PATCH request with a JSON body.
func Patch[Resp, Req any](t testing.TB, c *Client, path string, body *Req) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodPatch, path, body)
}

// Delete sends a typed DELETE request.
func Delete[Resp any](t testing.TB, c *Client, path string) *Response[Resp] {
	t.Helper()
	return do[Resp](t, c, http.MethodDelete, path, nil)
}

// Send sends a raw body with the given content type, for requests a typed
// helper cannot produce (malformed JSON, other media types).
func Send[Resp any](t testing.TB, c *Client, method, path, contentType string, body []byte) *Response[Resp] {
	t.Helper()

	req := newRequest(t, c, method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	return execute[Resp](t, req)
}

func do[Resp any](t testing.TB, c *Client, method, path string, body any) *Response[Resp] {
	t.Helper()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("apitest: marshal request body: %v", err)
		}
		reqBody = bytes.NewReader(b)
	}

	req := newRequest(t, c, method, path, reqBody)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return execute[Resp](t, req)
}

func newRequest(t testing.TB, c *Client, method, path string, body io.Reader) *http.Request {
	t.Helper()

	req, err := http.NewRequestWithContext(context.Background(), method, c.Server.URL+path, body)
	if err != nil {
		t.Fatalf("apitest: create request: %v", err)
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req
}

func execute[Resp any](t testing.TB, req *http.Request) *Response[Resp] {
	t.Helper()

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("apitest: execute request: %v", err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			t.Errorf("apitest: close body: %v", closeErr)
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("apitest: read body: %v", err)
	}

	result := &Response[Resp]{
		Status:  resp.StatusCode,
		Headers: resp.Header,
		Raw:     raw,
	}
	if len(raw) == 0 {
		return result
	}

	mediaType, _, _ := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	switch mediaType {
	case "application/problem+json":
		var problem oapi.ProblemDetail
		if err := json.Unmarshal(raw, &problem); err == nil {
			result.Problem = &problem
		}
	case "application/json":
		var decoded Resp
		if err := json.Unmarshal(raw, &decoded); err == nil {
			result.Body = &decoded
		}
	}
	return result
}
