package oapi_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/oapi"
)

type request struct {
	method  string
	target  string
	body    string
	headers map[string]string
}

// serve runs req through h and returns the recorded response.
func serve(h http.Handler, req request) *httptest.ResponseRecorder {
	var body io.Reader
	if req.body != "" {
		body = strings.NewReader(req.body)
	}
	r := httptest.NewRequest(req.method, req.target, body)
	for k, v := range req.headers {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, r)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) oapi.ProblemDetail {
	t.Helper()
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
	var p oapi.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

// registrationPanic runs fn and returns the *RegistrationError it panics with.
func registrationPanic(t *testing.T, fn func()) (re *oapi.RegistrationError) {
	t.Helper()
	defer func() {
		rec := recover()
		require.NotNil(t, rec, "expected registration to panic")
		err, ok := rec.(error)
		require.True(t, ok, "panic value %v is not an error", rec)
		require.True(t, errors.As(err, &re), "panic value %T is not a RegistrationError", rec)
	}()
	fn()
	return nil
}

type counter struct{ n atomic.Int32 }

func (c *counter) inc()      { c.n.Add(1) }
func (c *counter) load() int { return int(c.n.Load()) }
