package oapi_test

import (
	"net/http"
	"reflect"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/oapi"
)

func TestNormalizePattern(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		pattern string
		want    string
	}{
		"static":       {pattern: "/items", want: "/items"},
		"wildcard":     {pattern: "/items/{id}", want: "/items/{}"},
		"two":          {pattern: "/a/{x}/b/{y}", want: "/a/{}/b/{}"},
		"remainder":    {pattern: "/files/{path...}", want: "/files/{...}"},
		"anchor":       {pattern: "/items/{$}", want: "/items/{$}"},
		"unterminated": {pattern: "/items/{id", want: "/items/{id"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, oapi.NormalizePattern(tc.pattern))
		})
	}
}

func TestPathWildcards(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		pattern string
		want    []string
	}{
		"none":      {pattern: "/items", want: nil},
		"ordered":   {pattern: "/orgs/{org}/users/{id}", want: []string{"org", "id"}},
		"remainder": {pattern: "/files/{path...}", want: []string{"path"}},
		"anchor":    {pattern: "/{$}", want: nil},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, oapi.PathWildcards(tc.pattern))
		})
	}
}

func TestHasParamTags(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		typ  reflect.Type
		want bool
	}{
		"params":         {typ: reflect.TypeFor[searchParams](), want: true},
		"pointer":        {typ: reflect.TypeFor[*itemParams](), want: true},
		"body only":      {typ: reflect.TypeFor[itemIn](), want: false},
		"not a struct":   {typ: reflect.TypeFor[string](), want: false},
		"unexported tag": {typ: reflect.TypeFor[struct{ id string `path:"id"` }](), want: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, oapi.HasParamTags(tc.typ))
		})
	}
}

func TestServeMuxHost(t *testing.T) {
	t.Parallel()

	h := oapi.NewServeMuxHost()
	var got string
	require.NoError(t, h.Handle(http.MethodGet, "/files/{path...}", http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = h.PathValue(r, "path")
	})))

	serve(h, request{method: http.MethodGet, target: "/files/a/b.txt"})
	assert.Equal(t, "a/b.txt", got)

	err := h.Handle(http.MethodGet, "/files/{rest...}", http.NotFoundHandler())
	require.Error(t, err)
	assert.True(t, errors.Is(err, oapi.ErrInvalidRoute))
}

// recordingHost wraps a ServeMuxHost and records every installed route.
type recordingHost struct {
	*oapi.ServeMuxHost
	installed []string
}

func (h *recordingHost) Handle(method, pattern string, handler http.Handler) error {
	h.installed = append(h.installed, method+" "+pattern)
	return h.ServeMuxHost.Handle(method, pattern, handler)
}

func TestWithHost(t *testing.T) {
	t.Parallel()

	host := &recordingHost{ServeMuxHost: oapi.NewServeMuxHost()}
	r := oapi.New(oapi.WithHost(host))
	oapi.Get(r, "/items/{id}", func(c *oapi.ResponseContext[itemOut], p *itemParams) error {
		c.Respond(&itemOut{ID: p.ID})
		return nil
	})
	oapi.Delete(r, "/items/{id}", func(_ *oapi.ResponseContext[oapi.Void], _ *itemParams) error {
		return nil
	})

	assert.Equal(t, []string{"GET /items/{id}", "DELETE /items/{id}"}, host.installed)

	rec := serve(r, request{method: http.MethodGet, target: "/items/9"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":"9","name":""}`, rec.Body.String())
}
