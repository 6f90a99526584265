package oapi

import (
	"fmt"
	"net/http"

	"github.com/cockroachdb/errors"
)

// Host is the routing engine routes are installed into. It matches requests
// by method and pattern and exposes the values of pattern wildcards.
type Host interface {
	http.Handler

	// Handle installs h for method and pattern. Patterns use the
	// net/http ServeMux wildcard syntax: /items/{id}, /files/{path...}.
	Handle(method, pattern string, h http.Handler) error

	// PathValue returns the value of the named wildcard for r.
	PathValue(r *http.Request, name string) string
}

// ServeMuxHost is the default Host, backed by http.ServeMux.
type ServeMuxHost struct {
	mux *http.ServeMux
}

// NewServeMuxHost returns a host on a fresh ServeMux.
func NewServeMuxHost() *ServeMuxHost {
	return &ServeMuxHost{mux: http.NewServeMux()}
}

// Handle installs h, turning the ServeMux registration panic into an error.
func (h *ServeMuxHost) Handle(method, pattern string, handler http.Handler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Mark(errors.Newf("%v", rec), ErrInvalidRoute)
		}
	}()
	h.mux.Handle(fmt.Sprintf("%s %s", method, pattern), handler)
	return nil
}

// PathValue returns r.PathValue(name).
func (h *ServeMuxHost) PathValue(r *http.Request, name string) string {
	return r.PathValue(name)
}

// ServeHTTP implements http.Handler.
func (h *ServeMuxHost) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}
