// Package chihost installs oapi routes on a go-chi router.
package chihost

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-chi/chi/v5"

	"github.com/bjaus/oapi"
)

// Host adapts a chi.Router to oapi.Host. chi and ServeMux share the
// {name} wildcard syntax; a trailing {name...} becomes chi's catch-all.
type Host struct {
	mux chi.Router
}

var _ oapi.Host = (*Host)(nil)

// New returns a host on mux, or on a fresh chi router when mux is nil.
func New(mux chi.Router) *Host {
	if mux == nil {
		mux = chi.NewRouter()
	}
	return &Host{mux: mux}
}

// Router returns the underlying chi router, for chi middleware and mounts.
func (h *Host) Router() chi.Router { return h.mux }

// Handle installs handler. chi panics on malformed patterns; the panic is
// returned as an error.
func (h *Host) Handle(method, pattern string, handler http.Handler) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = errors.Mark(errors.Newf("chi: %v", rec), oapi.ErrInvalidRoute)
		}
	}()

	pattern, rest := catchAll(pattern)
	if rest != "" {
		handler = restoreCatchAll(rest, handler)
	}
	h.mux.Method(method, pattern, handler)
	return nil
}

// PathValue returns the chi URL parameter name.
func (h *Host) PathValue(r *http.Request, name string) string {
	if v := chi.URLParam(r, name); v != "" {
		return v
	}
	return r.PathValue(name)
}

// ServeHTTP implements http.Handler.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// catchAll rewrites a trailing {name...} wildcard to chi's "*" and returns
// the wildcard name.
func catchAll(pattern string) (string, string) {
	i := strings.LastIndexByte(pattern, '{')
	if i < 0 || !strings.HasSuffix(pattern, "...}") {
		return pattern, ""
	}
	return pattern[:i] + "*", pattern[i+1 : len(pattern)-len("...}")]
}

// restoreCatchAll exposes chi's "*" parameter under its declared name.
func restoreCatchAll(name string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.SetPathValue(name, chi.URLParam(r, "*"))
		next.ServeHTTP(w, r)
	})
}
