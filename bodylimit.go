package oapi

import "net/http"

// BodyLimit returns middleware that caps every request body at maxBytes.
// Routes that decode past the cap answer 413. WithBodyLimit sets a tighter
// cap on a single route.
func BodyLimit(maxBytes int64) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limitBody(w, r, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}

// limitBody wraps r.Body in a MaxBytesReader. Nested limits keep the
// smallest.
func limitBody(w http.ResponseWriter, r *http.Request, maxBytes int64) {
	if maxBytes <= 0 || r.Body == nil || r.Body == http.NoBody {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
}
