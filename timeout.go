package oapi

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
)

// Timeout returns middleware that bounds each request by d. A route whose
// deadline passes is abandoned without writing, and Timeout answers 503 in
// its place unless a response was already started.
func Timeout(d time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			rec := &responseRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r.WithContext(ctx))

			if rec.status == 0 && rec.size == 0 && errors.Is(ctx.Err(), context.DeadlineExceeded) {
				writeProblem(w, Error(http.StatusServiceUnavailable, "request timed out"))
			}
		})
	}
}
