package oapi

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
)

// CookieSetter is optionally implemented by response types to set cookies.
type CookieSetter interface {
	Cookies() []*http.Cookie
}

// HeaderSetter is optionally implemented by response types to set response headers.
type HeaderSetter interface {
	SetHeaders(h http.Header)
}

// encodeResponse writes resp with the encoder negotiated from Accept. A
// StatusCoder response picks its own status unless the handler set one.
func encodeResponse(w http.ResponseWriter, r *http.Request, resp any, status int, overridden bool, codecs *codecRegistry) {
	// Apply cookies and headers before writing status.
	if cs, ok := resp.(CookieSetter); ok {
		for _, c := range cs.Cookies() {
			http.SetCookie(w, c)
		}
	}
	if hs, ok := resp.(HeaderSetter); ok {
		hs.SetHeaders(w.Header())
	}

	if sc, ok := resp.(StatusCoder); ok && !overridden {
		if code := sc.StatusCode(); code != 0 {
			status = code
		}
	}

	// Negotiate response encoder from Accept header; JSON when nothing matches.
	enc, ok := codecs.negotiate(r.Header.Get("Accept"))
	if !ok {
		enc = codecs.encoders[0]
	}

	w.Header().Set("Content-Type", enc.ContentType())
	w.WriteHeader(status)
	if r.Method == http.MethodHead {
		return
	}
	//nolint:errcheck,gosec // best-effort after WriteHeader
	enc.Encode(w, resp)
}

// writeProblem writes err as an RFC 9457 problem details response.
func writeProblem(w http.ResponseWriter, err error) {
	var p problemer
	var problem *ProblemDetail
	if errors.As(err, &p) {
		problem = p.Problem()
	} else {
		status := ErrorStatus(err)
		problem = &ProblemDetail{
			Type:   "about:blank",
			Title:  http.StatusText(status),
			Status: status,
			Detail: err.Error(),
		}
		if status >= http.StatusInternalServerError {
			problem.Detail = http.StatusText(status)
		}
	}

	w.Header().Set("Content-Type", problemContentType)
	w.WriteHeader(problem.Status)
	//nolint:errcheck,errchkjson,gosec // best-effort after WriteHeader
	json.NewEncoder(w).Encode(problem)
}
