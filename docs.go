package oapi

import (
	"bytes"
	"html/template"
	"net/http"
)

// DocsOption configures ServeDocs.
type DocsOption func(*docsPage)

type docsPage struct {
	Title   string
	SpecURL string
}

// WithDocsSpecURL sets the spec the docs page loads. Default /openapi.json.
func WithDocsSpecURL(url string) DocsOption {
	return func(p *docsPage) { p.SpecURL = url }
}

// WithDocsTitle overrides the page title, which defaults to the API title.
func WithDocsTitle(title string) DocsOption {
	return func(p *docsPage) { p.Title = title }
}

// ServeDocs serves a Stoplight Elements page for the API at path. The page
// is rendered once, at registration.
func (r *Router) ServeDocs(path string, opts ...DocsOption) {
	page := docsPage{Title: r.title, SpecURL: "/openapi.json"}
	for _, opt := range opts {
		opt(&page)
	}

	var buf bytes.Buffer
	if err := docsTemplate.Execute(&buf, page); err != nil {
		panic(registrationError(http.MethodGet, path, err))
	}
	html := buf.Bytes()

	err := r.host.Handle(http.MethodGet, path, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(html)
	}))
	if err != nil {
		panic(registrationError(http.MethodGet, path, err))
	}
}

var docsTemplate = template.Must(template.New("docs").Parse(`<!doctype html>
<html lang="en">
<head>
  <meta charset="utf-8">
  <meta name="viewport" content="width=device-width, initial-scale=1">
  <title>{{.Title}}</title>
  <script src="https://unpkg.com/@stoplight/elements/web-components.min.js"></script>
  <link rel="stylesheet" href="https://unpkg.com/@stoplight/elements/styles.min.css">
</head>
<body>
  <elements-api apiDescriptionUrl="{{.SpecURL}}" router="hash" layout="sidebar"></elements-api>
</body>
</html>
`))
