package oapi

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// ServeSpec registers a GET handler at the given path that serves
// the OpenAPI spec as JSON.
func (r *Router) ServeSpec(pattern string) {
	r.serve(pattern, "application/json", r.WriteSpec)
}

// ServeSpecYAML registers a GET handler at the given path that serves
// the OpenAPI spec as YAML.
func (r *Router) ServeSpecYAML(pattern string) {
	r.serve(pattern, "application/yaml", r.WriteSpecYAML)
}

func (r *Router) serve(pattern, contentType string, write func(io.Writer) error) {
	err := r.host.Handle(http.MethodGet, pattern, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", contentType)
		if err := write(w); err != nil {
			r.logger.Error("write spec", zap.String("path", req.URL.Path), zap.Error(err))
		}
	}))
	if err != nil {
		panic(registrationError(http.MethodGet, pattern, err))
	}
}

// WriteSpec writes the OpenAPI spec as indented JSON to w.
func (r *Router) WriteSpec(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Spec())
}

// WriteSpecYAML writes the OpenAPI spec as YAML to w. The spec goes through
// its JSON form first, so schema and extension rendering is the same in both.
func (r *Router) WriteSpecYAML(w io.Writer) error {
	b, err := json.Marshal(r.Spec())
	if err != nil {
		return errors.Wrap(err, "marshal spec")
	}
	var doc any
	if err := json.Unmarshal(b, &doc); err != nil {
		return errors.Wrap(err, "convert spec to yaml")
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return errors.Wrap(err, "encode spec")
	}
	return enc.Close()
}
