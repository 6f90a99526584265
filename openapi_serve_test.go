package oapi_test

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"

	"github.com/bjaus/oapi"
)

func specRouter() *oapi.Router {
	r := oapi.New(oapi.WithTitle("Shop"), oapi.WithVersion("1.0.0"))
	oapi.Get(r, "/orders/{id}", handleOrder, oapi.WithExtension("x-owner", "billing"))
	r.ServeSpec("/openapi.json")
	r.ServeSpecYAML("/openapi.yaml")
	r.ServeDocs("/docs")
	return r
}

func TestServeSpec(t *testing.T) {
	t.Parallel()

	r := specRouter()
	rec := serve(r, request{method: http.MethodGet, target: "/openapi.json"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	raw := rec.Body.String()
	assert.Equal(t, "3.1.0", gjson.Get(raw, "openapi").String())
	assert.Equal(t, "Shop", gjson.Get(raw, "info.title").String())
	assert.Equal(t, "billing", gjson.Get(raw, `paths./orders/{id}.get.x-owner`).String())
	assert.False(t, gjson.Get(raw, `paths./openapi\.json`).Exists(), "spec routes are not documented")
}

func TestServeSpecYAML(t *testing.T) {
	t.Parallel()

	r := specRouter()
	rec := serve(r, request{method: http.MethodGet, target: "/openapi.yaml"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/yaml", rec.Header().Get("Content-Type"))

	var doc struct {
		OpenAPI string `yaml:"openapi"`
		Info    struct {
			Title   string `yaml:"title"`
			Version string `yaml:"version"`
		} `yaml:"info"`
		Paths map[string]map[string]map[string]any `yaml:"paths"`
	}
	require.NoError(t, yaml.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, "3.1.0", doc.OpenAPI)
	assert.Equal(t, "Shop", doc.Info.Title)
	assert.Equal(t, "1.0.0", doc.Info.Version)
	assert.Equal(t, "billing", doc.Paths["/orders/{id}"]["get"]["x-owner"])
	assert.Equal(t, "getOrdersById", doc.Paths["/orders/{id}"]["get"]["operationId"])
}

func TestWriteSpec_matches_yaml(t *testing.T) {
	t.Parallel()

	r := specRouter()

	var js, ys bytes.Buffer
	require.NoError(t, r.WriteSpec(&js))
	require.NoError(t, r.WriteSpecYAML(&ys))

	var fromYAML any
	require.NoError(t, yaml.Unmarshal(ys.Bytes(), &fromYAML))
	assert.Equal(t, gjson.Get(js.String(), "components.schemas.order.properties.note.type").Value(),
		dig(fromYAML, "components", "schemas", "order", "properties", "note", "type"))
}

// dig walks nested YAML maps.
func dig(v any, keys ...string) any {
	for _, k := range keys {
		m, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		v = m[k]
	}
	return v
}

func TestServeDocs(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		opts      []oapi.DocsOption
		wantTitle string
		wantURL   string
	}{
		"defaults": {
			wantTitle: "<title>Shop</title>",
			wantURL:   `apiDescriptionUrl="/openapi.json"`,
		},
		"custom": {
			opts:      []oapi.DocsOption{oapi.WithDocsTitle("Shop <API>"), oapi.WithDocsSpecURL("/v2/openapi.yaml")},
			wantTitle: "<title>Shop &lt;API&gt;</title>",
			wantURL:   `apiDescriptionUrl="/v2/openapi.yaml"`,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			r := oapi.New(oapi.WithTitle("Shop"))
			r.ServeDocs("/docs", tc.opts...)

			rec := serve(r, request{method: http.MethodGet, target: "/docs"})
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
			assert.Contains(t, rec.Body.String(), tc.wantTitle)
			assert.Contains(t, rec.Body.String(), tc.wantURL)
		})
	}
}

func TestServeSpec_conflict_panics(t *testing.T) {
	t.Parallel()

	r := oapi.New()
	r.ServeSpec("/openapi.json")
	re := registrationPanic(t, func() { r.ServeSpecYAML("/openapi.json") })
	assert.Equal(t, http.MethodGet, re.Method)
}
