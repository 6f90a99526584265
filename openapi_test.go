package oapi_test

import (
	"bytes"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/bjaus/oapi"
)

type listParams struct {
	Limit  int    `query:"limit" doc:"Max results" minimum:"1" maximum:"100"`
	Cursor string `query:"cursor"`
	Trace  string `header:"X-Trace" required:"true"`
}

type orderParams struct {
	ID    string `path:"id" doc:"Order ID"`
	Force bool   `query:"force"`
}

type order struct {
	ID     string   `json:"id"`
	Note   *string  `json:"note"`
	Lines  []line   `json:"lines"`
	Parent *order   `json:"parent,omitempty"`
	Labels []string `json:"labels,omitempty"`
}

type line struct {
	SKU string `json:"sku"`
	Qty int    `json:"qty" minimum:"1"`
}

func handleOrder(c *oapi.ResponseContext[order], _ *orderParams) error {
	c.Respond(&order{ID: "o1"})
	return nil
}

func buildSpec(t *testing.T, r *oapi.Router) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, r.WriteSpec(&buf))
	return buf.String()
}

func TestDocument_info(t *testing.T) {
	t.Parallel()

	r := oapi.New(
		oapi.WithTitle("Orders"),
		oapi.WithVersion("2.1.0"),
		oapi.WithAPIDescription("Order management"),
		oapi.WithServers(oapi.Server{URL: "https://api.example.com", Description: "prod"}),
		oapi.WithTagDescriptions(map[string]string{"orders": "Order operations"}),
	)
	oapi.Get(r, "/orders/{id}", handleOrder, oapi.WithTags("orders", "read"))

	spec := r.Spec()
	assert.Equal(t, "3.1.0", spec.OpenAPI)
	assert.Equal(t, oapi.OpenAPIInfo{Title: "Orders", Version: "2.1.0", Description: "Order management"}, spec.Info)
	assert.Equal(t, []oapi.Server{{URL: "https://api.example.com", Description: "prod"}}, spec.Servers)
	assert.Equal(t, []oapi.Tag{{Name: "orders", Description: "Order operations"}, {Name: "read"}}, spec.Tags)
	assert.Contains(t, spec.Components.Schemas, "ProblemDetail")
}

func TestDocument_parameters(t *testing.T) {
	t.Parallel()

	r := oapi.New()
	oapi.Get(r, "/orders", func(_ *oapi.ResponseContext[oapi.Void], _ *listParams) error { return nil })
	oapi.Get(r, "/orders/{id}", handleOrder)
	oapi.Get(r, "/files/{path...}", func(_ *oapi.ResponseContext[oapi.Void], _ *oapi.Void) error { return nil })

	spec := r.Spec()

	list := spec.Paths["/orders"]["get"].Parameters
	require.Len(t, list, 3)
	assert.Equal(t, "limit", list[0].Name)
	assert.Equal(t, "query", list[0].In)
	assert.Equal(t, "Max results", list[0].Description)
	assert.Empty(t, list[0].Schema.Description)
	assert.InDelta(t, 100.0, *list[0].Schema.Maximum, 0)
	assert.False(t, list[0].Required)
	assert.Equal(t, "header", list[2].In)
	assert.True(t, list[2].Required)

	get := spec.Paths["/orders/{id}"]["get"].Parameters
	require.Len(t, get, 2)
	assert.Equal(t, oapi.Parameter{
		Name:        "id",
		In:          "path",
		Description: "Order ID",
		Required:    true,
		Schema:      oapi.JSONSchema{Type: "string"},
	}, get[0])

	files := spec.Paths["/files/{path}"]["get"].Parameters
	require.Len(t, files, 1, "unbound wildcards are documented as strings")
	assert.Equal(t, "path", files[0].Name)
	assert.True(t, files[0].Required)
}

func TestDocument_bodies_and_responses(t *testing.T) {
	t.Parallel()

	r := oapi.New()
	oapi.Post(r, "/orders", func(c *oapi.ResponseContext[order], _ *oapi.Void, in *order) error {
		c.Respond(in)
		return nil
	}, oapi.WithStatus(http.StatusCreated), oapi.WithBodyLimit(1<<20))
	oapi.Patch(r, "/orders/{id}", func(_ *oapi.ResponseContext[order], _ *orderParams, _ *order) error {
		return nil
	}, oapi.WithErrors(http.StatusNotFound, http.StatusConflict))
	oapi.Put(r, "/orders/{id}/note", func(_ *oapi.ResponseContext[oapi.Void], _ *orderParams, _ **string) error {
		return nil
	})

	spec := r.Spec()

	create := spec.Paths["/orders"]["post"]
	require.NotNil(t, create.RequestBody)
	assert.True(t, create.RequestBody.Required)
	assert.Equal(t, "#/components/schemas/order", create.RequestBody.Content["application/json"].Schema.Ref)
	assert.Contains(t, create.RequestBody.Content, "application/xml")
	assert.Equal(t, "Created", create.Responses["201"].Description)
	assert.Equal(t, "#/components/schemas/order", create.Responses["201"].Content["application/json"].Schema.Ref)
	for _, code := range []string{"400", "415", "413"} {
		assert.Contains(t, create.Responses, code)
		assert.Equal(t, "#/components/schemas/ProblemDetail", create.Responses[code].Content["application/problem+json"].Schema.Ref)
	}
	assert.NotContains(t, create.Responses, "401")
	assert.NotContains(t, create.Responses, "429")

	patch := spec.Paths["/orders/{id}"]["patch"]
	assert.Equal(t, "Not Found", patch.Responses["404"].Description)
	assert.Equal(t, "Conflict", patch.Responses["409"].Description)
	assert.NotContains(t, patch.Responses, "413")

	note := spec.Paths["/orders/{id}/note"]["put"]
	assert.False(t, note.RequestBody.Required, "nullable bodies are optional")
	assert.Equal(t, "No Content", note.Responses["204"].Description)
	assert.Empty(t, note.Responses["204"].Content)

	orderSchema := spec.Components.Schemas["order"]
	assert.Equal(t, "#/components/schemas/order", orderSchema.Properties["parent"].Ref)
	assert.Equal(t, "#/components/schemas/line", orderSchema.Properties["lines"].Items.Ref)
	assert.Contains(t, spec.Components.Schemas, "line")
}

func TestDocument_operation_ids(t *testing.T) {
	t.Parallel()

	r := oapi.New()
	oapi.Get(r, "/orders/{id}", handleOrder)
	oapi.Get(r, "/orders/{id}/{$}", handleOrder)
	oapi.Delete(r, "/orders/{id}", func(_ *oapi.ResponseContext[oapi.Void], _ *orderParams) error { return nil },
		oapi.WithOperationID("cancelOrder"))

	spec := r.Spec()
	assert.Equal(t, "getOrdersById", spec.Paths["/orders/{id}"]["get"].OperationID)
	assert.Equal(t, "getOrdersById2", spec.Paths["/orders/{id}/"]["get"].OperationID)
	assert.Equal(t, "cancelOrder", spec.Paths["/orders/{id}"]["delete"].OperationID)
}

func TestGenerateOperationID(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		method string
		path   string
		want   string
	}{
		"root":          {method: "GET", path: "/", want: "get"},
		"collection":    {method: "GET", path: "/items", want: "getItems"},
		"item":          {method: "DELETE", path: "/items/{id}", want: "deleteItemsById"},
		"kebab segment": {method: "POST", path: "/user-groups/{group_id}/members", want: "postUserGroupsByGroupIdMembers"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, oapi.GenerateOperationID(tc.method, tc.path))
		})
	}
}

func TestToOpenAPIPath(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		pattern string
		want    string
	}{
		"plain":       {pattern: "/items/{id}", want: "/items/{id}"},
		"remainder":   {pattern: "/files/{path...}", want: "/files/{path}"},
		"exact match": {pattern: "/{$}", want: "/"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, oapi.ToOpenAPIPath(tc.pattern))
		})
	}
}

func TestDocument_modules_and_extensions(t *testing.T) {
	t.Parallel()

	r := oapi.New()
	oapi.Get(r, "/orders/{id}", handleOrder,
		oapi.WithSummary("Get order"),
		oapi.WithDescription("Returns one order."),
		oapi.WithDeprecated(),
		oapi.WithExtension("cache-ttl", 60),
		oapi.WithModules(oapi.ExternalDocs{URL: "https://docs.example.com/orders"}),
		oapi.WithExample(order{ID: "o1"}),
	)

	raw := buildSpec(t, r)
	op := gjson.Get(raw, `paths./orders/{id}.get`)
	require.True(t, op.Exists())

	assert.Equal(t, "Get order", op.Get("summary").String())
	assert.Equal(t, "Returns one order.", op.Get("description").String())
	assert.True(t, op.Get("deprecated").Bool())
	assert.Equal(t, int64(60), op.Get("x-cache-ttl").Int())
	assert.Equal(t, "https://docs.example.com/orders", op.Get("externalDocs.url").String())
	assert.Equal(t, "o1", op.Get(`responses.200.content.application/json.example.id`).String())
}

func TestDocument_nullable_rendering(t *testing.T) {
	t.Parallel()

	r := oapi.New()
	oapi.Get(r, "/orders/{id}", handleOrder)

	raw := buildSpec(t, r)
	props := gjson.Get(raw, "components.schemas.order.properties")

	assert.JSONEq(t, `["string","null"]`, props.Get("note.type").Raw)
	assert.Equal(t, "#/components/schemas/order", props.Get("parent.anyOf.0.$ref").String())
	assert.Equal(t, "null", props.Get("parent.anyOf.1.type").String())
}

func TestDocument_custom_builder(t *testing.T) {
	t.Parallel()

	var seen []string
	builder := builderFunc(func(d *oapi.RouteDescriptor) error {
		seen = append(seen, d.Method()+" "+d.Pattern())
		return nil
	})

	r := oapi.New(oapi.WithDocumentBuilder(builder))
	v1 := r.Group("/v1")
	oapi.Get(v1, "/orders/{id}", handleOrder)

	assert.Equal(t, []string{"GET /v1/orders/{id}"}, seen)
}

type builderFunc func(d *oapi.RouteDescriptor) error

func (f builderFunc) AddRoute(d *oapi.RouteDescriptor) error { return f(d) }
