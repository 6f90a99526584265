package oapi_test

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/bjaus/oapi"
)

type address struct {
	Street string `json:"street"`
	City   string `json:"city,omitempty"`
}

type audit struct {
	CreatedAt time.Time `json:"created_at"`
}

type customer struct {
	audit
	ID       int64             `json:"id" doc:"Customer ID"`
	Name     string            `json:"name" required:"true" minLength:"1" maxLength:"50"`
	Email    *string           `json:"email" format:"email"`
	Home     *address          `json:"home"`
	Work     address           `json:"work"`
	Tier     string            `json:"tier" enum:"free,pro" default:"free"`
	Score    float64           `json:"score" minimum:"0" maximum:"100" example:"42.5"`
	Labels   map[string]string `json:"labels"`
	Avatar   []byte            `json:"avatar"`
	Tags     []string          `json:"tags" minItems:"1"`
	Timeout  time.Duration     `json:"timeout"`
	Active   bool              `json:"active" default:"true"`
	Org      string            `path:"org"`
	Internal string            `json:"-"`
	secret   string
}

func TestTypeToSchema_primitives(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		typ  reflect.Type
		want oapi.JSONSchema
	}{
		"string":   {typ: reflect.TypeFor[string](), want: oapi.JSONSchema{Type: "string"}},
		"bool":     {typ: reflect.TypeFor[bool](), want: oapi.JSONSchema{Type: "boolean"}},
		"int32":    {typ: reflect.TypeFor[int32](), want: oapi.JSONSchema{Type: "integer", Format: "int32"}},
		"int":      {typ: reflect.TypeFor[int](), want: oapi.JSONSchema{Type: "integer", Format: "int64"}},
		"float32":  {typ: reflect.TypeFor[float32](), want: oapi.JSONSchema{Type: "number", Format: "float"}},
		"float64":  {typ: reflect.TypeFor[float64](), want: oapi.JSONSchema{Type: "number", Format: "double"}},
		"time":     {typ: reflect.TypeFor[time.Time](), want: oapi.JSONSchema{Type: "string", Format: "date-time"}},
		"bytes":    {typ: reflect.TypeFor[[]byte](), want: oapi.JSONSchema{Type: "string", Format: "byte"}},
		"pointer":  {typ: reflect.TypeFor[*string](), want: oapi.JSONSchema{Type: "string", Nullable: true}},
		"void":     {typ: reflect.TypeFor[oapi.Void](), want: oapi.JSONSchema{}},
		"raw json": {typ: reflect.TypeFor[json.RawMessage](), want: oapi.JSONSchema{}},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			reg := oapi.NewSchemaRegistry()
			assert.Equal(t, tc.want, reg.TypeToSchema(tc.typ))
		})
	}
}

func TestTypeToSchema_struct(t *testing.T) {
	t.Parallel()

	reg := oapi.NewSchemaRegistry()
	s := reg.TypeToSchema(reflect.TypeFor[customer]())
	assert.Equal(t, "#/components/schemas/customer", s.Ref)

	def, ok := reg.Defs["customer"]
	require.True(t, ok)
	assert.Equal(t, "object", def.Type)
	assert.Equal(t, []string{"name"}, def.Required)

	props := def.Properties
	assert.NotContains(t, props, "org")
	assert.NotContains(t, props, "Org")
	assert.NotContains(t, props, "Internal")
	assert.NotContains(t, props, "secret")
	assert.Contains(t, props, "created_at", "embedded fields are flattened")

	assert.Equal(t, "Customer ID", props["id"].Description)
	assert.Equal(t, 1, *props["name"].MinLength)
	assert.Equal(t, 50, *props["name"].MaxLength)
	assert.True(t, props["email"].Nullable)
	assert.Equal(t, "email", props["email"].Format)
	assert.Equal(t, "#/components/schemas/address", props["home"].Ref)
	assert.True(t, props["home"].Nullable)
	assert.Equal(t, "#/components/schemas/address", props["work"].Ref)
	assert.False(t, props["work"].Nullable)
	assert.Equal(t, []string{"free", "pro"}, props["tier"].Enum)
	assert.Equal(t, "free", props["tier"].Default)
	assert.InDelta(t, 0.0, *props["score"].Minimum, 0)
	assert.InDelta(t, 100.0, *props["score"].Maximum, 0)
	assert.Equal(t, []any{42.5}, props["score"].Examples)
	assert.Equal(t, "object", props["labels"].Type)
	assert.Equal(t, "string", props["labels"].AdditionalProperties.Type)
	assert.Equal(t, "byte", props["avatar"].Format)
	assert.Equal(t, 1, *props["tags"].MinItems)
	assert.Equal(t, "duration", props["timeout"].Format)
	assert.Equal(t, true, props["active"].Default)

	assert.Contains(t, reg.Defs, "address")
}

type linkedList struct {
	Value int         `json:"value"`
	Next  *linkedList `json:"next"`
}

func TestTypeToSchema_recursive(t *testing.T) {
	t.Parallel()

	reg := oapi.NewSchemaRegistry()
	s := reg.TypeToSchema(reflect.TypeFor[linkedList]())
	assert.Equal(t, "#/components/schemas/linkedList", s.Ref)

	next := reg.Defs["linkedList"].Properties["next"]
	assert.Equal(t, "#/components/schemas/linkedList", next.Ref)
	assert.True(t, next.Nullable)
}

type pageOf[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
}

func TestTypeToSchema_generics(t *testing.T) {
	t.Parallel()

	reg := oapi.NewSchemaRegistry()
	a := reg.TypeToSchema(reflect.TypeFor[pageOf[address]]())
	b := reg.TypeToSchema(reflect.TypeFor[pageOf[string]]())

	assert.Equal(t, "#/components/schemas/pageOfAddress", a.Ref)
	assert.Equal(t, "#/components/schemas/pageOfString", b.Ref)
	assert.Equal(t, "#/components/schemas/address", reg.Defs["pageOfAddress"].Properties["items"].Items.Ref)
	assert.Equal(t, "string", reg.Defs["pageOfString"].Properties["items"].Items.Type)
}

func TestSchemaName(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		typ  reflect.Type
		want string
	}{
		"plain":            {typ: reflect.TypeFor[address](), want: "address"},
		"generic":          {typ: reflect.TypeFor[pageOf[address]](), want: "pageOfAddress"},
		"generic pointer":  {typ: reflect.TypeFor[pageOf[*address]](), want: "pageOfAddress"},
		"generic builtin":  {typ: reflect.TypeFor[pageOf[int]](), want: "pageOfInt"},
		"nested generic":   {typ: reflect.TypeFor[pageOf[pageOf[address]]](), want: "pageOfPageOfAddress"},
		"library generic":  {typ: reflect.TypeFor[pageOf[time.Time]](), want: "pageOfTime"},
		"multiple members": {typ: reflect.TypeFor[pageOf[map[string]int]](), want: "pageOfMapStringInt"},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, oapi.SchemaName(tc.typ))
		})
	}
}

func TestSchemaFor_witness(t *testing.T) {
	t.Parallel()

	reg := oapi.NewSchemaRegistry()
	w, err := oapi.WitnessFor[*address]()
	require.NoError(t, err)
	again, err := oapi.WitnessFor[address]()
	require.NoError(t, err)

	nullable := reg.SchemaFor(w)
	plain := reg.SchemaFor(again)

	assert.True(t, nullable.Nullable)
	assert.False(t, plain.Nullable)
	assert.Equal(t, nullable.Ref, plain.Ref)
	assert.Len(t, reg.Defs, 1)
}

func TestJSONSchema_json(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		schema oapi.JSONSchema
		check  func(t *testing.T, raw string)
	}{
		"plain type": {
			schema: oapi.JSONSchema{Type: "string", Format: "email"},
			check: func(t *testing.T, raw string) {
				assert.JSONEq(t, `{"type":"string","format":"email"}`, raw)
			},
		},
		"nullable type": {
			schema: oapi.JSONSchema{Type: "integer", Nullable: true},
			check: func(t *testing.T, raw string) {
				assert.JSONEq(t, `{"type":["integer","null"]}`, raw)
			},
		},
		"reference": {
			schema: oapi.JSONSchema{Ref: "#/components/schemas/address"},
			check: func(t *testing.T, raw string) {
				assert.JSONEq(t, `{"$ref":"#/components/schemas/address"}`, raw)
			},
		},
		"nullable reference": {
			schema: oapi.JSONSchema{Ref: "#/components/schemas/address", Nullable: true},
			check: func(t *testing.T, raw string) {
				assert.Equal(t, "#/components/schemas/address", gjson.Get(raw, "anyOf.0.$ref").String())
				assert.Equal(t, "null", gjson.Get(raw, "anyOf.1.type").String())
				assert.False(t, gjson.Get(raw, "$ref").Exists())
			},
		},
		"nested nullable items": {
			schema: oapi.JSONSchema{Type: "array", Items: &oapi.JSONSchema{Type: "string", Nullable: true}},
			check: func(t *testing.T, raw string) {
				assert.JSONEq(t, `{"type":"array","items":{"type":["string","null"]}}`, raw)
			},
		},
		"empty schema": {
			schema: oapi.JSONSchema{},
			check: func(t *testing.T, raw string) {
				assert.JSONEq(t, `{}`, raw)
			},
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			b, err := json.Marshal(tc.schema)
			require.NoError(t, err)
			tc.check(t, string(b))

			var back oapi.JSONSchema
			require.NoError(t, json.Unmarshal(b, &back))
			assert.Equal(t, tc.schema, back)
		})
	}
}

func TestApplyConstraintTags_parameters(t *testing.T) {
	t.Parallel()

	type params struct {
		Limit int `query:"limit" doc:"Max results" minimum:"1" maximum:"100" default:"20"`
	}

	f, ok := reflect.TypeFor[params]().FieldByName("Limit")
	require.True(t, ok)

	s := oapi.JSONSchema{Type: "integer"}
	oapi.ApplyConstraintTags(f, &s)

	assert.Equal(t, "Max results", s.Description)
	assert.InDelta(t, 1.0, *s.Minimum, 0)
	assert.InDelta(t, 100.0, *s.Maximum, 0)
	assert.Equal(t, 20.0, s.Default)
}

func TestJSONFieldName(t *testing.T) {
	t.Parallel()

	type sample struct {
		Plain     string
		Renamed   string `json:"renamed"`
		OmitEmpty string `json:",omitempty"`
		Skipped   string `json:"-"`
	}

	typ := reflect.TypeFor[sample]()
	want := []string{"Plain", "renamed", "OmitEmpty", "-"}
	for i, name := range want {
		assert.Equal(t, name, oapi.JSONFieldName(typ.Field(i)))
	}
}
