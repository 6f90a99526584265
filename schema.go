package oapi

import (
	"encoding/json"
	"maps"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"
)

// JSONSchema represents a JSON Schema object (subset for OpenAPI 3.1).
//
// Nullable is not a JSON Schema keyword; it is rendered the 3.1 way, as a
// ["T", "null"] type array, or as an anyOf with null for references.
type JSONSchema struct {
	Type        string                `json:"-"`
	Nullable    bool                  `json:"-"`
	Format      string                `json:"format,omitempty"`
	Description string                `json:"description,omitempty"`
	Properties  map[string]JSONSchema `json:"properties,omitempty"`
	Items       *JSONSchema           `json:"items,omitempty"`
	Required    []string              `json:"required,omitempty"`
	Enum        []string              `json:"enum,omitempty"`
	Ref         string                `json:"-"`
	Default     any                   `json:"default,omitempty"`
	Examples    []any                 `json:"examples,omitempty"`

	// AdditionalProperties can be true (any) or a schema.
	AdditionalProperties *JSONSchema `json:"additionalProperties,omitempty"`

	MinLength *int     `json:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty"`
	MinItems  *int     `json:"minItems,omitempty"`
	MaxItems  *int     `json:"maxItems,omitempty"`
	Minimum   *float64 `json:"minimum,omitempty"`
	Maximum   *float64 `json:"maximum,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
}

// jsonSchemaFields is JSONSchema without its methods, for the codec.
type jsonSchemaFields JSONSchema

type jsonSchemaWire struct {
	Type  any          `json:"type,omitempty"`
	Ref   string       `json:"$ref,omitempty"`
	AnyOf []JSONSchema `json:"anyOf,omitempty"`
	jsonSchemaFields
}

// MarshalJSON renders the type and nullability the OpenAPI 3.1 way.
func (s JSONSchema) MarshalJSON() ([]byte, error) {
	wire := jsonSchemaWire{jsonSchemaFields: jsonSchemaFields(s)}

	switch {
	case s.Ref != "" && s.Nullable:
		wire.AnyOf = []JSONSchema{{Ref: s.Ref}, {Type: "null"}}
	case s.Ref != "":
		wire.Ref = s.Ref
	case s.Type != "" && s.Nullable:
		wire.Type = []string{s.Type, "null"}
	case s.Type != "":
		wire.Type = s.Type
	}
	return json.Marshal(wire)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (s *JSONSchema) UnmarshalJSON(data []byte) error {
	var wire jsonSchemaWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	*s = JSONSchema(wire.jsonSchemaFields)
	s.Ref = wire.Ref

	switch t := wire.Type.(type) {
	case string:
		s.Type = t
	case []any:
		for _, v := range t {
			name, _ := v.(string)
			if name == "null" {
				s.Nullable = true
			} else {
				s.Type = name
			}
		}
	}

	if len(wire.AnyOf) == 2 && wire.AnyOf[1].Type == "null" && wire.AnyOf[0].Ref != "" {
		s.Ref = wire.AnyOf[0].Ref
		s.Nullable = true
	}
	return nil
}

const schemaRefPrefix = "#/components/schemas/"

// schemaRegistry turns Go types into schemas. Named struct types become
// components referenced by $ref; everything else is inlined.
type schemaRegistry struct {
	defs  map[string]JSONSchema
	names map[reflect.Type]string
}

func newSchemaRegistry() *schemaRegistry {
	return &schemaRegistry{
		defs:  make(map[string]JSONSchema),
		names: make(map[reflect.Type]string),
	}
}

// fork returns a registry that starts with the components of sr and records
// new ones only on itself.
func (sr *schemaRegistry) fork() *schemaRegistry {
	return &schemaRegistry{defs: maps.Clone(sr.defs), names: maps.Clone(sr.names)}
}

// merge adds the components resolved in f.
func (sr *schemaRegistry) merge(f *schemaRegistry) {
	maps.Copy(sr.defs, f.defs)
	maps.Copy(sr.names, f.names)
}

// schemaFor resolves a witness. Witnesses of the same type share one component.
func (sr *schemaRegistry) schemaFor(w *TypeWitness) JSONSchema {
	s := sr.typeToSchema(w.Type)
	if w.Nullable && (s.Type != "" || s.Ref != "") {
		s.Nullable = true
	}
	return s
}

// typeToSchema converts a reflect.Type to a JSONSchema.
func (sr *schemaRegistry) typeToSchema(t reflect.Type) JSONSchema {
	if t.Kind() == reflect.Pointer {
		s := sr.typeToSchema(t.Elem())
		if s.Type != "" || s.Ref != "" {
			s.Nullable = true
		}
		return s
	}

	// Handle well-known types.
	switch t {
	case reflect.TypeFor[time.Time]():
		return JSONSchema{Type: "string", Format: "date-time"}
	case reflect.TypeFor[time.Duration]():
		return JSONSchema{Type: "string", Format: "duration"}
	case voidType:
		return JSONSchema{}
	}

	if t.Kind() != reflect.String && implementsTextMarshaler(t) {
		return JSONSchema{Type: "string"}
	}
	if implementsJSONMarshaler(t) {
		return JSONSchema{}
	}

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.String:
		return JSONSchema{Type: "string"}
	case reflect.Bool:
		return JSONSchema{Type: "boolean"}
	case reflect.Int32, reflect.Int16, reflect.Int8:
		return JSONSchema{Type: "integer", Format: "int32"}
	case reflect.Int, reflect.Int64:
		return JSONSchema{Type: "integer", Format: "int64"}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return JSONSchema{Type: "integer", Minimum: ptr(0.0)}
	case reflect.Float32:
		return JSONSchema{Type: "number", Format: "float"}
	case reflect.Float64:
		return JSONSchema{Type: "number", Format: "double"}
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return JSONSchema{Type: "string", Format: "byte"}
		}
		items := sr.typeToSchema(t.Elem())
		return JSONSchema{Type: "array", Items: &items}
	case reflect.Array:
		items := sr.typeToSchema(t.Elem())
		return JSONSchema{Type: "array", Items: &items, MinItems: ptr(t.Len()), MaxItems: ptr(t.Len())}
	case reflect.Map:
		valSchema := sr.typeToSchema(t.Elem())
		return JSONSchema{Type: "object", AdditionalProperties: &valSchema}
	case reflect.Struct:
		if t.Name() == "" {
			return sr.structToSchema(t)
		}
		return sr.refTo(t)
	default:
		return JSONSchema{}
	}
}

// refTo registers t as a component, once, and returns a reference to it.
func (sr *schemaRegistry) refTo(t reflect.Type) JSONSchema {
	if name, ok := sr.names[t]; ok {
		return JSONSchema{Ref: schemaRefPrefix + name}
	}

	base := schemaName(t)
	name := base
	for i := 2; ; i++ {
		if _, taken := sr.defs[name]; !taken {
			break
		}
		name = base + strconv.Itoa(i)
	}

	// Reserve the name first so self-referencing types terminate.
	sr.names[t] = name
	sr.defs[name] = JSONSchema{Type: "object"}
	sr.defs[name] = sr.structToSchema(t)

	return JSONSchema{Ref: schemaRefPrefix + name}
}

// structToSchema converts a struct type to a JSONSchema with properties.
func (sr *schemaRegistry) structToSchema(t reflect.Type) JSONSchema {
	schema := JSONSchema{
		Type:       "object",
		Properties: make(map[string]JSONSchema),
	}

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() && !f.Anonymous {
			continue
		}

		// Param fields are bound from the request, not the body.
		if isParamField(f) {
			continue
		}

		name := jsonFieldName(f)
		if name == "-" {
			continue
		}

		if f.Anonymous && f.Tag.Get("json") == "" {
			ft := f.Type
			if ft.Kind() == reflect.Pointer {
				ft = ft.Elem()
			}
			if ft.Kind() == reflect.Struct {
				embedded := sr.structToSchema(ft)
				for k, v := range embedded.Properties {
					if _, ok := schema.Properties[k]; !ok {
						schema.Properties[k] = v
					}
				}
				schema.Required = append(schema.Required, embedded.Required...)
				continue
			}
			if !f.IsExported() {
				continue
			}
		}

		prop := sr.typeToSchema(f.Type)
		applyConstraintTags(f, &prop)
		schema.Properties[name] = prop

		if f.Tag.Get("required") == "true" {
			schema.Required = append(schema.Required, name)
		}
	}

	if len(schema.Properties) == 0 {
		schema.Properties = nil
	}
	return schema
}

// applyConstraintTags copies doc and constraint tags onto a field schema.
func applyConstraintTags(f reflect.StructField, s *JSONSchema) {
	if doc := f.Tag.Get("doc"); doc != "" {
		s.Description = doc
	}
	if v := f.Tag.Get("format"); v != "" {
		s.Format = v
	}
	if v := f.Tag.Get("pattern"); v != "" {
		s.Pattern = v
	}
	if v := f.Tag.Get("enum"); v != "" {
		s.Enum = strings.Split(v, ",")
	}
	s.MinLength = intTag(f, "minLength", s.MinLength)
	s.MaxLength = intTag(f, "maxLength", s.MaxLength)
	s.MinItems = intTag(f, "minItems", s.MinItems)
	s.MaxItems = intTag(f, "maxItems", s.MaxItems)
	s.Minimum = floatTag(f, "minimum", s.Minimum)
	s.Maximum = floatTag(f, "maximum", s.Maximum)

	if v, ok := f.Tag.Lookup("default"); ok {
		s.Default = tagValue(v, s.Type)
	}
	if v, ok := f.Tag.Lookup("example"); ok {
		s.Examples = []any{tagValue(v, s.Type)}
	}
}

func intTag(f reflect.StructField, key string, fallback *int) *int {
	if n, err := strconv.Atoi(f.Tag.Get(key)); err == nil {
		return &n
	}
	return fallback
}

func floatTag(f reflect.StructField, key string, fallback *float64) *float64 {
	if n, err := strconv.ParseFloat(f.Tag.Get(key), 64); err == nil {
		return &n
	}
	return fallback
}

// tagValue parses a default or example tag as the JSON type of the field.
// Numbers are float64 so the value survives a JSON round trip unchanged.
func tagValue(v, typ string) any {
	switch typ {
	case "integer", "number":
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	case "boolean":
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return v
}

// schemaName names the component of a named type. Instantiated generics get
// their type arguments appended: Page[pkg.Item] becomes PageItem.
func schemaName(t reflect.Type) string {
	name := t.Name()
	i := strings.IndexByte(name, '[')
	if i < 0 {
		return name
	}

	var b strings.Builder
	b.WriteString(name[:i])
	parts := strings.FieldsFunc(name[i:], func(r rune) bool {
		return r == '[' || r == ']' || r == ',' || r == ' ' || r == '*'
	})
	for _, part := range parts {
		if j := strings.LastIndexAny(part, "./"); j >= 0 {
			part = part[j+1:]
		}
		b.WriteString(exportName(part))
	}
	return b.String()
}

func exportName(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func implementsTextMarshaler(t reflect.Type) bool {
	return t.Implements(textMarshalerType) || reflect.PointerTo(t).Implements(textMarshalerType)
}

func implementsJSONMarshaler(t reflect.Type) bool {
	return t.Implements(jsonMarshalerType) || reflect.PointerTo(t).Implements(jsonMarshalerType)
}

// jsonFieldName returns the JSON field name for a struct field.
func jsonFieldName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return f.Name
	}
	return name
}

// isParamField reports whether a struct field has parameter binding tags.
func isParamField(f reflect.StructField) bool {
	for _, tag := range paramTags {
		if f.Tag.Get(tag) != "" {
			return true
		}
	}
	return false
}

func ptr[T any](v T) *T { return &v }
