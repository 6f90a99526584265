package oapi

import "reflect"

// Test-only exports for internal functions.
var (
	HasParamTags        = hasParamTags
	JSONFieldName       = jsonFieldName
	ApplyConstraintTags = applyConstraintTags
	SchemaName          = schemaName
	ValidateConstraints = validateConstraints
	GenerateOperationID = generateOperationID
	ToOpenAPIPath       = toOpenAPIPath
	NormalizePattern    = normalizePattern
	PathWildcards       = pathWildcards
	RetryAfter          = retryAfter
)

// TestSchemaRegistry wraps schemaRegistry for external tests.
type TestSchemaRegistry struct {
	reg  *schemaRegistry
	Defs map[string]JSONSchema
}

// NewSchemaRegistry creates a TestSchemaRegistry for testing.
func NewSchemaRegistry() *TestSchemaRegistry {
	r := newSchemaRegistry()
	return &TestSchemaRegistry{reg: r, Defs: r.defs}
}

// TypeToSchema delegates to the internal registry.
func (t *TestSchemaRegistry) TypeToSchema(typ reflect.Type) JSONSchema {
	return t.reg.typeToSchema(typ)
}

// SchemaFor delegates to the internal registry.
func (t *TestSchemaRegistry) SchemaFor(w *TypeWitness) JSONSchema {
	return t.reg.schemaFor(w)
}
