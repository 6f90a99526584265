package oapi

import (
	"encoding/json"
	"maps"
	"net/http"
	"reflect"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// DocumentBuilder consumes route descriptors at registration. AddRoute is
// called once per route, after the descriptor is final and before the route
// is installed; an error aborts the registration. A builder that must never
// see a route the host goes on to reject implements StagedBuilder.
type DocumentBuilder interface {
	AddRoute(d *RouteDescriptor) error
}

// StagedBuilder prepares a route without recording it. Router.Register calls
// StageRoute instead of AddRoute and runs commit only after the host has
// installed the route.
type StagedBuilder interface {
	DocumentBuilder
	StageRoute(d *RouteDescriptor) (commit func(), err error)
}

// OpenAPISpec is the top-level OpenAPI 3.1 document.
type OpenAPISpec struct {
	OpenAPI    string              `json:"openapi"`
	Info       OpenAPIInfo         `json:"info"`
	Servers    []Server            `json:"servers,omitempty"`
	Paths      map[string]PathItem `json:"paths"`
	Components *Components         `json:"components,omitempty"`
	Tags       []Tag               `json:"tags,omitempty"`
}

// OpenAPIInfo holds API metadata.
type OpenAPIInfo struct {
	Title       string `json:"title"`
	Version     string `json:"version"`
	Description string `json:"description,omitempty"`
}

// Server is an entry of the servers array.
type Server struct {
	URL         string `json:"url"`
	Description string `json:"description,omitempty"`
}

// Tag is a tag with its description.
type Tag struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Components holds the reusable schemas and security schemes.
type Components struct {
	Schemas         map[string]JSONSchema     `json:"schemas,omitempty"`
	SecuritySchemes map[string]SecurityScheme `json:"securitySchemes,omitempty"`
}

// SecurityScheme describes an OpenAPI security scheme.
type SecurityScheme struct {
	Type         string `json:"type"`
	Scheme       string `json:"scheme,omitempty"`
	BearerFormat string `json:"bearerFormat,omitempty"`
	Name         string `json:"name,omitempty"`
	In           string `json:"in,omitempty"`
	Description  string `json:"description,omitempty"`
}

// SecurityRequirement maps scheme names to required scopes.
type SecurityRequirement map[string][]string

// PathItem maps HTTP methods to operations.
type PathItem map[string]Operation

// Operation describes a single API operation on a path.
type Operation struct {
	Summary      string                `json:"summary,omitempty"`
	Description  string                `json:"description,omitempty"`
	Tags         []string              `json:"tags,omitempty"`
	OperationID  string                `json:"operationId,omitempty"`
	Parameters   []Parameter           `json:"parameters,omitempty"`
	RequestBody  *RequestBody          `json:"requestBody,omitempty"`
	Responses    OperationResp         `json:"responses"`
	Security     []SecurityRequirement `json:"security,omitempty"`
	Deprecated   bool                  `json:"deprecated,omitempty"`
	ExternalDocs *ExternalDocs         `json:"externalDocs,omitempty"`

	// Extensions are rendered inline as x- keys.
	Extensions map[string]any `json:"-"`

	successStatus string
}

// MarshalJSON inlines the extensions next to the operation fields.
func (o Operation) MarshalJSON() ([]byte, error) {
	type plain Operation
	b, err := json.Marshal(plain(o))
	if err != nil || len(o.Extensions) == 0 {
		return b, err
	}
	ext, err := json.Marshal(o.Extensions)
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(b)+len(ext))
	out = append(out, b[:len(b)-1]...)
	out = append(out, ',')
	return append(out, ext[1:]...), nil
}

// Parameter describes a single operation parameter.
type Parameter struct {
	Name        string     `json:"name"`
	In          string     `json:"in"`
	Description string     `json:"description,omitempty"`
	Required    bool       `json:"required,omitempty"`
	Schema      JSONSchema `json:"schema"`
}

// RequestBody describes the request body.
type RequestBody struct {
	Required bool                `json:"required"`
	Content  map[string]MediaObj `json:"content"`
}

// MediaObj is a media type object with an optional schema and example.
type MediaObj struct {
	Schema  *JSONSchema `json:"schema,omitempty"`
	Example any         `json:"example,omitempty"`
}

// OperationResp maps HTTP status codes to response objects.
type OperationResp map[string]ResponseObj

// ResponseObj describes a single response.
type ResponseObj struct {
	Description string              `json:"description"`
	Content     map[string]MediaObj `json:"content,omitempty"`
}

// Document is the OpenAPI 3.1 document a Router builds from its routes. It is
// the first DocumentBuilder of every router.
type Document struct {
	mu sync.RWMutex

	info     OpenAPIInfo
	servers  []Server
	tagDescs map[string]string

	schemas         *schemaRegistry
	paths           map[string]PathItem
	securitySchemes map[string]SecurityScheme
	tags            []string
	opIDs           map[string]bool

	requestTypes  []string
	responseTypes []string
}

const (
	problemContentType = "application/problem+json"
	problemSchemaName  = "ProblemDetail"
)

func newDocument(info OpenAPIInfo, servers []Server, tagDescs map[string]string, codecs *codecRegistry) *Document {
	doc := &Document{
		info:            info,
		servers:         servers,
		tagDescs:        tagDescs,
		schemas:         newSchemaRegistry(),
		paths:           make(map[string]PathItem),
		securitySchemes: make(map[string]SecurityScheme),
		opIDs:           make(map[string]bool),
		requestTypes:    codecs.decoderTypes(),
		responseTypes:   codecs.contentTypes(),
	}
	doc.schemas.refTo(reflect.TypeFor[ProblemDetail]())
	return doc
}

// AddRoute adds the operation of d to the document.
func (doc *Document) AddRoute(d *RouteDescriptor) error {
	doc.mu.Lock()
	defer doc.mu.Unlock()

	p, err := doc.stage(d)
	if err != nil {
		return err
	}
	doc.commit(p)
	return nil
}

// StageRoute builds the operation of d without changing the document. The
// returned func records it. Router.Register commits only once the host has
// installed the route, so a rejected route is never documented.
func (doc *Document) StageRoute(d *RouteDescriptor) (commit func(), err error) {
	doc.mu.RLock()
	p, err := doc.stage(d)
	doc.mu.RUnlock()
	if err != nil {
		return nil, err
	}
	return func() {
		doc.mu.Lock()
		defer doc.mu.Unlock()
		doc.commit(p)
	}, nil
}

// pendingOp is an operation built against a fork of the schema registry.
type pendingOp struct {
	path     string
	method   string
	op       Operation
	schemas  *schemaRegistry
	security map[string]SecurityScheme
}

func (doc *Document) stage(d *RouteDescriptor) (*pendingOp, error) {
	path := toOpenAPIPath(d.Pattern())
	method := strings.ToLower(d.Method())

	if _, exists := doc.paths[path][method]; exists {
		return nil, errors.Mark(errors.Newf("operation %s %s already documented", d.Method(), path), ErrDuplicateRoute)
	}

	p := &pendingOp{path: path, method: method, schemas: doc.schemas.fork()}
	op := Operation{
		Responses:     make(OperationResp),
		successStatus: statusToString(d.Status()),
	}

	if !d.Params().IsVoid() {
		op.Parameters = extractParameters(p.schemas, d.Params().Type)
	}
	op.Parameters = appendPathWildcards(op.Parameters, d.Pattern())

	if body := d.RequestBody(); body != nil {
		op.RequestBody = &RequestBody{
			Required: !body.Nullable,
			Content:  media(doc.requestTypes, p.schemas.schemaFor(body)),
		}
	}

	if d.Response().IsVoid() {
		op.Responses[op.successStatus] = ResponseObj{Description: http.StatusText(d.Status())}
	} else {
		op.Responses[op.successStatus] = ResponseObj{
			Description: http.StatusText(d.Status()),
			Content:     media(doc.responseTypes, p.schemas.schemaFor(d.Response())),
		}
	}

	addErrorResponses(&op, d)

	if auth := d.Auth(); auth != nil {
		name, err := doc.securityName(auth.Security)
		if err != nil {
			return nil, err
		}
		p.security = map[string]SecurityScheme{name: auth.Security.Scheme}
		scopes := auth.Security.Scopes
		if scopes == nil {
			scopes = []string{}
		}
		op.Security = []SecurityRequirement{{name: scopes}}
	}

	for _, b := range d.Modules() {
		b.Module.Document(&op)
	}
	op.Tags = lo.Uniq(op.Tags)

	if op.OperationID == "" {
		op.OperationID = doc.uniqueOperationID(generateOperationID(d.Method(), path))
	} else if doc.opIDs[op.OperationID] {
		return nil, errors.Mark(errors.Newf("operationId %q already in use", op.OperationID), ErrInvalidRoute)
	}

	p.op = op
	return p, nil
}

func (doc *Document) commit(p *pendingOp) {
	doc.schemas.merge(p.schemas)
	maps.Copy(doc.securitySchemes, p.security)
	doc.opIDs[p.op.OperationID] = true
	if doc.paths[p.path] == nil {
		doc.paths[p.path] = make(PathItem)
	}
	doc.paths[p.path][p.method] = p.op
	doc.tags = lo.Uniq(append(doc.tags, p.op.Tags...))
}

// Spec returns a snapshot of the document.
func (doc *Document) Spec() OpenAPISpec {
	doc.mu.RLock()
	defer doc.mu.RUnlock()

	spec := OpenAPISpec{
		OpenAPI: "3.1.0",
		Info:    doc.info,
		Servers: slices.Clone(doc.servers),
		Paths:   make(map[string]PathItem, len(doc.paths)),
		Components: &Components{
			Schemas: maps.Clone(doc.schemas.defs),
		},
	}
	for path, item := range doc.paths {
		spec.Paths[path] = maps.Clone(item)
	}
	if len(doc.securitySchemes) > 0 {
		spec.Components.SecuritySchemes = maps.Clone(doc.securitySchemes)
	}

	names := slices.Sorted(slices.Values(doc.tags))
	for _, name := range names {
		spec.Tags = append(spec.Tags, Tag{Name: name, Description: doc.tagDescs[name]})
	}
	return spec
}

func media(types []string, schema JSONSchema) map[string]MediaObj {
	content := make(map[string]MediaObj, len(types))
	for _, ct := range types {
		s := schema
		content[ct] = MediaObj{Schema: &s}
	}
	return content
}

// addErrorResponses documents the failures the request pipeline itself
// produces for d.
func addErrorResponses(op *Operation, d *RouteDescriptor) {
	if len(op.Parameters) > 0 || d.RequestBody() != nil {
		op.Responses[statusToString(http.StatusBadRequest)] = problemResponse("Invalid request")
	}
	if d.RequestBody() != nil {
		op.Responses[statusToString(http.StatusUnsupportedMediaType)] = problemResponse("Unsupported content type")
	}
	if d.BodyLimit() > 0 {
		op.Responses[statusToString(http.StatusRequestEntityTooLarge)] = problemResponse("Request body too large")
	}
	if d.RateLimited() {
		op.Responses[statusToString(http.StatusTooManyRequests)] = problemResponse("Too many requests")
	}
	if d.Auth() != nil {
		op.Responses[statusToString(http.StatusUnauthorized)] = problemResponse("Authentication required")
		op.Responses[statusToString(http.StatusForbidden)] = problemResponse("Access denied")
	}
}

// securityName returns the component name of sec. A name already bound to a
// different scheme is an error.
func (doc *Document) securityName(sec Security) (string, error) {
	name := sec.Name
	if name == "" {
		name = sec.Scheme.Scheme + "Auth"
		if sec.Scheme.Scheme == "" {
			name = sec.Scheme.Type + "Auth"
		}
	}
	if existing, ok := doc.securitySchemes[name]; ok && existing != sec.Scheme {
		return "", errors.Mark(errors.Newf("security scheme %q redefined", name), ErrInvalidRoute)
	}
	return name, nil
}

func (doc *Document) uniqueOperationID(id string) string {
	candidate := id
	for i := 2; doc.opIDs[candidate]; i++ {
		candidate = id + strconv.Itoa(i)
	}
	return candidate
}

// extractParameters builds OpenAPI parameters from param-tagged fields.
func extractParameters(sr *schemaRegistry, t reflect.Type) []Parameter {
	var params []Parameter
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}

		for _, tagName := range paramTags {
			val := f.Tag.Get(tagName)
			if val == "" {
				continue
			}

			schema := sr.typeToSchema(f.Type)
			applyConstraintTags(f, &schema)
			description := schema.Description
			schema.Description = ""

			params = append(params, Parameter{
				Name:        val,
				In:          tagName,
				Description: description,
				Required:    tagName == "path" || f.Tag.Get("required") == "true",
				Schema:      schema,
			})
		}
	}
	return params
}

// appendPathWildcards documents pattern wildcards no parameter field binds.
func appendPathWildcards(params []Parameter, pattern string) []Parameter {
	for _, name := range pathWildcards(pattern) {
		if slices.ContainsFunc(params, func(p Parameter) bool { return p.In == "path" && p.Name == name }) {
			continue
		}
		params = append(params, Parameter{
			Name:     name,
			In:       "path",
			Required: true,
			Schema:   JSONSchema{Type: "string"},
		})
	}
	return params
}

// problemResponse documents an error response rendered as a problem detail.
func problemResponse(desc string) ResponseObj {
	return ResponseObj{
		Description: desc,
		Content: map[string]MediaObj{
			problemContentType: {Schema: &JSONSchema{Ref: schemaRefPrefix + problemSchemaName}},
		},
	}
}

// generateOperationID derives an operationId such as getItemsById from the
// method and path.
func generateOperationID(method, path string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for seg := range strings.SplitSeq(path, "/") {
		if seg == "" {
			continue
		}
		if strings.HasPrefix(seg, "{") && strings.HasSuffix(seg, "}") {
			b.WriteString("By")
			seg = strings.Trim(seg, "{}")
		}
		for word := range strings.FieldsFuncSeq(seg, func(r rune) bool {
			return r == '-' || r == '_' || r == '.' || r == '$'
		}) {
			b.WriteString(exportName(word))
		}
	}
	return b.String()
}

// toOpenAPIPath converts a Go 1.22 pattern like "/users/{id}" to
// an OpenAPI path. Strips wildcard suffixes and the trailing {$} anchor.
func toOpenAPIPath(pattern string) string {
	result := strings.ReplaceAll(pattern, "...", "")
	result = strings.TrimSuffix(result, "{$}")
	if result == "" {
		result = "/"
	}
	return result
}

// statusToString converts an HTTP status code to its string representation.
func statusToString(code int) string {
	return strconv.Itoa(code)
}
