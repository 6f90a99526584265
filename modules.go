package oapi

import (
	"net/http"
	"strings"
)

// Info sets the operation summary and description.
type Info struct {
	Summary     string
	Description string
}

func (m Info) Document(op *Operation) {
	if m.Summary != "" {
		op.Summary = m.Summary
	}
	if m.Description != "" {
		op.Description = m.Description
	}
}

// Tags adds tags to the operation.
type Tags []string

func (m Tags) Document(op *Operation) {
	op.Tags = append(op.Tags, m...)
}

// Deprecated marks the operation as deprecated.
type Deprecated struct{}

func (Deprecated) Document(op *Operation) { op.Deprecated = true }

// OperationID overrides the generated operationId.
type OperationID string

func (m OperationID) Document(op *Operation) { op.OperationID = string(m) }

// Throws documents an error response. Without a description the status text
// is used.
type Throws struct {
	Status      int
	Description string
}

func (m Throws) Document(op *Operation) {
	desc := m.Description
	if desc == "" {
		desc = http.StatusText(m.Status)
	}
	op.Responses[statusToString(m.Status)] = problemResponse(desc)
}

// ResponseExample attaches an example to the success response.
type ResponseExample struct {
	Value any
}

func (m ResponseExample) Document(op *Operation) {
	resp, ok := op.Responses[op.successStatus]
	if !ok {
		return
	}
	for ct, media := range resp.Content {
		media.Example = m.Value
		resp.Content[ct] = media
	}
}

// RequestExample attaches an example to the request body.
type RequestExample struct {
	Value any
}

func (m RequestExample) Document(op *Operation) {
	if op.RequestBody == nil {
		return
	}
	for ct, media := range op.RequestBody.Content {
		media.Example = m.Value
		op.RequestBody.Content[ct] = media
	}
}

// Extension adds a specification extension to the operation. Keys without
// the "x-" prefix get one.
type Extension struct {
	Key   string
	Value any
}

func (m Extension) Document(op *Operation) {
	key := m.Key
	if !strings.HasPrefix(key, "x-") {
		key = "x-" + key
	}
	if op.Extensions == nil {
		op.Extensions = make(map[string]any)
	}
	op.Extensions[key] = m.Value
}

// ExternalDocs links the operation to external documentation.
type ExternalDocs struct {
	Description string `json:"description,omitempty"`
	URL         string `json:"url"`
}

func (m ExternalDocs) Document(op *Operation) {
	docs := m
	op.ExternalDocs = &docs
}
