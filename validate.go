package oapi

import (
	"github.com/cockroachdb/errors"
)

// SelfValidator is implemented by parameter and body types that validate
// themselves.
type SelfValidator interface {
	Validate() error
}

// Validator validates any bound parameter struct or request body.
type Validator interface {
	Validate(v any) error
}

// validate runs constraint tags, SelfValidator and the router Validator over
// the bound parameters and body. Constraint violations of both are reported
// together.
func (r *Router) validate(params, body any, hasParams, hasBody bool) error {
	var fieldErrs []FieldError
	if hasParams {
		fieldErrs = append(fieldErrs, validateConstraints(params, "")...)
	}
	if hasBody {
		fieldErrs = append(fieldErrs, validateConstraints(body, "body")...)
	}
	if len(fieldErrs) > 0 {
		return &ValidationError{Errors: fieldErrs}
	}

	type target struct {
		value any
		field string
		ok    bool
	}
	for _, t := range []target{{params, "params", hasParams}, {body, "body", hasBody}} {
		if !t.ok {
			continue
		}
		if sv, ok := t.value.(SelfValidator); ok {
			if err := sv.Validate(); err != nil {
				return asValidationError(err, t.field)
			}
		}
		if r.validator != nil {
			if err := r.validator.Validate(t.value); err != nil {
				return asValidationError(err, t.field)
			}
		}
	}
	return nil
}

func asValidationError(err error, field string) error {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve
	}
	var p problemer
	if errors.As(err, &p) {
		return err
	}
	return &ValidationError{
		Errors: []FieldError{{Field: field, Message: err.Error()}},
		Err:    err,
	}
}
