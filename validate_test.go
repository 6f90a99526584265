package oapi_test

import (
	"net/http"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bjaus/oapi"
)

type lineItem struct {
	Name string `json:"name" required:"true" minLength:"2"`
	Qty  int    `json:"qty" minimum:"1" maximum:"99"`
}

type cart struct {
	Code  string            `json:"code" pattern:"^[A-Z]{3}$"`
	Tier  string            `json:"tier" enum:"std,gold"`
	Items []lineItem        `json:"items" minItems:"1" maxItems:"3"`
	Notes map[string]string `json:"notes"`
	Gift  *lineItem         `json:"gift"`
}

func TestValidateConstraints(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		value  any
		prefix string
		want   []string
	}{
		"valid": {
			value: &cart{Code: "ABC", Tier: "gold", Items: []lineItem{{Name: "ok", Qty: 1}}},
			want:  nil,
		},
		"pattern and enum": {
			value: &cart{Code: "abc", Tier: "platinum", Items: []lineItem{{Name: "ok", Qty: 1}}},
			want:  []string{"code", "tier"},
		},
		"empty enum is not checked": {
			value: &cart{Code: "ABC", Items: []lineItem{{Name: "ok", Qty: 1}}},
			want:  nil,
		},
		"slice elements carry their index": {
			value:  &cart{Code: "ABC", Items: []lineItem{{Name: "ok", Qty: 1}, {Name: "x", Qty: 100}}},
			prefix: "body",
			want:   []string{"body.items[1].name", "body.items[1].qty"},
		},
		"required stops further checks": {
			value: &cart{Code: "ABC", Items: []lineItem{{Qty: 1}}},
			want:  []string{"items[0].name"},
		},
		"item counts": {
			value: &cart{Code: "ABC", Items: []lineItem{}},
			want:  []string{"items"},
		},
		"nested pointer": {
			value: &cart{Code: "ABC", Items: []lineItem{{Name: "ok", Qty: 1}}, Gift: &lineItem{Name: "card", Qty: 0}},
			want:  []string{"gift.qty"},
		},
		"nil pointer is skipped": {
			value: (*cart)(nil),
			want:  nil,
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			errs := oapi.ValidateConstraints(tc.value, tc.prefix)
			var fields []string
			for _, fe := range errs {
				fields = append(fields, fe.Field)
			}
			assert.Equal(t, tc.want, fields)
		})
	}
}

func TestValidateConstraints_messages(t *testing.T) {
	t.Parallel()

	errs := oapi.ValidateConstraints(&lineItem{Name: "a", Qty: 120}, "body")
	require.Len(t, errs, 2)
	assert.Equal(t, oapi.FieldError{
		Field:    "body.name",
		Expected: "at least 2 characters",
		Message:  "must be at least 2 characters",
		Value:    "a",
	}, errs[0])
	assert.Equal(t, oapi.FieldError{
		Field:    "body.qty",
		Expected: "<= 99",
		Message:  "must be at most 99",
		Value:    120.0,
	}, errs[1])
}

type pageParams struct {
	Limit int    `query:"limit" minimum:"1" maximum:"50"`
	Sort  string `query:"sort" enum:"asc,desc"`
}

func TestValidation_params_and_body_together(t *testing.T) {
	t.Parallel()

	calls := &counter{}
	r := oapi.New()
	oapi.Post(r, "/carts", func(_ *oapi.ResponseContext[oapi.Void], _ *pageParams, _ *lineItem) error {
		calls.inc()
		return nil
	})

	rec := serve(r, request{
		method:  http.MethodPost,
		target:  "/carts?limit=500&sort=up",
		body:    `{"name":"x","qty":1}`,
		headers: map[string]string{"Content-Type": "application/json"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 0, calls.load())

	p := decodeProblem(t, rec)
	assert.Equal(t, "Validation Failed", p.Title)
	var fields []string
	for _, fe := range p.Errors {
		fields = append(fields, fe.Field)
	}
	assert.Equal(t, []string{"query.limit", "query.sort", "body.name"}, fields)
}

type signup struct {
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
}

func (s *signup) Validate() error {
	if s.Password != s.Confirm {
		return &oapi.ValidationError{Errors: []oapi.FieldError{{Field: "body.confirm", Message: "does not match password"}}}
	}
	return nil
}

func TestSelfValidator(t *testing.T) {
	t.Parallel()

	r := oapi.New()
	oapi.Post(r, "/signup", func(_ *oapi.ResponseContext[oapi.Void], _ *oapi.Void, _ *signup) error {
		return nil
	})

	rec := serve(r, request{
		method:  http.MethodPost,
		target:  "/signup",
		body:    `{"password":"a","confirm":"b"}`,
		headers: map[string]string{"Content-Type": "application/json"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	p := decodeProblem(t, rec)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "body.confirm", p.Errors[0].Field)

	rec = serve(r, request{
		method:  http.MethodPost,
		target:  "/signup",
		body:    `{"password":"a","confirm":"a"}`,
		headers: map[string]string{"Content-Type": "application/json"},
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

type validatorFunc func(v any) error

func (f validatorFunc) Validate(v any) error { return f(v) }

func TestWithValidator(t *testing.T) {
	t.Parallel()

	var seen []any
	r := oapi.New(oapi.WithValidator(validatorFunc(func(v any) error {
		seen = append(seen, v)
		if in, ok := v.(*itemIn); ok && in.Name == "forbidden" {
			return errors.New("name is reserved")
		}
		return nil
	})))
	oapi.Post(r, "/items/{id}", func(_ *oapi.ResponseContext[oapi.Void], _ *itemParams, _ *itemIn) error {
		return nil
	})

	rec := serve(r, request{
		method:  http.MethodPost,
		target:  "/items/1",
		body:    `{"name":"forbidden"}`,
		headers: map[string]string{"Content-Type": "application/json"},
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Len(t, seen, 2, "params are validated before the body")
	assert.IsType(t, &itemParams{}, seen[0])

	p := decodeProblem(t, rec)
	require.Len(t, p.Errors, 1)
	assert.Equal(t, "body", p.Errors[0].Field)
	assert.Equal(t, "name is reserved", p.Errors[0].Message)
}
