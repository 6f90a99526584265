package oapi

import (
	"encoding"
	"net/http"
	"reflect"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
)

var textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()

// bindParams binds path, query, header, and cookie values to the fields of
// the struct target points to. Missing values fall back to the default tag;
// a missing value for a field tagged required:"true" is a binding error.
func bindParams(target any, r *http.Request, host Host) error {
	v := reflect.ValueOf(target).Elem()
	t := v.Type()
	query := r.URL.Query()

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		field := v.Field(i)

		if name := f.Tag.Get("path"); name != "" {
			if val := host.PathValue(r, name); val != "" {
				if err := setFieldValue(field, []string{val}); err != nil {
					return bindingError(ErrBindPath, "path", name, f.Type, err)
				}
			}
		}

		if name := f.Tag.Get("query"); name != "" {
			if err := bindValues(f, field, query[name], ErrBindQuery, "query", name); err != nil {
				return err
			}
		}

		if name := f.Tag.Get("header"); name != "" {
			if err := bindValues(f, field, r.Header.Values(name), ErrBindHeader, "header", name); err != nil {
				return err
			}
		}

		if name := f.Tag.Get("cookie"); name != "" {
			var vals []string
			if c, err := r.Cookie(name); err == nil && c.Value != "" {
				vals = []string{c.Value}
			}
			if err := bindValues(f, field, vals, ErrBindCookie, "cookie", name); err != nil {
				return err
			}
		}
	}

	return nil
}

func bindValues(f reflect.StructField, field reflect.Value, vals []string, sentinel error, in, name string) error {
	if len(vals) == 0 {
		if def := f.Tag.Get("default"); def != "" {
			vals = []string{def}
		}
	}
	if len(vals) == 0 {
		if f.Tag.Get("required") == "true" {
			return &BindingError{
				Field:    in + "." + name,
				Expected: expectedType(f.Type),
				Reason:   "is required",
				Err:      errors.Mark(errors.Newf("missing %s parameter %q", in, name), sentinel),
			}
		}
		return nil
	}
	if err := setFieldValue(field, vals); err != nil {
		return bindingError(sentinel, in, name, f.Type, err)
	}
	return nil
}

func bindingError(sentinel error, in, name string, t reflect.Type, err error) *BindingError {
	return &BindingError{
		Field:    in + "." + name,
		Expected: expectedType(t),
		Reason:   "must be " + expectedType(t),
		Err:      errors.Mark(errors.Wrapf(err, "%s parameter %q", in, name), sentinel),
	}
}

// setFieldValue sets a field from its raw string values. Slices take every
// value; everything else takes the first.
func setFieldValue(field reflect.Value, values []string) error {
	if field.Kind() == reflect.Pointer {
		elem := reflect.New(field.Type().Elem())
		if err := setFieldValue(elem.Elem(), values); err != nil {
			return err
		}
		field.Set(elem)
		return nil
	}

	if reflect.PointerTo(field.Type()).Implements(textUnmarshalerType) {
		u := field.Addr().Interface().(encoding.TextUnmarshaler)
		return u.UnmarshalText([]byte(values[0]))
	}

	if field.Kind() == reflect.Slice && field.Type().Elem().Kind() != reflect.Uint8 {
		slice := reflect.MakeSlice(field.Type(), len(values), len(values))
		for i, val := range values {
			if err := setFieldValue(slice.Index(i), []string{val}); err != nil {
				return err
			}
		}
		field.Set(slice)
		return nil
	}

	return setScalar(field, values[0])
}

func setScalar(field reflect.Value, value string) error {
	if field.Type() == reflect.TypeFor[time.Duration]() {
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	//exhaustive:ignore
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		n, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(n)
	case reflect.Float32, reflect.Float64:
		n, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(n)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		field.SetBytes([]byte(value))
	default:
		return errors.Newf("unsupported type: %s", field.Type())
	}
	return nil
}

// expectedType names the shape a raw value must have to bind to t.
func expectedType(t reflect.Type) string {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	switch {
	case t == reflect.TypeFor[time.Duration]():
		return "a duration"
	case t == reflect.TypeFor[time.Time]():
		return "an RFC 3339 timestamp"
	case reflect.PointerTo(t).Implements(textUnmarshalerType):
		return "a valid " + typeLabel(t)
	}

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "an integer"
	case reflect.Float32, reflect.Float64:
		return "a number"
	case reflect.Bool:
		return "a boolean"
	case reflect.Slice:
		if t.Elem().Kind() == reflect.Uint8 {
			return "a string"
		}
		return "a list of " + expectedType(t.Elem())
	default:
		return "a string"
	}
}
