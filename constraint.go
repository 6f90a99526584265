package oapi

import (
	"fmt"
	"reflect"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"
)

// validateConstraints checks the constraint tags of v and everything
// reachable from it, and returns every violation. prefix names v in field
// paths.
func validateConstraints(v any, prefix string) []FieldError {
	var errs []FieldError
	collectConstraintErrors(reflect.ValueOf(v), prefix, &errs)
	return errs
}

func collectConstraintErrors(rv reflect.Value, path string, errs *[]FieldError) {
	for rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface {
		if rv.IsNil() {
			return
		}
		rv = rv.Elem()
	}

	//exhaustive:ignore
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := range rv.Len() {
			collectConstraintErrors(rv.Index(i), path+"["+strconv.Itoa(i)+"]", errs)
		}
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			collectConstraintErrors(iter.Value(), path+"."+fmt.Sprint(iter.Key().Interface()), errs)
		}
	case reflect.Struct:
		collectStructErrors(rv, path, errs)
	}
}

func collectStructErrors(rv reflect.Value, prefix string, errs *[]FieldError) {
	t := rv.Type()

	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() && !f.Anonymous {
			continue
		}

		fv := rv.Field(i)

		if f.Anonymous && f.Tag.Get("json") == "" {
			collectConstraintErrors(fv, prefix, errs)
			continue
		}
		if !f.IsExported() {
			continue
		}

		name, param := paramName(f)
		if name == "-" {
			continue
		}

		path := name
		if prefix != "" {
			path = prefix + "." + name
		}

		checkFieldConstraints(f, fv, path, param, errs)

		// Recurse into nested values.
		if !param {
			collectConstraintErrors(fv, path, errs)
		}
	}
}

// paramName returns the name a field is known by in field paths: the
// parameter name for bound fields, the JSON name otherwise.
func paramName(f reflect.StructField) (string, bool) {
	for _, tag := range paramTags {
		if name := f.Tag.Get(tag); name != "" {
			return tag + "." + name, true
		}
	}
	return jsonFieldName(f), false
}

func checkFieldConstraints(f reflect.StructField, fv reflect.Value, path string, param bool, errs *[]FieldError) {
	// Parameters report missing values while binding.
	if !param && f.Tag.Get("required") == "true" && fv.IsZero() {
		*errs = append(*errs, FieldError{
			Field:   path,
			Message: "is required",
		})
		return
	}

	for fv.Kind() == reflect.Pointer {
		if fv.IsNil() {
			return
		}
		fv = fv.Elem()
	}

	// minLength / maxLength / pattern / enum: strings.
	if fv.Kind() == reflect.String {
		val := fv.String()
		length := len([]rune(val))
		if tag := f.Tag.Get("minLength"); tag != "" {
			if n, err := strconv.Atoi(tag); err == nil && length < n {
				*errs = append(*errs, FieldError{
					Field:    path,
					Expected: "at least " + tag + " characters",
					Message:  fmt.Sprintf("must be at least %d characters", n),
					Value:    val,
				})
			}
		}
		if tag := f.Tag.Get("maxLength"); tag != "" {
			if n, err := strconv.Atoi(tag); err == nil && length > n {
				*errs = append(*errs, FieldError{
					Field:    path,
					Expected: "at most " + tag + " characters",
					Message:  fmt.Sprintf("must be at most %d characters", n),
					Value:    val,
				})
			}
		}
		if tag := f.Tag.Get("pattern"); tag != "" {
			if re, err := compilePattern(tag); err == nil && !re.MatchString(val) {
				*errs = append(*errs, FieldError{
					Field:    path,
					Expected: "match " + tag,
					Message:  fmt.Sprintf("must match pattern %s", tag),
					Value:    val,
				})
			}
		}
		if tag := f.Tag.Get("enum"); tag != "" && val != "" {
			if !slices.Contains(strings.Split(tag, ","), val) {
				*errs = append(*errs, FieldError{
					Field:    path,
					Expected: "one of [" + tag + "]",
					Message:  fmt.Sprintf("must be one of [%s]", tag),
					Value:    val,
				})
			}
		}
	}

	// minimum / maximum: numeric types.
	if isNumericKind(fv.Kind()) {
		floatVal := toFloat64(fv)
		if tag := f.Tag.Get("minimum"); tag != "" {
			if lower, err := strconv.ParseFloat(tag, 64); err == nil && floatVal < lower {
				*errs = append(*errs, FieldError{
					Field:    path,
					Expected: ">= " + tag,
					Message:  fmt.Sprintf("must be at least %s", tag),
					Value:    floatVal,
				})
			}
		}
		if tag := f.Tag.Get("maximum"); tag != "" {
			if upper, err := strconv.ParseFloat(tag, 64); err == nil && floatVal > upper {
				*errs = append(*errs, FieldError{
					Field:    path,
					Expected: "<= " + tag,
					Message:  fmt.Sprintf("must be at most %s", tag),
					Value:    floatVal,
				})
			}
		}
	}

	// minItems / maxItems: slices.
	if fv.Kind() == reflect.Slice {
		length := fv.Len()
		if tag := f.Tag.Get("minItems"); tag != "" {
			if n, err := strconv.Atoi(tag); err == nil && length < n {
				*errs = append(*errs, FieldError{
					Field:    path,
					Expected: "at least " + tag + " items",
					Message:  fmt.Sprintf("must have at least %d items", n),
					Value:    length,
				})
			}
		}
		if tag := f.Tag.Get("maxItems"); tag != "" {
			if n, err := strconv.Atoi(tag); err == nil && length > n {
				*errs = append(*errs, FieldError{
					Field:    path,
					Expected: "at most " + tag + " items",
					Message:  fmt.Sprintf("must have at most %d items", n),
					Value:    length,
				})
			}
		}
	}
}

var patterns sync.Map // string -> *regexp.Regexp

func compilePattern(expr string) (*regexp.Regexp, error) {
	if re, ok := patterns.Load(expr); ok {
		return re.(*regexp.Regexp), nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	patterns.Store(expr, re)
	return re, nil
}

func isNumericKind(k reflect.Kind) bool {
	//exhaustive:ignore
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

func toFloat64(v reflect.Value) float64 {
	//exhaustive:ignore
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(v.Uint())
	default: // float32, float64
		return v.Float()
	}
}
