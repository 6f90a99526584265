package oapi

import (
	"encoding"
	"encoding/json"
	"reflect"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
)

// TypeWitness is a runtime descriptor of a declared Go type. Its identity is
// the pointer-stripped base type, the witnesses of its element, key or value
// types, and whether the declaration was a pointer (nullable).
//
// Witnesses are canonical: every declaration of the same type yields the same
// *TypeWitness, so document builders can cache schema fragments by pointer.
type TypeWitness struct {
	// Type is the declared type with all pointer indirections removed.
	Type reflect.Type
	// Args holds the element witness for slices and arrays, and the key and
	// value witnesses for maps.
	Args []*TypeWitness
	// Nullable reports whether the declared type was a pointer.
	Nullable bool

	declared reflect.Type
	problem  error
}

var (
	witnesses sync.Map // reflect.Type -> *TypeWitness
	witnessMu sync.Mutex

	textMarshalerType = reflect.TypeFor[encoding.TextMarshaler]()
	jsonMarshalerType = reflect.TypeFor[json.Marshaler]()
)

// WitnessFor returns the witness of T. It fails with ErrUnrepresentableType
// when T, or a type reachable through its exported fields, cannot be
// described by a schema.
func WitnessFor[T any]() (*TypeWitness, error) {
	return WitnessOf(reflect.TypeFor[T]())
}

// WitnessOf is WitnessFor for an explicit type token.
func WitnessOf(t reflect.Type) (*TypeWitness, error) {
	if t == nil {
		return nil, errors.Mark(errors.New("nil type token"), ErrUnrepresentableType)
	}
	w := witnessOf(t)
	if w.problem != nil {
		return nil, w.problem
	}
	return w, nil
}

// witnessOf returns the cached witness of t without failing on
// unrepresentable types; the problem is recorded on the witness instead.
func witnessOf(t reflect.Type) *TypeWitness {
	if w, ok := witnesses.Load(t); ok {
		return w.(*TypeWitness)
	}

	witnessMu.Lock()
	defer witnessMu.Unlock()

	if w, ok := witnesses.Load(t); ok {
		return w.(*TypeWitness)
	}

	building := make(map[reflect.Type]*TypeWitness)
	w := buildWitness(t, building)
	for k, v := range building {
		witnesses.Store(k, v)
	}
	return w
}

func buildWitness(t reflect.Type, building map[reflect.Type]*TypeWitness) *TypeWitness {
	if w, ok := witnesses.Load(t); ok {
		return w.(*TypeWitness)
	}
	if w, ok := building[t]; ok {
		return w
	}

	w := &TypeWitness{declared: t}
	building[t] = w

	base := t
	for base.Kind() == reflect.Pointer {
		w.Nullable = true
		base = base.Elem()
	}
	w.Type = base

	//exhaustive:ignore
	switch base.Kind() {
	case reflect.Slice, reflect.Array:
		w.Args = []*TypeWitness{buildWitness(base.Elem(), building)}
	case reflect.Map:
		w.Args = []*TypeWitness{
			buildWitness(base.Key(), building),
			buildWitness(base.Elem(), building),
		}
	}

	w.problem = checkRepresentable(base, typeLabel(base), make(map[reflect.Type]bool))
	return w
}

// Equal reports whether two witnesses have the same identity.
func (w *TypeWitness) Equal(o *TypeWitness) bool {
	if w == o {
		return true
	}
	if w == nil || o == nil {
		return false
	}
	if w.Type != o.Type || w.Nullable != o.Nullable || len(w.Args) != len(o.Args) {
		return false
	}
	// Args are canonical witnesses, so pointer equality is identity.
	for i := range w.Args {
		if w.Args[i] != o.Args[i] {
			return false
		}
	}
	return true
}

// Declared returns the type exactly as declared, pointers included.
func (w *TypeWitness) Declared() reflect.Type { return w.declared }

// IsVoid reports whether the witness describes the unit type.
func (w *TypeWitness) IsVoid() bool { return w != nil && w.Type == voidType }

// String returns the declared type name, with a "?" suffix when nullable.
func (w *TypeWitness) String() string {
	if w == nil {
		return "<nil>"
	}
	s := w.Type.String()
	if w.Nullable {
		s += "?"
	}
	return s
}

// checkRepresentable walks t and its JSON-visible fields looking for types
// that have no schema. path names the offending field in the error.
func checkRepresentable(t reflect.Type, path string, seen map[reflect.Type]bool) error {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if seen[t] {
		return nil
	}
	seen[t] = true

	if implementsMarshaler(t) {
		return nil
	}

	//exhaustive:ignore
	switch t.Kind() {
	case reflect.Chan, reflect.Func, reflect.Complex64, reflect.Complex128, reflect.UnsafePointer, reflect.Invalid:
		return errors.Mark(
			errors.Newf("%s: %s has no schema representation", path, t),
			ErrUnrepresentableType,
		)
	case reflect.Slice, reflect.Array:
		return checkRepresentable(t.Elem(), path+"[]", seen)
	case reflect.Map:
		if !validMapKey(t.Key()) {
			return errors.Mark(
				errors.Newf("%s: map key %s is not a string, integer or text marshaler", path, t.Key()),
				ErrUnrepresentableType,
			)
		}
		return checkRepresentable(t.Elem(), path+"{}", seen)
	case reflect.Struct:
		for i := range t.NumField() {
			f := t.Field(i)
			if !f.IsExported() && !f.Anonymous {
				continue
			}
			name := jsonFieldName(f)
			if name == "-" {
				continue
			}
			fieldPath := path + "." + name
			if f.Anonymous && f.Tag.Get("json") == "" {
				fieldPath = path
			}
			if err := checkRepresentable(f.Type, fieldPath, seen); err != nil {
				return err
			}
		}
	}
	return nil
}

func implementsMarshaler(t reflect.Type) bool {
	pt := reflect.PointerTo(t)
	return t.Implements(textMarshalerType) || pt.Implements(textMarshalerType) ||
		t.Implements(jsonMarshalerType) || pt.Implements(jsonMarshalerType)
}

func validMapKey(k reflect.Type) bool {
	//exhaustive:ignore
	switch k.Kind() {
	case reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return k.Implements(textMarshalerType) || reflect.PointerTo(k).Implements(textMarshalerType)
	}
}

func typeLabel(t reflect.Type) string {
	if name := t.Name(); name != "" {
		if i := strings.IndexByte(name, '['); i > 0 {
			return name[:i]
		}
		return name
	}
	return t.String()
}
