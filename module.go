package oapi

import (
	"reflect"

	"github.com/cockroachdb/errors"
)

// Module enriches the documentation of a route. Modules are applied once, at
// registration, in the order they were attached; they never take part in
// request handling.
type Module interface {
	Document(op *Operation)
}

// ModuleBinding pairs a module with the witness of its concrete type.
type ModuleBinding struct {
	Module  Module
	Witness *TypeWitness
}

// ModuleRegistry holds the module bindings of one route, in registration order.
type ModuleRegistry struct {
	bindings []ModuleBinding
}

// Register binds m to the witness of its concrete type. Nil modules and
// modules whose type has no schema representation are rejected.
func (mr *ModuleRegistry) Register(m Module) error {
	if m == nil {
		return errors.Mark(errors.New("nil module"), ErrInvalidModule)
	}
	t := reflect.TypeOf(m)
	if t.Kind() == reflect.Pointer && reflect.ValueOf(m).IsNil() {
		return errors.Mark(errors.Newf("nil %s module", t), ErrInvalidModule)
	}
	w, err := WitnessOf(t)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "module %s", t), ErrInvalidModule)
	}
	mr.bindings = append(mr.bindings, ModuleBinding{Module: m, Witness: w})
	return nil
}

// Bindings returns a copy of the registered bindings.
func (mr *ModuleRegistry) Bindings() []ModuleBinding {
	out := make([]ModuleBinding, len(mr.bindings))
	copy(out, mr.bindings)
	return out
}

// Len returns the number of bindings.
func (mr *ModuleRegistry) Len() int { return len(mr.bindings) }

// ModulesOf returns the modules of type M attached to d, in registration order.
func ModulesOf[M Module](d *RouteDescriptor) []M {
	want := witnessOf(reflect.TypeFor[M]())
	var out []M
	for _, b := range d.modules.bindings {
		m, ok := b.Module.(M)
		if !ok {
			continue
		}
		// Interface M matches any implementation; concrete M must match the
		// bound witness exactly.
		if want.Type.Kind() != reflect.Interface && !b.Witness.Equal(want) {
			continue
		}
		out = append(out, m)
	}
	return out
}
