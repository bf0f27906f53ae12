package poolmem

import "github.com/dialscript/dialvm/api"

// Object is the ordered map from field name to Value plus a class-name
// string (spec §3). Field order is insertion order, matching the order
// NEW_OBJECT attaches "ClassName::method" fields in.
type Object struct {
	ClassName string
	order     []string
	fields    map[string]api.Value
}

func newObject(className string) *Object {
	return &Object{ClassName: className, fields: map[string]api.Value{}}
}

// Get returns the field's Value, or ok=false if unset.
func (o *Object) Get(name string) (api.Value, bool) {
	v, ok := o.fields[name]
	return v, ok
}

// Set assigns name, appending to field order the first time name is
// seen. Reassigning an existing field (e.g. overwriting a method field)
// keeps its original position, matching ordinary map-assignment
// semantics the spec's "reassigning a method field changes dispatch"
// note (spec §9) relies on.
func (o *Object) Set(name string, v api.Value) {
	if _, ok := o.fields[name]; !ok {
		o.order = append(o.order, name)
	}
	o.fields[name] = v
}

// FieldNames returns field names in insertion order, used by state
// dumps and disassembly-adjacent tooling.
func (o *Object) FieldNames() []string {
	out := make([]string, len(o.order))
	copy(out, o.order)
	return out
}
