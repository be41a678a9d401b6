// Package state implements per-session reactive state with change detection.
//
// A state schema is an application struct. Each serialized field of the
// struct gets an explicit handle (Field) that components use to declare which
// fields they depend on. Mutations happen inside a bracket (Open/Commit or
// Update); on commit the serialized form of every field is compared with the
// snapshot taken at Open, and the components registered for the changed
// fields are notified.
//
// Field names follow msgpack rules: the `msgpack:"name"` tag when present,
// otherwise the Go field name. Fields tagged `msgpack:"-"` are not tracked.
package state

import (
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Field is a handle to one tracked field of a state schema.
//
// Handles are obtained from Schema.Field at startup and passed to component
// registration to declare reload dependencies:
//
//	var Fields = struct{ Count state.Field }{Count: Schema.Field("count")}
type Field struct {
	name   string
	schema *schemaInfo
}

// Name returns the serialized field name.
func (f Field) Name() string {
	return f.name
}

// IsZero reports whether f is an unset handle.
func (f Field) IsZero() bool {
	return f.schema == nil
}

// String implements fmt.Stringer.
func (f Field) String() string {
	if f.schema == nil {
		return "<nil field>"
	}
	return f.schema.typ.Name() + "." + f.name
}

type schemaInfo struct {
	typ    reflect.Type
	fields map[string][]int // serialized name -> field index path
}

// Schema describes a state struct S.
type Schema[S any] struct {
	info *schemaInfo
}

// NewSchema inspects S and returns its schema. It panics if S is not a struct
// type, since schemas are built at startup.
func NewSchema[S any]() *Schema[S] {
	typ := reflect.TypeOf((*S)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		panic(fmt.Sprintf("state: schema type %s is not a struct", typ))
	}
	info := &schemaInfo{typ: typ, fields: make(map[string][]int)}
	collectFields(typ, nil, info.fields)
	return &Schema[S]{info: info}
}

// Field returns the handle for the named field. It panics on unknown names so
// that typos surface when routes are registered, not at request time.
func (s *Schema[S]) Field(name string) Field {
	if _, ok := s.info.fields[name]; !ok {
		panic(fmt.Sprintf("state: %s has no field %q (known: %s)",
			s.info.typ, name, strings.Join(s.Fields(), ", ")))
	}
	return Field{name: name, schema: s.info}
}

// Has reports whether the schema tracks a field with the given name.
func (s *Schema[S]) Has(name string) bool {
	_, ok := s.info.fields[name]
	return ok
}

// Fields returns the tracked field names in sorted order.
func (s *Schema[S]) Fields() []string {
	names := make([]string, 0, len(s.info.fields))
	for name := range s.info.fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Owns reports whether f was created by this schema.
func (s *Schema[S]) Owns(f Field) bool {
	return f.schema == s.info
}

// collectFields walks exported fields the way msgpack encodes them: embedded
// structs without a name tag are inlined.
func collectFields(typ reflect.Type, prefix []int, out map[string][]int) {
	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("msgpack")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")

		index := make([]int, len(prefix)+1)
		copy(index, prefix)
		index[len(prefix)] = i

		if sf.Anonymous && name == "" && sf.Type.Kind() == reflect.Struct {
			collectFields(sf.Type, index, out)
			continue
		}
		if name == "" {
			name = sf.Name
		}
		out[name] = index
	}
}
