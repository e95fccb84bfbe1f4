// Package runtime defines the contract between the debugger core and an
// embedded script runtime: the value model the formatter walks, the frame
// view the dispatcher reads, and the four-event trace hook the tracing
// engine installs. Only this contract is in scope for the core; the
// runtime implementation itself (package miniscript) is a collaborator.
package runtime

import "math"

// Value is any value the embedded runtime can produce. Concrete Go values
// (bool, int64, float64, string, []byte) stand in for the corresponding
// scripting-language primitives; the composite kinds below cover
// collections and objects. nil stands in for the scripting language's null.
type Value interface{}

// List is an ordered sequence value.
type List struct {
	Elems []Value
}

// Map is an ordered string-keyed mapping value. Insertion order is
// preserved in Keys so dumps are deterministic and match declaration order.
type Map struct {
	Keys []string
	Vals map[string]Value
}

func NewMap() *Map {
	return &Map{Vals: make(map[string]Value)}
}

func (m *Map) Set(key string, v Value) {
	if _, exists := m.Vals[key]; !exists {
		m.Keys = append(m.Keys, key)
	}
	m.Vals[key] = v
}

func (m *Map) Get(key string) (Value, bool) {
	v, ok := m.Vals[key]
	return v, ok
}

// Set is an unordered-membership, insertion-ordered-for-display collection.
type Set struct {
	Elems []Value
}

// Function is a callable value; the formatter and inspector both treat it
// as a non-recursing leaf (methods are named, never invoked during display).
type Function struct {
	Name   string
	Params []string
}

// Object is a generic instance: a type name plus an ordered field map and a
// list of method names (functions bound to this type, not this instance).
type Object struct {
	TypeName   string
	FieldOrder []string
	Fields     map[string]Value
	Methods    []string
}

func NewObject(typeName string) *Object {
	return &Object{TypeName: typeName, Fields: make(map[string]Value)}
}

func (o *Object) SetField(name string, v Value) {
	if _, exists := o.Fields[name]; !exists {
		o.FieldOrder = append(o.FieldOrder, name)
	}
	o.Fields[name] = v
}

// Callable is implemented by runtime-specific function/closure values so
// the formatter can recognize them as "function" without importing the
// runtime implementation package.
type Callable interface {
	CallableName() string
}

// TypeFamily is implemented by values that should be recognized as one of
// the Deep Inspector's specialized type families instead of rendered as a
// generic object. Returns "" for no specialization.
type TypeFamily interface {
	TypeFamily() string
}

// TypeName returns the runtime type name used in formatted records,
// mirroring the naming a dynamically-typed scripting language would use.
func TypeName(v Value) string {
	switch t := v.(type) {
	case nil:
		return "NoneType"
	case bool:
		return "bool"
	case int64:
		return "int"
	case int:
		return "int"
	case float64:
		return "float"
	case string:
		return "str"
	case []byte:
		return "bytes"
	case *List:
		return "list"
	case *Map:
		return "dict"
	case *Set:
		return "set"
	case *Function:
		return "function"
	case *Object:
		if tf, ok := v.(TypeFamily); ok {
			if fam := tf.TypeFamily(); fam != "" {
				return familyTypeName(fam)
			}
		}
		return t.TypeName
	default:
		if _, ok := v.(Callable); ok {
			return "function"
		}
		if _, ok := v.(TypeFamily); ok {
			if fam := v.(TypeFamily).TypeFamily(); fam != "" {
				return familyTypeName(fam)
			}
		}
		return "object"
	}
}

func familyTypeName(fam string) string {
	switch fam {
	case "dataframe":
		return "DataFrame"
	case "series":
		return "Series"
	case "ndarray":
		return "ndarray"
	default:
		return fam
	}
}

// IsSpecial reports whether a float is non-finite, and which kind.
func IsSpecial(f float64) (special string, ok bool) {
	switch {
	case math.IsInf(f, 1):
		return "infinity", true
	case math.IsInf(f, -1):
		return "-infinity", true
	case math.IsNaN(f):
		return "nan", true
	default:
		return "", false
	}
}

// Identity returns an opaque, comparable token for cycle detection. Two
// distinct Go values that happen to be equal but are not the same
// reference must return different tokens; two references to the same
// composite value must return the same token.
func Identity(v Value) (any, bool) {
	switch p := v.(type) {
	case *List:
		return p, true
	case *Map:
		return p, true
	case *Set:
		return p, true
	case *Object:
		return p, true
	default:
		return nil, false
	}
}
