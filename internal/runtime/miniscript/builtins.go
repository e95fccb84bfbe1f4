package miniscript

import (
	"fmt"
	"strings"

	"github.com/alonw0/scriptdbg/internal/runtime"
)

func registerBuiltins(root *env) {
	define := func(name string, fn func(in *interp, fr *frame, args []runtime.Value) runtime.Value) {
		root.define(name, builtinFunc{name: name, fn: fn})
	}

	define("len", func(in *interp, fr *frame, args []runtime.Value) runtime.Value {
		if len(args) != 1 {
			in.raise(fr, "TypeError", "len() takes exactly one argument")
			return nil
		}
		switch v := args[0].(type) {
		case string:
			return int64(len([]rune(v)))
		case []byte:
			return int64(len(v))
		case *runtime.List:
			return int64(len(v.Elems))
		case *runtime.Map:
			return int64(len(v.Keys))
		case *runtime.Set:
			return int64(len(v.Elems))
		default:
			in.raise(fr, "TypeError", fmt.Sprintf("object of type %s has no len()", runtime.TypeName(v)))
			return nil
		}
	})

	define("sum", func(in *interp, fr *frame, args []runtime.Value) runtime.Value {
		if len(args) != 1 {
			in.raise(fr, "TypeError", "sum() takes exactly one argument")
			return nil
		}
		lst, ok := args[0].(*runtime.List)
		if !ok {
			in.raise(fr, "TypeError", "sum() argument must be a list")
			return nil
		}
		var total float64
		allInt := true
		for _, e := range lst.Elems {
			f, ok := asFloat(e)
			if !ok {
				in.raise(fr, "TypeError", "sum() elements must be numbers")
				return nil
			}
			if !isInt(e) {
				allInt = false
			}
			total += f
		}
		return numResult(allInt, total)
	})

	define("range", func(in *interp, fr *frame, args []runtime.Value) runtime.Value {
		if len(args) != 1 {
			in.raise(fr, "TypeError", "range() takes exactly one argument")
			return nil
		}
		n, ok := asFloat(args[0])
		if !ok {
			in.raise(fr, "TypeError", "range() argument must be a number")
			return nil
		}
		l := &runtime.List{}
		for i := int64(0); i < int64(n); i++ {
			if i&0xFFFF == 0 {
				in.checkCancel()
			}
			l.Elems = append(l.Elems, i)
		}
		return l
	})

	define("append", func(in *interp, fr *frame, args []runtime.Value) runtime.Value {
		if len(args) != 2 {
			in.raise(fr, "TypeError", "append() takes exactly two arguments")
			return nil
		}
		lst, ok := args[0].(*runtime.List)
		if !ok {
			in.raise(fr, "TypeError", "append() first argument must be a list")
			return nil
		}
		lst.Elems = append(lst.Elems, args[1])
		return lst
	})

	define("remove_at", func(in *interp, fr *frame, args []runtime.Value) runtime.Value {
		if len(args) != 2 {
			in.raise(fr, "TypeError", "remove_at() takes exactly two arguments")
			return nil
		}
		lst, ok := args[0].(*runtime.List)
		if !ok {
			in.raise(fr, "TypeError", "remove_at() first argument must be a list")
			return nil
		}
		idxF, ok := asFloat(args[1])
		if !ok {
			in.raise(fr, "TypeError", "remove_at() second argument must be a number")
			return nil
		}
		idx := int(idxF)
		if idx < 0 || idx >= len(lst.Elems) {
			in.raise(fr, "IndexError", "remove_at() index out of range")
			return nil
		}
		lst.Elems = append(lst.Elems[:idx], lst.Elems[idx+1:]...)
		return lst
	})

	define("remove_value", func(in *interp, fr *frame, args []runtime.Value) runtime.Value {
		if len(args) != 2 {
			in.raise(fr, "TypeError", "remove_value() takes exactly two arguments")
			return nil
		}
		lst, ok := args[0].(*runtime.List)
		if !ok {
			in.raise(fr, "TypeError", "remove_value() first argument must be a list")
			return nil
		}
		for i, e := range lst.Elems {
			if valuesEqual(e, args[1]) {
				lst.Elems = append(lst.Elems[:i], lst.Elems[i+1:]...)
				break
			}
		}
		return lst
	})

	define("print", func(in *interp, fr *frame, args []runtime.Value) runtime.Value {
		parts := make([]string, len(args))
		for i, a := range args {
			parts[i] = display(a)
		}
		fmt.Fprintln(in.stdout, strings.Join(parts, " "))
		return nil
	})

	define("make_object", func(in *interp, fr *frame, args []runtime.Value) runtime.Value {
		if len(args) != 2 {
			in.raise(fr, "TypeError", "make_object() takes exactly two arguments")
			return nil
		}
		typeName, ok := args[0].(string)
		if !ok {
			in.raise(fr, "TypeError", "make_object() first argument must be a string")
			return nil
		}
		fields, ok := args[1].(*runtime.Map)
		if !ok {
			in.raise(fr, "TypeError", "make_object() second argument must be a map")
			return nil
		}
		obj := runtime.NewObject(typeName)
		for _, k := range fields.Keys {
			v, _ := fields.Get(k)
			obj.SetField(k, v)
		}
		return obj
	})

	// make_table/make_series/make_ndarray are debug-only constructors: a
	// miniscript program has no tabular-frame or numeric-array literal
	// syntax of its own, but the Deep Inspector's specialized renderers
	// for those families (inspectTable/inspectSeries/inspectNDArray) need
	// a real value to walk. These give fixture scripts a way to build one.
	define("make_table", func(in *interp, fr *frame, args []runtime.Value) runtime.Value {
		if len(args) != 2 {
			in.raise(fr, "TypeError", "make_table() takes exactly two arguments")
			return nil
		}
		cols, ok := args[0].(*runtime.List)
		if !ok {
			in.raise(fr, "TypeError", "make_table() first argument must be a list of column names")
			return nil
		}
		rows, ok := args[1].(*runtime.List)
		if !ok {
			in.raise(fr, "TypeError", "make_table() second argument must be a list of rows")
			return nil
		}
		t := &runtime.Table{Dtypes: map[string]string{}}
		for _, c := range cols.Elems {
			name, ok := c.(string)
			if !ok {
				in.raise(fr, "TypeError", "make_table() column names must be strings")
				return nil
			}
			t.Columns = append(t.Columns, name)
			t.Dtypes[name] = "float64"
		}
		for _, r := range rows.Elems {
			row, ok := r.(*runtime.List)
			if !ok {
				in.raise(fr, "TypeError", "make_table() rows must be lists")
				return nil
			}
			t.Rows = append(t.Rows, append([]runtime.Value(nil), row.Elems...))
		}
		return t
	})

	define("make_series", func(in *interp, fr *frame, args []runtime.Value) runtime.Value {
		if len(args) != 3 {
			in.raise(fr, "TypeError", "make_series() takes exactly three arguments")
			return nil
		}
		name, ok := args[0].(string)
		if !ok {
			in.raise(fr, "TypeError", "make_series() first argument must be a string name")
			return nil
		}
		dtype, ok := args[1].(string)
		if !ok {
			in.raise(fr, "TypeError", "make_series() second argument must be a string dtype")
			return nil
		}
		vals, ok := args[2].(*runtime.List)
		if !ok {
			in.raise(fr, "TypeError", "make_series() third argument must be a list of values")
			return nil
		}
		return &runtime.Series{Name: name, Dtype: dtype, Values: append([]runtime.Value(nil), vals.Elems...)}
	})

	define("make_ndarray", func(in *interp, fr *frame, args []runtime.Value) runtime.Value {
		if len(args) != 3 {
			in.raise(fr, "TypeError", "make_ndarray() takes exactly three arguments")
			return nil
		}
		shapeList, ok := args[0].(*runtime.List)
		if !ok {
			in.raise(fr, "TypeError", "make_ndarray() first argument must be a list shape")
			return nil
		}
		dtype, ok := args[1].(string)
		if !ok {
			in.raise(fr, "TypeError", "make_ndarray() second argument must be a string dtype")
			return nil
		}
		dataList, ok := args[2].(*runtime.List)
		if !ok {
			in.raise(fr, "TypeError", "make_ndarray() third argument must be a list of numbers")
			return nil
		}
		a := &runtime.NDArray{Dtype: dtype}
		for _, d := range shapeList.Elems {
			f, ok := asFloat(d)
			if !ok {
				in.raise(fr, "TypeError", "make_ndarray() shape entries must be numbers")
				return nil
			}
			a.Shape = append(a.Shape, int(f))
		}
		for _, v := range dataList.Elems {
			f, ok := asFloat(v)
			if !ok {
				in.raise(fr, "TypeError", "make_ndarray() data entries must be numbers")
				return nil
			}
			a.Data = append(a.Data, f)
		}
		return a
	})
}

// display renders a value the way print() shows it: plain text, not the
// structured form the formatter produces for the debugger wire protocol.
func display(v runtime.Value) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case int64:
		return fmt.Sprintf("%d", t)
	case float64:
		return fmt.Sprintf("%g", t)
	case *runtime.List:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = displayQuoted(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *runtime.Set:
		parts := make([]string, len(t.Elems))
		for i, e := range t.Elems {
			parts[i] = displayQuoted(e)
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *runtime.Map:
		parts := make([]string, 0, len(t.Keys))
		for _, k := range t.Keys {
			val, _ := t.Get(k)
			parts = append(parts, fmt.Sprintf("%s: %s", k, displayQuoted(val)))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *runtime.Object:
		parts := make([]string, len(t.FieldOrder))
		for i, k := range t.FieldOrder {
			parts[i] = fmt.Sprintf("%s: %s", k, displayQuoted(t.Fields[k]))
		}
		return fmt.Sprintf("%s{%s}", t.TypeName, strings.Join(parts, ", "))
	case runtime.Callable:
		return fmt.Sprintf("<function %s>", t.CallableName())
	default:
		return fmt.Sprintf("%v", t)
	}
}

// displayQuoted is display with string elements quoted, for nesting inside
// a collection's own rendering (mirrors how a host language's repr()
// differs from its str()).
func displayQuoted(v runtime.Value) string {
	if s, ok := v.(string); ok {
		return fmt.Sprintf("%q", s)
	}
	return display(v)
}
