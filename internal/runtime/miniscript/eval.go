package miniscript

import (
	"fmt"

	"github.com/alonw0/scriptdbg/internal/runtime"
)

// closure is a user-defined function value. Defaults are captured once at
// definition time (see makeClosure), so a mutable default value is shared
// across calls, as in the classic mutable-default-argument pitfall.
type closure struct {
	decl     *funcDecl
	defEnv   *env
	defaults []runtime.Value
}

func (c *closure) CallableName() string { return c.decl.Name }

// builtinFunc wraps a host-provided function so it can live in an env
// binding and be recognized as callable.
type builtinFunc struct {
	name string
	fn   func(in *interp, fr *frame, args []runtime.Value) runtime.Value
}

func (b builtinFunc) CallableName() string { return b.name }

func (in *interp) eval(e Expr, fr *frame) runtime.Value {
	switch ex := e.(type) {
	case *numberLit:
		if ex.IsInt {
			return ex.I
		}
		return ex.F
	case *stringLit:
		return ex.Value
	case *boolLit:
		return ex.Value
	case *nilLit:
		return nil
	case *identExpr:
		if v, ok := fr.local.get(ex.Name); ok {
			return v
		}
		in.raise(fr, "NameError", fmt.Sprintf("name %q is not defined", ex.Name))
		return nil
	case *listLit:
		l := &runtime.List{}
		for _, el := range ex.Elems {
			l.Elems = append(l.Elems, in.eval(el, fr))
		}
		return l
	case *mapLit:
		m := runtime.NewMap()
		for i, k := range ex.Keys {
			m.Set(k, in.eval(ex.Vals[i], fr))
		}
		return m
	case *indexExpr:
		target := in.eval(ex.Target, fr)
		idx := in.eval(ex.Index, fr)
		return in.getIndex(fr, target, idx)
	case *dotExpr:
		target := in.eval(ex.Target, fr)
		return in.getField(fr, target, ex.Name)
	case *callExpr:
		callee := in.eval(ex.Callee, fr)
		args := make([]runtime.Value, 0, len(ex.Args))
		for _, a := range ex.Args {
			args = append(args, in.eval(a, fr))
		}
		return in.call(fr, callee, args)
	case *unaryExpr:
		return in.evalUnary(ex, fr)
	case *binaryExpr:
		return in.evalBinary(ex, fr)
	default:
		in.raise(fr, "InternalError", fmt.Sprintf("unhandled expression %T", e))
		return nil
	}
}

func (in *interp) evalUnary(ex *unaryExpr, fr *frame) runtime.Value {
	v := in.eval(ex.Right, fr)
	switch ex.Op {
	case "-":
		switch n := v.(type) {
		case int64:
			return -n
		case float64:
			return -n
		}
		in.raise(fr, "TypeError", fmt.Sprintf("bad operand type for unary -: %s", runtime.TypeName(v)))
	case "not":
		return !truthy(v)
	}
	return nil
}

func (in *interp) evalBinary(ex *binaryExpr, fr *frame) runtime.Value {
	if ex.Op == "and" {
		l := in.eval(ex.Left, fr)
		if !truthy(l) {
			return l
		}
		return in.eval(ex.Right, fr)
	}
	if ex.Op == "or" {
		l := in.eval(ex.Left, fr)
		if truthy(l) {
			return l
		}
		return in.eval(ex.Right, fr)
	}
	l := in.eval(ex.Left, fr)
	r := in.eval(ex.Right, fr)
	switch ex.Op {
	case "==":
		return valuesEqual(l, r)
	case "!=":
		return !valuesEqual(l, r)
	}
	if ex.Op == "+" {
		if ls, ok := l.(string); ok {
			if rs, ok := r.(string); ok {
				return ls + rs
			}
		}
	}
	lf, lok := asFloat(l)
	rf, rok := asFloat(r)
	if !lok || !rok {
		in.raise(fr, "TypeError", fmt.Sprintf("unsupported operand types for %s: %s and %s", ex.Op, runtime.TypeName(l), runtime.TypeName(r)))
		return nil
	}
	bothInt := isInt(l) && isInt(r)
	switch ex.Op {
	case "+":
		return numResult(bothInt, lf+rf)
	case "-":
		return numResult(bothInt, lf-rf)
	case "*":
		return numResult(bothInt, lf*rf)
	case "/":
		if rf == 0 {
			in.raise(fr, "ZeroDivisionError", "division by zero")
			return nil
		}
		return numResult(bothInt, lf/rf)
	case "%":
		if rf == 0 {
			in.raise(fr, "ZeroDivisionError", "modulo by zero")
			return nil
		}
		return numResult(bothInt, float64(int64(lf)%int64(rf)))
	case "<":
		return lf < rf
	case "<=":
		return lf <= rf
	case ">":
		return lf > rf
	case ">=":
		return lf >= rf
	}
	in.raise(fr, "InternalError", "unhandled operator "+ex.Op)
	return nil
}

func isInt(v runtime.Value) bool {
	_, ok := v.(int64)
	return ok
}

func asFloat(v runtime.Value) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func numResult(asInt bool, f float64) runtime.Value {
	if asInt {
		return int64(f)
	}
	return f
}

func valuesEqual(a, b runtime.Value) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	if as, ok := a.(string); ok {
		bs, ok2 := b.(string)
		return ok2 && as == bs
	}
	if ab, ok := a.(bool); ok {
		bb, ok2 := b.(bool)
		return ok2 && ab == bb
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a == b
}

func (in *interp) getIndex(fr *frame, target, idx runtime.Value) runtime.Value {
	switch t := target.(type) {
	case *runtime.List:
		i, ok := asFloat(idx)
		if !ok {
			in.raise(fr, "TypeError", "list index must be a number")
			return nil
		}
		n := int(i)
		if n < 0 || n >= len(t.Elems) {
			in.raise(fr, "IndexError", "list index out of range")
			return nil
		}
		return t.Elems[n]
	case *runtime.Map:
		key, ok := idx.(string)
		if !ok {
			in.raise(fr, "TypeError", "map key must be a string")
			return nil
		}
		v, ok := t.Get(key)
		if !ok {
			in.raise(fr, "KeyError", fmt.Sprintf("key %q not found", key))
			return nil
		}
		return v
	case string:
		i, ok := asFloat(idx)
		if !ok {
			in.raise(fr, "TypeError", "string index must be a number")
			return nil
		}
		runes := []rune(t)
		n := int(i)
		if n < 0 || n >= len(runes) {
			in.raise(fr, "IndexError", "string index out of range")
			return nil
		}
		return string(runes[n])
	default:
		in.raise(fr, "TypeError", fmt.Sprintf("value of type %s is not subscriptable", runtime.TypeName(target)))
		return nil
	}
}

func (in *interp) setIndex(fr *frame, target, idx, val runtime.Value) {
	switch t := target.(type) {
	case *runtime.List:
		i, ok := asFloat(idx)
		if !ok {
			in.raise(fr, "TypeError", "list index must be a number")
			return
		}
		n := int(i)
		if n < 0 || n >= len(t.Elems) {
			in.raise(fr, "IndexError", "list index out of range")
			return
		}
		t.Elems[n] = val
	case *runtime.Map:
		key, ok := idx.(string)
		if !ok {
			in.raise(fr, "TypeError", "map key must be a string")
			return
		}
		t.Set(key, val)
	default:
		in.raise(fr, "TypeError", fmt.Sprintf("value of type %s does not support item assignment", runtime.TypeName(target)))
	}
}

func (in *interp) getField(fr *frame, target runtime.Value, name string) runtime.Value {
	switch t := target.(type) {
	case *runtime.Map:
		v, ok := t.Get(name)
		if !ok {
			in.raise(fr, "KeyError", fmt.Sprintf("key %q not found", name))
			return nil
		}
		return v
	case *runtime.Object:
		if v, ok := t.Fields[name]; ok {
			return v
		}
		in.raise(fr, "AttributeError", fmt.Sprintf("%s has no attribute %q", t.TypeName, name))
		return nil
	default:
		in.raise(fr, "AttributeError", fmt.Sprintf("value of type %s has no attribute %q", runtime.TypeName(target), name))
		return nil
	}
}

func (in *interp) setField(fr *frame, target runtime.Value, name string, val runtime.Value) {
	switch t := target.(type) {
	case *runtime.Map:
		t.Set(name, val)
	case *runtime.Object:
		t.SetField(name, val)
	default:
		in.raise(fr, "AttributeError", fmt.Sprintf("value of type %s does not support attribute assignment", runtime.TypeName(target)))
	}
}
