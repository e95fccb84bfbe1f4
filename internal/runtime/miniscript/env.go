package miniscript

import "github.com/alonw0/scriptdbg/internal/runtime"

// env is a lexical scope: a set of name -> value bindings plus a parent for
// the enclosing scope. Insertion order is tracked so Locals()/Globals()
// dumps are stable and match declaration order.
type env struct {
	vars   map[string]runtime.Value
	order  []string
	parent *env
}

func newEnv(parent *env) *env {
	return &env{vars: make(map[string]runtime.Value), parent: parent}
}

func (e *env) get(name string) (runtime.Value, bool) {
	for cur := e; cur != nil; cur = cur.parent {
		if v, ok := cur.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

// define binds name in this scope specifically (used by let and by
// parameter binding), shadowing any outer binding of the same name.
func (e *env) define(name string, v runtime.Value) {
	if _, exists := e.vars[name]; !exists {
		e.order = append(e.order, name)
	}
	e.vars[name] = v
}

// assign mutates the nearest existing binding of name, walking outward.
// Reports whether a binding was found.
func (e *env) assign(name string, v runtime.Value) bool {
	for cur := e; cur != nil; cur = cur.parent {
		if _, ok := cur.vars[name]; ok {
			cur.vars[name] = v
			return true
		}
	}
	return false
}

// snapshot returns an ordered *runtime.Map of every binding visible from e,
// walking outward until stopAt (exclusive) or the root, letting inner
// scopes shadow outer ones.
// Shadowed outer names are not duplicated.
func (e *env) snapshot(stopAt *env) *runtime.Map {
	m := runtime.NewMap()
	seen := make(map[string]bool)
	for cur := e; cur != nil && cur != stopAt; cur = cur.parent {
		for _, name := range cur.order {
			if seen[name] {
				continue
			}
			seen[name] = true
			m.Set(name, cur.vars[name])
		}
	}
	return m
}
