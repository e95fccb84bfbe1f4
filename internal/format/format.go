// Package format implements the Value Formatter: a pure, bounded,
// cycle-safe function from an arbitrary runtime value to a structured
// record suitable for JSON transport over the framed IPC.
package format

import (
	"fmt"
	"strings"

	"github.com/alonw0/scriptdbg/internal/runtime"
)

// Record is the formatter's tagged-variant output. It is a plain map so it
// serializes directly to the wire protocol's JSON body without an
// intermediate struct per type family. Value records are built by this
// package and by internal/inspect, which extends them with attribute and
// type-family fields.
type Record map[string]any

// Options carries the formatter's configurable bounds (§4.1). Zero values
// are not valid; use DefaultOptions or config.Settings-derived values.
type Options struct {
	MaxDepth           int
	MaxCollectionItems int
	MaxStringLength    int
	MaxValueLength     int
}

func DefaultOptions() Options {
	return Options{MaxDepth: 2, MaxCollectionItems: 50, MaxStringLength: 200, MaxValueLength: 1000}
}

// identitySet tracks object identities seen on the current path from the
// root of one Format call. It is copied (not shared) before descending into
// each child so that two distinct references to the same leaf in different
// branches are never spuriously flagged as circular (§4.1, §9).
type identitySet map[any]struct{}

func (s identitySet) withAdded(id any) identitySet {
	next := make(identitySet, len(s)+1)
	for k := range s {
		next[k] = struct{}{}
	}
	next[id] = struct{}{}
	return next
}

// Format renders v into a bounded structured record. depth is the number of
// further levels of recursion permitted (routine dumps default to 2).
func Format(v runtime.Value, depth int, opts Options) Record {
	return format(v, depth, opts, identitySet{})
}

func format(v runtime.Value, depth int, opts Options, seen identitySet) Record {
	if id, ok := runtime.Identity(v); ok {
		if _, cycle := seen[id]; cycle {
			return Record{"type": runtime.TypeName(v), "value": "<circular reference>", "circular": true}
		}
		seen = seen.withAdded(id)
	}

	// Dispatch order matters: bool before int (bools are also ints in many
	// host languages), str/bytes before generic sequence, mapping before
	// generic iterable.
	switch t := v.(type) {
	case nil:
		return Record{"type": "NoneType", "value": "nil"}
	case bool:
		return Record{"type": "bool", "value": fmt.Sprintf("%v", t)}
	case int64:
		return Record{"type": "int", "value": fmt.Sprintf("%d", t)}
	case int:
		return Record{"type": "int", "value": fmt.Sprintf("%d", t)}
	case float64:
		return formatFloat(t, opts)
	case string:
		return formatString(t, opts)
	case []byte:
		return formatBytes(t, opts)
	case *runtime.List:
		return formatSeq(t.Elems, depth, opts, seen)
	case *runtime.Set:
		return formatSeq(t.Elems, depth, opts, seen)
	case *runtime.Map:
		return formatMap(t, depth, opts, seen)
	case *runtime.Object:
		return Record{"type": runtime.TypeName(t), "value": fmt.Sprintf("<%s object>", runtime.TypeName(t))}
	default:
		if _, ok := v.(runtime.Callable); ok {
			return Record{"type": "function", "value": fmt.Sprintf("<function %s>", runtime.TypeName(v))}
		}
		return formatFallback(v, opts)
	}
}

func formatFloat(f float64, opts Options) Record {
	if special, ok := runtime.IsSpecial(f); ok {
		return Record{"type": "float", "value": special, "special": special}
	}
	return Record{"type": "float", "value": fmt.Sprintf("%g", f)}
}

func formatString(s string, opts Options) Record {
	runes := []rune(s)
	r := Record{"type": "str", "length": len(runes)}
	display := s
	truncated := false
	if len(runes) > opts.MaxStringLength {
		display = string(runes[:opts.MaxStringLength]) + "..."
		truncated = true
	}
	r["value"] = truncateValueText(display, opts)
	if truncated {
		r["truncated"] = true
	}
	return r
}

func formatBytes(b []byte, opts Options) Record {
	r := Record{"type": "bytes", "length": len(b)}
	display := fmt.Sprintf("%x", b)
	truncated := false
	if len(display) > opts.MaxStringLength {
		display = display[:opts.MaxStringLength] + "..."
		truncated = true
	}
	r["value"] = display
	if truncated {
		r["truncated"] = true
	}
	return r
}

func truncateValueText(s string, opts Options) string {
	if len(s) <= opts.MaxValueLength {
		return s
	}
	return s[:opts.MaxValueLength] + "..."
}

func formatSeq(elems []runtime.Value, depth int, opts Options, seen identitySet) Record {
	r := Record{"type": "sequence", "length": len(elems)}
	if depth <= 0 {
		r["truncated"] = true
		r["value"] = fmt.Sprintf("<%d items>", len(elems))
		return r
	}
	n := len(elems)
	truncated := n > opts.MaxCollectionItems
	if truncated {
		n = opts.MaxCollectionItems
	}
	items := make([]Record, 0, n)
	for i := 0; i < n; i++ {
		items = append(items, format(elems[i], depth-1, opts, seen))
	}
	r["items"] = items
	r["value"] = fmt.Sprintf("<%d items>", len(elems))
	if truncated {
		r["truncated"] = true
	}
	return r
}

func formatMap(m *runtime.Map, depth int, opts Options, seen identitySet) Record {
	r := Record{"type": "dict", "length": len(m.Keys)}
	if depth <= 0 {
		r["truncated"] = true
		r["value"] = fmt.Sprintf("<%d entries>", len(m.Keys))
		return r
	}
	keys := m.Keys
	truncated := len(keys) > opts.MaxCollectionItems
	if truncated {
		keys = keys[:opts.MaxCollectionItems]
	}
	items := make(map[string]Record, len(keys))
	order := make([]string, 0, len(keys))
	for _, k := range keys {
		v, _ := m.Get(k)
		items[k] = format(v, depth-1, opts, seen)
		order = append(order, k)
	}
	r["items"] = items
	r["keys"] = order
	r["value"] = fmt.Sprintf("<%d entries>", len(m.Keys))
	if truncated {
		r["truncated"] = true
	}
	return r
}

func formatFallback(v runtime.Value, opts Options) Record {
	text := fmt.Sprintf("%v", v)
	r := Record{"type": runtime.TypeName(v), "value": truncateValueText(text, opts)}
	if strings.Contains(fmt.Sprintf("%T", v), "[]") {
		r["length"] = 0
	}
	return r
}
