package format

import (
	"math"
	"testing"

	"github.com/alonw0/scriptdbg/internal/runtime"
)

func TestFormatSelfReferentialMapIsMarkedCircular(t *testing.T) {
	m := runtime.NewMap()
	m.Set("self", m)

	r := Format(m, 5, DefaultOptions())
	items, ok := r["items"].(map[string]Record)
	if !ok {
		t.Fatalf("expected items map, got %+v", r)
	}
	self, ok := items["self"]
	if !ok {
		t.Fatalf("expected a 'self' entry, got %+v", items)
	}
	if self["circular"] != true {
		t.Fatalf("expected self-reference to be flagged circular, got %+v", self)
	}
}

func TestFormatSharedLeafAcrossBranchesIsNotCircular(t *testing.T) {
	leaf := runtime.NewMap()
	leaf.Set("n", int64(1))

	branchA := &runtime.List{Elems: []runtime.Value{leaf}}
	branchB := &runtime.List{Elems: []runtime.Value{leaf}}
	root := &runtime.List{Elems: []runtime.Value{branchA, branchB}}

	r := Format(root, 5, DefaultOptions())
	items, ok := r["items"].([]Record)
	if !ok || len(items) != 2 {
		t.Fatalf("expected two branch items, got %+v", r)
	}
	for i, branch := range items {
		branchItems, ok := branch["items"].([]Record)
		if !ok || len(branchItems) != 1 {
			t.Fatalf("branch %d: expected one leaf item, got %+v", i, branch)
		}
		if branchItems[0]["circular"] == true {
			t.Fatalf("branch %d: shared leaf across distinct branches wrongly flagged circular: %+v", i, branchItems[0])
		}
	}
}

func TestFormatCollectionTruncatesAtMaxCollectionItems(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxCollectionItems = 3
	lst := &runtime.List{}
	for i := 0; i < 10; i++ {
		lst.Elems = append(lst.Elems, int64(i))
	}

	r := Format(lst, 2, opts)
	if r["truncated"] != true {
		t.Fatalf("expected truncated flag, got %+v", r)
	}
	items, ok := r["items"].([]Record)
	if !ok || len(items) != 3 {
		t.Fatalf("expected items capped to 3, got %+v", r)
	}
	if r["length"] != 10 {
		t.Fatalf("expected length to report the true element count, got %+v", r["length"])
	}
}

func TestFormatStringTruncatesAtMaxStringLength(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxStringLength = 4
	r := Format("hello world", 2, opts)
	if r["truncated"] != true {
		t.Fatalf("expected truncated flag, got %+v", r)
	}
	if r["value"] != "hell..." {
		t.Fatalf("expected truncated value 'hell...', got %+v", r["value"])
	}
	if r["length"] != 11 {
		t.Fatalf("expected length to be the untruncated rune count, got %+v", r["length"])
	}
}

func TestFormatDepthLimitStopsDescentIntoNestedCollections(t *testing.T) {
	inner := &runtime.List{Elems: []runtime.Value{int64(1), int64(2)}}
	outer := &runtime.List{Elems: []runtime.Value{inner}}

	r := Format(outer, 0, DefaultOptions())
	if r["truncated"] != true {
		t.Fatalf("expected the outer collection itself to be truncated at depth 0, got %+v", r)
	}
	if _, hasItems := r["items"]; hasItems {
		t.Fatalf("expected no items at depth 0, got %+v", r)
	}
}

func TestFormatFloatSpecialValues(t *testing.T) {
	cases := []struct {
		name string
		in   float64
		want string
	}{
		{"positive infinity", math.Inf(1), "infinity"},
		{"negative infinity", math.Inf(-1), "-infinity"},
		{"nan", math.NaN(), "nan"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := Format(c.in, 2, DefaultOptions())
			if r["special"] != c.want {
				t.Fatalf("expected special=%q, got %+v", c.want, r)
			}
			if r["value"] != c.want {
				t.Fatalf("expected value=%q, got %+v", c.want, r)
			}
		})
	}
}

func TestFormatOrdinaryFloatHasNoSpecialField(t *testing.T) {
	r := Format(3.5, 2, DefaultOptions())
	if _, ok := r["special"]; ok {
		t.Fatalf("did not expect a special field for an ordinary float, got %+v", r)
	}
	if r["value"] != "3.5" {
		t.Fatalf("expected value '3.5', got %+v", r["value"])
	}
}
