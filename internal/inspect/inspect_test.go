package inspect

import (
	"fmt"
	"testing"

	"github.com/alonw0/scriptdbg/internal/format"
	"github.com/alonw0/scriptdbg/internal/runtime"
)

func TestInspectObjectWalksAttributesSkippingUnderscoreAndCallables(t *testing.T) {
	obj := runtime.NewObject("Point")
	obj.SetField("x", int64(1))
	obj.SetField("y", int64(2))
	obj.SetField("_private", "hidden")
	obj.SetField("move", callableStub{name: "move"})

	r := Inspect(obj, DefaultOptions())
	if r["type"] != "Point" {
		t.Fatalf("expected type Point, got %+v", r)
	}
	attrs, ok := r["attributes"].(format.Record)
	if !ok {
		t.Fatalf("expected an attributes record, got %+v", r)
	}
	if _, ok := attrs["x"]; !ok {
		t.Fatalf("expected x in attributes, got %+v", attrs)
	}
	if _, ok := attrs["y"]; !ok {
		t.Fatalf("expected y in attributes, got %+v", attrs)
	}
	if _, ok := attrs["_private"]; ok {
		t.Fatalf("did not expect underscore-prefixed field in attributes, got %+v", attrs)
	}
	if _, ok := attrs["move"]; ok {
		t.Fatalf("did not expect a callable field in attributes, got %+v", attrs)
	}
	methods, ok := r["methods"].([]string)
	if !ok {
		t.Fatalf("expected a methods slice, got %+v", r)
	}
	found := false
	for _, m := range methods {
		if m == "move" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected 'move' among methods, got %+v", methods)
	}
}

func TestInspectObjectCapsMethodsAtMax(t *testing.T) {
	obj := runtime.NewObject("Busy")
	for i := 0; i < maxMethods+10; i++ {
		obj.Methods = append(obj.Methods, fmt.Sprintf("m%02d", i))
	}
	r := Inspect(obj, DefaultOptions())
	methods, ok := r["methods"].([]string)
	if !ok {
		t.Fatalf("expected a methods slice, got %+v", r)
	}
	if len(methods) != maxMethods {
		t.Fatalf("expected methods capped at %d, got %d", maxMethods, len(methods))
	}
}

type callableStub struct{ name string }

func (c callableStub) CallableName() string { return c.name }

func TestInspectDispatchesTableToSpecializedRenderer(t *testing.T) {
	tbl := &runtime.Table{
		Columns: []string{"a", "b"},
		Dtypes:  map[string]string{"a": "int64", "b": "int64"},
		Rows: [][]runtime.Value{
			{int64(1), int64(2)},
			{int64(3), int64(4)},
		},
	}
	r := Inspect(tbl, DefaultOptions())
	if r["type"] != "DataFrame" {
		t.Fatalf("expected type DataFrame, got %+v", r)
	}
	if r["row_count"] != 2 || r["column_count"] != 2 {
		t.Fatalf("expected a 2x2 shape, got %+v", r)
	}
	cols, ok := r["columns"].([]format.Record)
	if !ok || len(cols) != 2 {
		t.Fatalf("expected two column records, got %+v", r)
	}
	if cols[0]["name"] != "a" {
		t.Fatalf("expected first column named 'a', got %+v", cols[0])
	}
	if _, ok := r["memory_footprint"]; !ok {
		t.Fatalf("expected a memory_footprint field, got %+v", r)
	}
	preview, ok := r["preview"].([]format.Record)
	if !ok || len(preview) != 2 {
		t.Fatalf("expected a two-row preview, got %+v", r)
	}
}

func TestInspectDispatchesSeriesToSpecializedRenderer(t *testing.T) {
	s := &runtime.Series{
		Name:   "ages",
		Dtype:  "int64",
		Values: []runtime.Value{int64(10), int64(20), int64(30)},
	}
	r := Inspect(s, DefaultOptions())
	if r["type"] != "Series" {
		t.Fatalf("expected type Series, got %+v", r)
	}
	if r["length"] != 3 || r["name"] != "ages" {
		t.Fatalf("expected length 3 and name 'ages', got %+v", r)
	}
	stats, ok := r["stats"].(format.Record)
	if !ok {
		t.Fatalf("expected numeric stats for an int64 series, got %+v", r)
	}
	if stats["mean"] != 20.0 {
		t.Fatalf("expected mean 20, got %+v", stats)
	}
	head, ok := r["head"].([]format.Record)
	if !ok || len(head) != 3 {
		t.Fatalf("expected a 3-item head sample, got %+v", r)
	}
}

func TestInspectDispatchesNDArrayToSpecializedRenderer(t *testing.T) {
	a := &runtime.NDArray{
		Shape: []int{2, 2},
		Dtype: "float64",
		Data:  []float64{1, 2, 3, 4},
	}
	r := Inspect(a, DefaultOptions())
	if r["type"] != "ndarray" {
		t.Fatalf("expected type ndarray, got %+v", r)
	}
	if r["rank"] != 2 || r["size"] != 4 {
		t.Fatalf("expected rank 2 and size 4, got %+v", r)
	}
	if r["byte_size"] != 32 {
		t.Fatalf("expected byte_size 32 (4 elements * 8 bytes), got %+v", r)
	}
	stats, ok := r["stats"].(format.Record)
	if !ok {
		t.Fatalf("expected numeric stats for the array data, got %+v", r)
	}
	if stats["min"] != 1.0 || stats["max"] != 4.0 {
		t.Fatalf("expected min 1 and max 4, got %+v", stats)
	}
}

func TestInspectFallsBackToFormatForPlainValues(t *testing.T) {
	r := Inspect(int64(42), DefaultOptions())
	if r["type"] != "int" || r["value"] != "42" {
		t.Fatalf("expected a plain int format record, got %+v", r)
	}
}
