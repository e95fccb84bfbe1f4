// Package inspect implements the Deep Inspector: an extension of the Value
// Formatter that additionally walks an object's attribute surface and
// emits specialized records for recognized type families (tabular frames,
// numeric series, n-dimensional arrays).
package inspect

import (
	"fmt"
	"math"
	"sort"

	"github.com/dustin/go-humanize"

	"github.com/alonw0/scriptdbg/internal/format"
	"github.com/alonw0/scriptdbg/internal/runtime"
)

// Options extends format.Options with the inspector's own attribute-walk
// depth bound (default 10, per the original implementation this system is
// modeled on).
type Options struct {
	format.Options
	MaxAttrDepth int
}

func DefaultOptions() Options {
	return Options{Options: format.DefaultOptions(), MaxAttrDepth: 10}
}

const maxMethods = 20

// Inspect extends format.Format with attribute/method enumeration and
// specialized type-family records. It never panics or returns an error to
// its caller: any failure collecting a specialized field simply omits that
// field and leaves the rest of the record intact (§4.2).
func Inspect(v runtime.Value, opts Options) format.Record {
	if fam, ok := v.(runtime.TypeFamily); ok {
		switch fam.TypeFamily() {
		case "dataframe":
			if t, ok := v.(*runtime.Table); ok {
				return inspectTable(t, opts)
			}
		case "series":
			if s, ok := v.(*runtime.Series); ok {
				return inspectSeries(s, opts)
			}
		case "ndarray":
			if a, ok := v.(*runtime.NDArray); ok {
				return inspectNDArray(a, opts)
			}
		}
	}
	if obj, ok := v.(*runtime.Object); ok {
		return inspectObject(obj, opts)
	}
	return format.Format(v, opts.MaxAttrDepth, opts.Options)
}

func inspectObject(obj *runtime.Object, opts Options) format.Record {
	r := format.Record{"type": obj.TypeName, "value": fmt.Sprintf("<%s object>", obj.TypeName)}
	attrs := format.Record{}
	for _, name := range obj.FieldOrder {
		if len(name) == 0 || name[0] == '_' {
			continue
		}
		v := obj.Fields[name]
		if _, callable := v.(runtime.Callable); callable {
			continue
		}
		childDepth := opts.MaxAttrDepth - 1
		attrs[name] = format.Format(v, childDepth, opts.Options)
	}
	r["attributes"] = attrs

	var methods []string
	for _, name := range obj.Methods {
		methods = append(methods, name)
	}
	for name, v := range obj.Fields {
		if _, callable := v.(runtime.Callable); callable {
			methods = append(methods, name)
		}
	}
	sort.Strings(methods)
	if len(methods) > maxMethods {
		methods = methods[:maxMethods]
	}
	r["methods"] = methods
	return r
}

func inspectTable(t *runtime.Table, opts Options) (r format.Record) {
	r = format.Record{"type": "DataFrame", "value": "<DataFrame>"}
	defer func() { recover() }() // best-effort: a failing field is simply absent

	rows := len(t.Rows)
	cols := len(t.Columns)
	r["shape"] = []int{rows, cols}
	r["row_count"] = rows
	r["column_count"] = cols

	func() {
		defer func() { recover() }()
		var columns []format.Record
		for ci, name := range t.Columns {
			col := format.Record{"name": name, "dtype": t.Dtypes[name]}
			var samples []format.Record
			for ri := 0; ri < rows && len(samples) < 3; ri++ {
				if ci < len(t.Rows[ri]) && t.Rows[ri][ci] != nil {
					samples = append(samples, format.Format(t.Rows[ri][ci], 1, opts.Options))
				}
			}
			col["samples"] = samples
			columns = append(columns, col)
		}
		r["columns"] = columns
	}()

	func() {
		defer func() { recover() }()
		r["index"] = format.Record{"type": "range", "dtype": "int"}
	}()

	func() {
		defer func() { recover() }()
		r["memory_footprint"] = humanize.Bytes(estimateTableBytes(t))
	}()

	func() {
		defer func() { recover() }()
		previewRows := min(5, rows)
		previewCols := min(10, cols)
		var preview []format.Record
		for ri := 0; ri < previewRows; ri++ {
			row := format.Record{}
			for ci := 0; ci < previewCols; ci++ {
				row[t.Columns[ci]] = format.Format(t.Rows[ri][ci], 1, opts.Options)
			}
			preview = append(preview, row)
		}
		r["preview"] = preview
	}()

	return r
}

func inspectSeries(s *runtime.Series, opts Options) (r format.Record) {
	r = format.Record{"type": "Series", "value": "<Series>", "length": len(s.Values), "dtype": s.Dtype, "name": s.Name}
	defer func() { recover() }()

	if isNumericDtype(s.Dtype) {
		func() {
			defer func() { recover() }()
			if stats, ok := numericStats(s.Values); ok {
				r["stats"] = stats
			}
		}()
	}

	func() {
		defer func() { recover() }()
		counts := valueCounts(s.Values)
		if len(counts) > 0 && len(counts) < 20 {
			r["histogram"] = counts
		}
	}()

	func() {
		defer func() { recover() }()
		n := min(5, len(s.Values))
		var head []format.Record
		for i := 0; i < n; i++ {
			head = append(head, format.Format(s.Values[i], 1, opts.Options))
		}
		r["head"] = head
	}()

	return r
}

func inspectNDArray(a *runtime.NDArray, opts Options) (r format.Record) {
	size := 1
	for _, d := range a.Shape {
		size *= d
	}
	r = format.Record{
		"type":  "ndarray",
		"value": "<ndarray>",
		"shape": a.Shape,
		"dtype": a.Dtype,
		"rank":  len(a.Shape),
		"size":  size,
	}
	defer func() { recover() }()

	func() {
		defer func() { recover() }()
		r["byte_size"] = size * 8
	}()

	func() {
		defer func() { recover() }()
		floats := make([]runtime.Value, len(a.Data))
		for i, f := range a.Data {
			floats[i] = f
		}
		if stats, ok := numericStats(floats); ok {
			r["stats"] = stats
		}
	}()

	func() {
		defer func() { recover() }()
		n := min(10, len(a.Data))
		preview := make([]float64, n)
		copy(preview, a.Data[:n])
		r["preview"] = preview
	}()

	return r
}

func isNumericDtype(dtype string) bool {
	switch dtype {
	case "int", "int64", "uint", "uint64", "float", "float64", "complex":
		return true
	default:
		return false
	}
}

func numericStats(values []runtime.Value) (format.Record, bool) {
	var nums []float64
	for _, v := range values {
		switch n := v.(type) {
		case int64:
			nums = append(nums, float64(n))
		case float64:
			nums = append(nums, n)
		}
	}
	if len(nums) == 0 {
		return nil, false
	}
	min, max, sum := nums[0], nums[0], 0.0
	for _, n := range nums {
		if n < min {
			min = n
		}
		if n > max {
			max = n
		}
		sum += n
	}
	mean := sum / float64(len(nums))
	var variance float64
	for _, n := range nums {
		variance += (n - mean) * (n - mean)
	}
	variance /= float64(len(nums))
	return format.Record{"min": min, "max": max, "mean": mean, "std": math.Sqrt(variance)}, true
}

func valueCounts(values []runtime.Value) map[string]int {
	counts := make(map[string]int)
	for _, v := range values {
		counts[fmt.Sprintf("%v", v)]++
	}
	return counts
}

func estimateTableBytes(t *runtime.Table) uint64 {
	return uint64(len(t.Rows) * len(t.Columns) * 8)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
