package runtime

// Table and Series are bundled stand-ins for a tabular-frame / numeric-
// series value family (the spec's "DataFrame"/"Series" recognition rule).
// miniscript has no literal syntax for these; its make_table/make_series/
// make_ndarray builtins build them, so the Deep Inspector's specialized-family
// renderers are exercised against real Go values, the same way they would be
// against a host numeric library's types in a richer runtime.
type Table struct {
	Columns []string
	Dtypes  map[string]string
	Rows    [][]Value
	Index   []Value
}

func (t *Table) TypeFamily() string { return "dataframe" }

type Series struct {
	Name   string
	Dtype  string
	Values []Value
}

func (s *Series) TypeFamily() string { return "series" }

// NDArray is the bundled stand-in for the numpy "ndarray" family.
type NDArray struct {
	Shape []int
	Dtype string
	Data  []float64
}

func (a *NDArray) TypeFamily() string { return "ndarray" }
