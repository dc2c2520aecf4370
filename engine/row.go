package engine

import (
	"pglue/codec"
	"pglue/wire"
)

// Row is one decoded result row. Values are addressable by column name
// (map lookup) or by position (declared order), per spec §4.3's row_ctor.
// Column name collisions: the last occurrence wins for name lookup; all
// values remain reachable positionally.
type Row struct {
	names  []string
	values []any
}

// NewRow builds a Row directly from column names and values, letting
// callers (tests, or code fabricating synthetic results) construct one
// without a wire round trip. len(names) must equal len(values).
func NewRow(names []string, values []any) *Row {
	return &Row{names: names, values: values}
}

// Get returns the value of the last column named name, and whether that
// column was present at all.
func (r *Row) Get(name string) (any, bool) {
	for i := len(r.names) - 1; i >= 0; i-- {
		if r.names[i] == name {
			return r.values[i], true
		}
	}
	return nil, false
}

// At returns the value at positional index i (0-based, declared order).
func (r *Row) At(i int) any { return r.values[i] }

// Len returns the number of columns.
func (r *Row) Len() int { return len(r.values) }

// Columns returns the declared column names, in order, duplicates intact.
func (r *Row) Columns() []string { return r.names }

// Values returns all column values in declared order.
func (r *Row) Values() []any { return r.values }

// Map returns the row as a name->value map (last-wins on duplicate names).
func (r *Row) Map() map[string]any {
	m := make(map[string]any, len(r.names))
	for i, n := range r.names {
		m[n] = r.values[i]
	}
	return m
}

// rowCtor builds Rows from raw DataRow byte columns using a fixed column
// shape (from RowDescription), matching a single
// generated constructor's job in the spec's JIT-row-constructor design
// note — here just an array of (name, oid) pairs walked at decode time.
type rowCtor struct {
	columns  []wire.ColumnDescription
	registry *codec.Registry
}

func newRowCtor(columns []wire.ColumnDescription, registry *codec.Registry) *rowCtor {
	return &rowCtor{columns: columns, registry: registry}
}

func (rc *rowCtor) build(dr *wire.DataRow) (*Row, error) {
	row := &Row{
		names:  make([]string, len(rc.columns)),
		values: make([]any, len(rc.columns)),
	}
	for i, col := range rc.columns {
		row.names[i] = col.Name
		var raw []byte
		var isNull bool
		if i < len(dr.Values) {
			raw = dr.Values[i]
			isNull = raw == nil
		} else {
			isNull = true
		}
		v, err := rc.registry.Parse(col.DataTypeOID, raw, isNull)
		if err != nil {
			return nil, err
		}
		row.values[i] = v
	}
	return row, nil
}
