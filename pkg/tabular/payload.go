// Package tabular defines the in-memory tabular payload shared by the
// processing pipeline and the warehouse sink.
package tabular

import "time"

// ColumnType is one of the semantic types a column may carry.
type ColumnType int

const (
	TypeString ColumnType = iota
	TypeInteger
	TypeFloating
	TypeBoolean
	TypeDate
	TypeTimestamp
	TypeNull
)

func (t ColumnType) String() string {
	switch t {
	case TypeString:
		return "string"
	case TypeInteger:
		return "integer"
	case TypeFloating:
		return "floating"
	case TypeBoolean:
		return "boolean"
	case TypeDate:
		return "date"
	case TypeTimestamp:
		return "timestamp"
	default:
		return "null"
	}
}

// Value is a single cell. A nil interface represents SQL NULL.
type Value = interface{}

// Row is a positional record; index i corresponds to Payload.Columns[i].
type Row []Value

// Payload is an ordered sequence of named columns and their rows. Column
// order is externally insignificant but must be preserved end-to-end for
// bulk-load formatting.
type Payload struct {
	Columns []string
	Rows    []Row
}

// NewPayload builds an empty payload with the given column order.
func NewPayload(columns ...string) *Payload {
	return &Payload{Columns: append([]string{}, columns...)}
}

// Empty reports whether the payload carries no rows.
func (p *Payload) Empty() bool {
	return p == nil || len(p.Rows) == 0
}

// ColumnIndex returns the position of name in p.Columns, or -1.
func (p *Payload) ColumnIndex(name string) int {
	for i, c := range p.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// AddRow appends a row built from a column->value map, filling any column
// missing from values with nil.
func (p *Payload) AddRow(values map[string]Value) {
	row := make(Row, len(p.Columns))
	for i, col := range p.Columns {
		row[i] = values[col]
	}
	p.Rows = append(p.Rows, row)
}

// Clone performs a shallow copy of the payload (new slices, same cell
// values), so that a step's transformation never mutates the caller's copy.
func (p *Payload) Clone() *Payload {
	out := &Payload{
		Columns: append([]string{}, p.Columns...),
		Rows:    make([]Row, len(p.Rows)),
	}
	for i, r := range p.Rows {
		nr := make(Row, len(r))
		copy(nr, r)
		out.Rows[i] = nr
	}
	return out
}

// ColumnSchema describes one column's declared type and nullability, as
// resolved from the warehouse catalog.
type ColumnSchema struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// Schema is the ordered set of a table's declared columns.
type Schema struct {
	Table   string
	Columns []ColumnSchema
}

// ColumnByName looks up a column definition, or returns (zero, false).
func (s *Schema) ColumnByName(name string) (ColumnSchema, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return ColumnSchema{}, false
}

// Names returns the schema's column names in declared order.
func (s *Schema) Names() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// Now is overridable in tests that need a fixed wall clock for
// row_loaded_date-style columns.
var Now = time.Now
