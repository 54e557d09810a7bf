package schema

import "github.com/tordrt/dbsnap/internal/sqlvalue"

// Field is one column value of a record
type Field struct {
	Column string
	Value  sqlvalue.Value
}

// Record is one captured row, in column order
type Record struct {
	fields []Field
}

// NewRecord builds a record from parallel column and value slices
func NewRecord(columns []string, values []any) Record {
	r := Record{fields: make([]Field, 0, len(columns))}
	for i, c := range columns {
		var v any
		if i < len(values) {
			v = values[i]
		}
		r.Set(c, sqlvalue.Of(v))
	}
	return r
}

// Set assigns a column value, replacing an earlier one with the same name
func (r *Record) Set(column string, v sqlvalue.Value) {
	for i := range r.fields {
		if Key(r.fields[i].Column) == Key(column) {
			r.fields[i].Value = v
			return
		}
	}
	r.fields = append(r.fields, Field{Column: column, Value: v})
}

// Get returns the value of a column
func (r Record) Get(column string) (sqlvalue.Value, bool) {
	for _, f := range r.fields {
		if Key(f.Column) == Key(column) {
			return f.Value, true
		}
	}
	return sqlvalue.NullValue(), false
}

// Fields returns the values in capture order
func (r Record) Fields() []Field { return r.fields }

// Len returns the number of fields
func (r Record) Len() int { return len(r.fields) }
