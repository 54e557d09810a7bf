package schema

import (
	"fmt"

	"github.com/tordrt/dbsnap/internal/expr"
)

// Table represents a database table
type Table struct {
	Name        string
	Constraints []Constraint

	schema      *Schema
	alias       string
	columns     []*Column
	byName      map[string]*Column
	records     []Record
	statements  []*expr.Expression
	pkRelations RelationSet
	fkRelations RelationSet
	joins       RelationSet
}

// Column represents a table column
type Column struct {
	Ordinal         int
	Name            string
	Type            string
	Nullable        bool
	IsPrimaryKey    bool
	IsUnique        bool
	IsAutoIncrement bool
	DefaultValue    *string

	table *Table
}

// Table returns the owning table
func (c *Column) Table() *Table { return c.table }

func newTable(s *Schema, name, alias string) *Table {
	return &Table{
		Name:   name,
		schema: s,
		alias:  alias,
		byName: make(map[string]*Column),
	}
}

// Schema returns the owning schema
func (t *Table) Schema() *Schema { return t.schema }

// Alias returns the table's query alias. It never changes.
func (t *Table) Alias() string { return t.alias }

// AddColumn appends a column, or returns the existing one with that name
func (t *Table) AddColumn(c Column) *Column {
	if existing, ok := t.byName[Key(c.Name)]; ok {
		return existing
	}
	col := c
	col.table = t
	t.columns = append(t.columns, &col)
	t.byName[Key(c.Name)] = &col
	return &col
}

// Column looks a column up by name, case-insensitively
func (t *Table) Column(name string) (*Column, bool) {
	c, ok := t.byName[Key(name)]
	return c, ok
}

// Columns returns the columns in discovery order
func (t *Table) Columns() []*Column {
	out := make([]*Column, len(t.columns))
	copy(out, t.columns)
	return out
}

// ColumnNames returns the column names in discovery order
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, c := range t.columns {
		names[i] = c.Name
	}
	return names
}

// PrimaryKey returns the primary key column names in column order
func (t *Table) PrimaryKey() []string {
	var pk []string
	for _, c := range t.columns {
		if c.IsPrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}

// AddRecord appends a captured row
func (t *Table) AddRecord(r Record) {
	t.records = append(t.records, r)
}

// Records returns the captured rows
func (t *Table) Records() []Record { return t.records }

// AddStatement attaches a filter. Unbound expressions are bound to this
// table's alias; expressions already bound elsewhere are attached as is.
func (t *Table) AddStatement(e *expr.Expression) error {
	if e == nil || e.Empty() {
		return fmt.Errorf("table %s: empty filter expression", t.Name)
	}
	if !e.Bound() {
		if err := e.ApplyAlias(t.alias); err != nil {
			return fmt.Errorf("table %s: %w", t.Name, err)
		}
	}
	for _, s := range t.statements {
		if s == e {
			return nil
		}
	}
	t.statements = append(t.statements, e)
	return nil
}

// Statements returns the attached filters
func (t *Table) Statements() []*expr.Expression { return t.statements }

// AddPKRelation records a relation in which this table is the referenced side
func (t *Table) AddPKRelation(r *Relation) *Relation {
	got, _ := t.pkRelations.Add(r)
	return got
}

// AddFKRelation records a relation in which this table is the referencing side
func (t *Table) AddFKRelation(r *Relation) *Relation {
	got, _ := t.fkRelations.Add(r)
	return got
}

// AddJoin records an explicit join anchored at this table
func (t *Table) AddJoin(r *Relation) *Relation {
	got, _ := t.joins.Add(r)
	return got
}

// PKRelations returns relations where this table is referenced
func (t *Table) PKRelations() []*Relation { return t.pkRelations.All() }

// FKRelations returns relations where this table references another
func (t *Table) FKRelations() []*Relation { return t.fkRelations.All() }

// Joins returns explicitly registered joins
func (t *Table) Joins() []*Relation { return t.joins.All() }

// Relations returns the key relations of both directions, deduplicated
func (t *Table) Relations() []*Relation {
	var all RelationSet
	for _, r := range t.pkRelations.All() {
		all.Add(r)
	}
	for _, r := range t.fkRelations.All() {
		all.Add(r)
	}
	return all.All()
}
