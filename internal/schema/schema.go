// Package schema is the in-memory model of a reverse-engineered database
// slice: tables with their columns, key relations, filter statements and
// captured records.
//
// A Schema owns its tables; relations are shared by the two tables they
// connect. Once returned from a build a Schema should be treated as
// read-only.
package schema

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Schema represents a discovered database schema
type Schema struct {
	Name        string
	Dialect     string
	BuildTime   time.Duration
	GeneratedAt time.Time

	tables map[string]*Table
	order  []*Table
}

// New creates an empty schema
func New(name, dialect string) *Schema {
	return &Schema{
		Name:    name,
		Dialect: dialect,
		tables:  make(map[string]*Table),
	}
}

// AddTable returns the table registered under name, creating it (and
// assigning its alias) when absent. The bool reports creation.
func (s *Schema) AddTable(name string) (*Table, bool) {
	key := Key(name)
	if t, ok := s.tables[key]; ok {
		return t, false
	}
	t := newTable(s, name, fmt.Sprintf("t%d", len(s.order)+1))
	s.tables[key] = t
	s.order = append(s.order, t)
	return t, true
}

// Table looks a table up by name, case-insensitively
func (s *Schema) Table(name string) (*Table, bool) {
	t, ok := s.tables[Key(name)]
	return t, ok
}

// TableByAlias looks a table up by its alias
func (s *Schema) TableByAlias(alias string) (*Table, bool) {
	for _, t := range s.order {
		if t.alias == alias {
			return t, true
		}
	}
	return nil, false
}

// Tables returns the tables in discovery order
func (s *Schema) Tables() []*Table {
	out := make([]*Table, len(s.order))
	copy(out, s.order)
	return out
}

// SortedTables returns the tables in natural (name) order
func (s *Schema) SortedTables() []*Table {
	out := s.Tables()
	sort.SliceStable(out, func(i, j int) bool {
		return Key(out[i].Name) < Key(out[j].Name)
	})
	return out
}

// Len returns the number of tables
func (s *Schema) Len() int { return len(s.order) }

// RecordCount returns the number of records across all tables
func (s *Schema) RecordCount() int {
	n := 0
	for _, t := range s.order {
		n += len(t.records)
	}
	return n
}

// Key normalizes a table or column name for lookups
func Key(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
