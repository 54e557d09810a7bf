package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/tordrt/dbsnap/internal/expr"
	"github.com/tordrt/dbsnap/internal/schema"
)

// Plan is a build described in TOML:
//
//	schema = "public"
//	level = 2
//
//	[[tables]]
//	name = "address"
//
//	  [[tables.filters]]
//	  column = "id"
//	  op = "in"
//	  values = [1, 2]
//
//	  [[tables.joins]]
//	  column = "id"
//	  target_table = "customer_address"
//	  target_column = "address_id"
//	  kind = "left"
type Plan struct {
	Schema    string      `toml:"schema"`
	Level     *int        `toml:"level"`
	DDLOnly   bool        `toml:"ddl_only"`
	OutputDir string      `toml:"output_dir"`
	Tables    []PlanTable `toml:"tables"`
}

// PlanTable maps [[tables]]
type PlanTable struct {
	Name    string   `toml:"name"`
	Filters []Filter `toml:"filters"`
	Joins   []Join   `toml:"joins"`
}

// Filter is one predicate on a column. Or and Not filters are combined
// with it, in that order.
type Filter struct {
	Column string   `toml:"column"`
	Op     string   `toml:"op"`
	Value  any      `toml:"value"`
	Values []any    `toml:"values"`
	Low    any      `toml:"low"`
	High   any      `toml:"high"`
	Or     []Filter `toml:"or"`
	Not    []Filter `toml:"not"`
}

// Join is an explicit relation from the enclosing table's column
type Join struct {
	Column       string `toml:"column"`
	TargetTable  string `toml:"target_table"`
	TargetColumn string `toml:"target_column"`
	Kind         string `toml:"kind"`
}

// LoadPlan opens the file at path and parses it as a plan
func LoadPlan(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("plan: open file %q: %w", path, err)
	}
	defer f.Close()

	return ParsePlan(f)
}

// ParsePlan decodes and validates a plan
func ParsePlan(r io.Reader) (*Plan, error) {
	var p Plan
	md, err := toml.NewDecoder(r).Decode(&p)
	if err != nil {
		return nil, fmt.Errorf("plan: decode error: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("plan: unknown key %q", undecoded[0].String())
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Plan) validate() error {
	if p.Level != nil && *p.Level < 0 {
		return fmt.Errorf("plan: level must not be negative")
	}
	if len(p.Tables) == 0 {
		return fmt.Errorf("plan: no tables")
	}
	for i, t := range p.Tables {
		if strings.TrimSpace(t.Name) == "" {
			return fmt.Errorf("plan: table %d has no name", i+1)
		}
		for _, f := range t.Filters {
			if _, err := f.Expression(); err != nil {
				return fmt.Errorf("plan: table %q: %w", t.Name, err)
			}
		}
		for _, j := range t.Joins {
			if _, err := j.Relation(t.Name); err != nil {
				return fmt.Errorf("plan: table %q: %w", t.Name, err)
			}
		}
	}
	return nil
}

// Expression builds a fresh, unbound expression for the filter
func (f Filter) Expression() (*expr.Expression, error) {
	if strings.TrimSpace(f.Column) == "" {
		return nil, fmt.Errorf("filter has no column")
	}

	e := expr.ForColumn(f.Column)
	switch strings.ToLower(strings.TrimSpace(f.Op)) {
	case "", "eq", "=":
		e.Equals(f.Value)
	case "ne", "<>", "!=":
		e.NotEquals(f.Value)
	case "gt", ">":
		e.GreaterThan(f.Value)
	case "ge", ">=":
		e.GreaterOrEqual(f.Value)
	case "lt", "<":
		e.LessThan(f.Value)
	case "le", "<=":
		e.LessOrEqual(f.Value)
	case "like":
		e.Like(f.Value)
	case "in":
		e.In(f.Values...)
	case "between":
		e.Between(f.Low, f.High)
	case "is_null":
		e.Equals(nil)
	default:
		return nil, fmt.Errorf("filter on %s: unknown operator %q", f.Column, f.Op)
	}

	for _, sub := range f.Or {
		other, err := sub.Expression()
		if err != nil {
			return nil, err
		}
		e.Or(other)
	}
	for _, sub := range f.Not {
		other, err := sub.Expression()
		if err != nil {
			return nil, err
		}
		e.Not(other)
	}
	return e, nil
}

// Relation builds the relation from table's column to the join target
func (j Join) Relation(table string) (*schema.Relation, error) {
	if j.Column == "" || j.TargetTable == "" || j.TargetColumn == "" {
		return nil, fmt.Errorf("join needs column, target_table and target_column")
	}
	kind, err := schema.ParseJoinKind(j.Kind)
	if err != nil {
		return nil, err
	}
	rel := schema.NewRelation(table, j.Column, j.TargetTable, j.TargetColumn)
	rel.Kind = kind
	return rel, nil
}
