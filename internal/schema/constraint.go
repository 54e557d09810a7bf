package schema

import "strings"

// ConstraintKind identifies a table-level constraint
type ConstraintKind string

const (
	PrimaryKeyConstraint ConstraintKind = "PRIMARY KEY"
	UniqueConstraint     ConstraintKind = "UNIQUE"
	CheckConstraint      ConstraintKind = "CHECK"
)

// Constraint is a table-level constraint. Check constraints carry their
// full clause in Expression; the others list Columns.
type Constraint struct {
	Kind       ConstraintKind
	Columns    []string
	Expression string
}

// HasConstraint reports whether a table-level constraint of kind exists
func (t *Table) HasConstraint(kind ConstraintKind) bool {
	for _, c := range t.Constraints {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

// NormalizeConstraints splits key information into column flags and
// table-level constraints. A single-column primary key or unique key stays
// a column flag; composite ones, and every check, become table constraints.
func (t *Table) NormalizeConstraints(uniqueKeys [][]string, checks []string) {
	t.Constraints = nil

	if pk := t.PrimaryKey(); len(pk) > 1 {
		t.Constraints = append(t.Constraints, Constraint{Kind: PrimaryKeyConstraint, Columns: pk})
	}

	for _, cols := range uniqueKeys {
		switch len(cols) {
		case 0:
			continue
		case 1:
			if c, ok := t.Column(cols[0]); ok {
				c.IsUnique = true
			}
		default:
			t.Constraints = append(t.Constraints, Constraint{Kind: UniqueConstraint, Columns: cols})
		}
	}

	for _, check := range checks {
		check = strings.TrimSpace(check)
		if check == "" {
			continue
		}
		t.Constraints = append(t.Constraints, Constraint{Kind: CheckConstraint, Expression: check})
	}
}
