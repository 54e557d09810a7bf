package schema

import (
	"fmt"
	"slices"
	"strings"
)

// JoinKind selects the JOIN keyword rendered for a relation. The zero value
// renders a plain JOIN.
type JoinKind string

const (
	JoinPlain JoinKind = ""
	JoinInner JoinKind = "INNER"
	JoinLeft  JoinKind = "LEFT"
	JoinRight JoinKind = "RIGHT"
	JoinFull  JoinKind = "FULL"
)

// ParseJoinKind accepts inner, left, right, full or an empty string
func ParseJoinKind(s string) (JoinKind, error) {
	switch k := JoinKind(strings.ToUpper(strings.TrimSpace(s))); k {
	case JoinPlain, JoinInner, JoinLeft, JoinRight, JoinFull:
		return k, nil
	default:
		return JoinPlain, fmt.Errorf("invalid join kind: %s (must be inner, left, right or full)", s)
	}
}

// Keyword returns the JOIN keyword for the kind
func (k JoinKind) Keyword() string {
	if k == JoinPlain {
		return "JOIN"
	}
	return string(k) + " JOIN"
}

// Relation is a directed key edge from a referencing column to a referenced
// one. It is shared by both tables it connects; only the aliases are set
// after construction, once, by Build.
type Relation struct {
	SourceTable  string
	SourceColumn string
	TargetTable  string
	TargetColumn string
	Kind         JoinKind

	sourceAlias string
	targetAlias string
}

// NewRelation creates an unbuilt relation
func NewRelation(sourceTable, sourceColumn, targetTable, targetColumn string) *Relation {
	return &Relation{
		SourceTable:  sourceTable,
		SourceColumn: sourceColumn,
		TargetTable:  targetTable,
		TargetColumn: targetColumn,
	}
}

// Build resolves the relation's aliases against its two tables
func (r *Relation) Build(source, target *Table) error {
	if Key(source.Name) != Key(r.SourceTable) || Key(target.Name) != Key(r.TargetTable) {
		return fmt.Errorf("relation %s does not connect %s and %s", r, source.Name, target.Name)
	}
	r.SourceTable, r.TargetTable = source.Name, target.Name
	r.sourceAlias, r.targetAlias = source.alias, target.alias
	return nil
}

// Built reports whether the aliases are resolved
func (r *Relation) Built() bool { return r.sourceAlias != "" && r.targetAlias != "" }

// SourceAlias returns the alias of the referencing table
func (r *Relation) SourceAlias() string { return r.sourceAlias }

// TargetAlias returns the alias of the referenced table
func (r *Relation) TargetAlias() string { return r.targetAlias }

// Touches reports whether either endpoint carries alias
func (r *Relation) Touches(alias string) bool {
	return r.sourceAlias == alias || r.targetAlias == alias
}

// Other returns the alias at the opposite end from alias
func (r *Relation) Other(alias string) string {
	if r.sourceAlias == alias {
		return r.targetAlias
	}
	return r.sourceAlias
}

// SelfReferencing reports whether both ends are the same table
func (r *Relation) SelfReferencing() bool {
	return Key(r.SourceTable) == Key(r.TargetTable)
}

// Condition renders the ON predicate
func (r *Relation) Condition() string {
	return r.QuotedCondition(func(name string) string { return name })
}

// QuotedCondition renders the ON predicate with column names passed
// through quote
func (r *Relation) QuotedCondition(quote func(string) string) string {
	return fmt.Sprintf("%s.%s = %s.%s", r.sourceAlias, quote(r.SourceColumn), r.targetAlias, quote(r.TargetColumn))
}

func (r *Relation) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", r.SourceTable, r.SourceColumn, r.TargetTable, r.TargetColumn)
}

// Comparator orders relations
type Comparator func(a, b *Relation) int

// CompareStraight orders by source table, source column, target table, target column
func CompareStraight(a, b *Relation) int {
	return compareKeys(
		[]string{a.SourceTable, a.SourceColumn, a.TargetTable, a.TargetColumn},
		[]string{b.SourceTable, b.SourceColumn, b.TargetTable, b.TargetColumn},
	)
}

// CompareCross compares a against the inverse of b, so A->B equals B->A
func CompareCross(a, b *Relation) int {
	return compareKeys(
		[]string{a.SourceTable, a.SourceColumn, a.TargetTable, a.TargetColumn},
		[]string{b.TargetTable, b.TargetColumn, b.SourceTable, b.SourceColumn},
	)
}

var equivalence = []Comparator{CompareStraight, CompareCross}

// Equivalent reports whether a and b describe the same undirected edge
func Equivalent(a, b *Relation) bool {
	for _, cmp := range equivalence {
		if cmp(a, b) == 0 {
			return true
		}
	}
	return false
}

func compareKeys(a, b []string) int {
	for i := range a {
		if c := strings.Compare(Key(a[i]), Key(b[i])); c != 0 {
			return c
		}
	}
	return 0
}

// RelationSet holds relations ordered by CompareStraight, without
// equivalent duplicates
type RelationSet struct {
	items []*Relation
}

// Add inserts r unless an equivalent relation is present, in which case the
// existing one is returned. The bool reports insertion.
func (s *RelationSet) Add(r *Relation) (*Relation, bool) {
	for _, existing := range s.items {
		if Equivalent(existing, r) {
			return existing, false
		}
	}
	i, _ := slices.BinarySearchFunc(s.items, r, CompareStraight)
	s.items = slices.Insert(s.items, i, r)
	return r, true
}

// Contains reports whether an equivalent relation is present
func (s *RelationSet) Contains(r *Relation) bool {
	return slices.ContainsFunc(s.items, func(existing *Relation) bool {
		return Equivalent(existing, r)
	})
}

// All returns the relations in order
func (s *RelationSet) All() []*Relation {
	out := make([]*Relation, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of relations
func (s *RelationSet) Len() int { return len(s.items) }
