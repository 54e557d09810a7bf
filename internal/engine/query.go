package engine

import (
	"strings"

	"github.com/tordrt/dbsnap/internal/db"
	"github.com/tordrt/dbsnap/internal/expr"
	"github.com/tordrt/dbsnap/internal/schema"
)

// selectQuery is a generated row query. When a filter cannot be joined
// into it, sql is empty and unreachable lists the filters.
type selectQuery struct {
	sql         string
	unreachable []*expr.Expression
}

type joinClause struct {
	kind  schema.JoinKind
	table *schema.Table
	on    []string
}

// buildSelect renders the SELECT collecting t's rows. Filters on t go in
// the WHERE clause. Filters on other tables, explicit joins and the key
// relations leading to them (directly or through one resolved hop) go into
// a correlated EXISTS, so every row of t is returned at most once.
func buildSelect(t *schema.Table) selectQuery {
	alias := t.Alias()
	quote := quoter(t.Schema().Dialect)

	needed := make(map[string]bool)
	for _, stmt := range t.Statements() {
		if stmt.Alias() != alias {
			needed[stmt.Alias()] = true
		}
	}

	resolved := schema.ResolveJoins(t)
	for _, r := range resolved {
		needed[r.SourceAlias()] = true
		needed[r.TargetAlias()] = true
	}

	var candidates schema.RelationSet
	for _, r := range t.Joins() {
		candidates.Add(r)
	}
	for _, r := range t.Relations() {
		if needed[r.Other(alias)] {
			candidates.Add(r)
		}
	}
	for _, r := range resolved {
		candidates.Add(r)
	}

	joins := orderJoins(t, candidates.All(), quote)
	joined := map[string]bool{alias: true}
	for _, j := range joins {
		joined[j.table.Alias()] = true
	}

	var q selectQuery
	var own, others []string
	for _, stmt := range t.Statements() {
		switch {
		case stmt.Alias() == alias:
			own = append(own, stmt.String())
		case joined[stmt.Alias()]:
			others = append(others, stmt.String())
		default:
			q.unreachable = append(q.unreachable, stmt)
		}
	}
	if len(q.unreachable) > 0 {
		return q
	}

	if len(own)+len(others) > 1 {
		wrap(own)
		wrap(others)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(columnList(t, quote))
	sb.WriteString(" FROM ")
	sb.WriteString(quote(t.Name) + " " + alias)

	where := own
	if exists := existsClause(joins, others, quote); exists != "" {
		where = append(where, exists)
	}
	if len(where) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(where, " AND "))
	}

	q.sql = sb.String()
	return q
}

// existsClause renders the joined tables as a correlated subquery. The
// first clause is joined to the outer table, so its ON conditions move to
// the subquery's WHERE. Outer joins no filter reaches cannot restrict the
// outer rows and are left out.
func existsClause(joins []joinClause, filters []string, quote func(string) string) string {
	if len(joins) == 0 {
		return ""
	}
	if len(filters) == 0 && allOuter(joins) {
		return ""
	}

	first := joins[0]
	var sb strings.Builder
	sb.WriteString("EXISTS (SELECT 1 FROM ")
	sb.WriteString(quote(first.table.Name) + " " + first.table.Alias())
	for _, j := range joins[1:] {
		sb.WriteString(" " + j.kind.Keyword() + " ")
		sb.WriteString(quote(j.table.Name) + " " + j.table.Alias())
		sb.WriteString(" ON " + strings.Join(j.on, " AND "))
	}

	conditions := append(append([]string{}, first.on...), filters...)
	sb.WriteString(" WHERE ")
	sb.WriteString(strings.Join(conditions, " AND "))
	sb.WriteString(")")
	return sb.String()
}

func allOuter(joins []joinClause) bool {
	for _, j := range joins {
		if j.kind != schema.JoinLeft && j.kind != schema.JoinFull {
			return false
		}
	}
	return true
}

func wrap(conditions []string) {
	for i, c := range conditions {
		conditions[i] = "(" + c + ")"
	}
}

func quoter(dialect string) func(string) string {
	return func(name string) string { return db.QuoteIdent(dialect, name) }
}

func columnList(t *schema.Table, quote func(string) string) string {
	cols := t.ColumnNames()
	if len(cols) == 0 {
		return t.Alias() + ".*"
	}
	for i, c := range cols {
		cols[i] = t.Alias() + "." + quote(c)
	}
	return strings.Join(cols, ", ")
}

// orderJoins arranges relations into JOIN clauses so that each clause only
// refers to aliases joined before it. Self-referencing relations and
// relations that never connect to the joined set are dropped.
func orderJoins(t *schema.Table, relations []*schema.Relation, quote func(string) string) []joinClause {
	joined := map[string]bool{t.Alias(): true}

	pending := make([]*schema.Relation, 0, len(relations))
	for _, r := range relations {
		if r.Built() && !r.SelfReferencing() {
			pending = append(pending, r)
		}
	}

	var clauses []joinClause
	for len(pending) > 0 {
		next := ""
		for _, r := range pending {
			switch {
			case joined[r.SourceAlias()] && !joined[r.TargetAlias()]:
				next = r.TargetAlias()
			case joined[r.TargetAlias()] && !joined[r.SourceAlias()]:
				next = r.SourceAlias()
			}
			if next != "" {
				break
			}
		}
		if next == "" {
			break
		}

		target, ok := t.Schema().TableByAlias(next)
		clause := joinClause{table: target}
		rest := make([]*schema.Relation, 0, len(pending))
		for _, r := range pending {
			switch {
			case r.Touches(next) && joined[r.Other(next)]:
				clause.on = append(clause.on, r.QuotedCondition(quote))
				if clause.kind == schema.JoinPlain {
					clause.kind = r.Kind
				}
			case joined[r.SourceAlias()] && joined[r.TargetAlias()]:
				// both ends already joined through another path
			default:
				rest = append(rest, r)
			}
		}
		pending = rest

		joined[next] = true
		if ok {
			clauses = append(clauses, clause)
		}
	}
	return clauses
}
