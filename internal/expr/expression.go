// Package expr builds SQL boolean predicates for a single column.
//
// An expression is created before the table it filters has an alias, so the
// rendered text carries AliasPlaceholder until ApplyAlias binds it:
//
//	e := expr.ForColumn("ID").Equals(1)          // ${alias}.ID = 1
//	_ = e.ApplyAlias("t1")                        // t1.ID = 1
//	e.And(expr.ForColumn("NAME").Like("smith"))  // t1.ID = 1 and t1.NAME LIKE '%smith%'
//
// Operands joined onto a bound expression are bound to the same alias.
package expr

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tordrt/dbsnap/internal/sqlvalue"
)

// AliasPlaceholder stands in for the table alias until ApplyAlias runs.
const AliasPlaceholder = "${alias}"

// ErrAliasBound is returned when an expression bound to one alias is bound
// to another.
var ErrAliasBound = errors.New("expression already bound to another alias")

// Expression is a mutable predicate builder. It starts unbound (text holds
// AliasPlaceholder) and becomes bound exactly once.
type Expression struct {
	column string
	text   string
	alias  string
}

// ForColumn starts an expression on the named column.
func ForColumn(name string) *Expression {
	return &Expression{column: name}
}

// Column returns the column the expression was started on.
func (e *Expression) Column() string { return e.column }

// Alias returns the bound alias, or "" while unbound.
func (e *Expression) Alias() string { return e.alias }

// Bound reports whether ApplyAlias has run.
func (e *Expression) Bound() bool { return e.alias != "" }

// Empty reports whether no predicate has been applied yet.
func (e *Expression) Empty() bool { return e.text == "" }

// String returns the rendered SQL fragment.
func (e *Expression) String() string { return e.text }

// ApplyAlias substitutes the placeholder with alias. Binding again to the
// same alias is a no-op; binding to a different one fails.
func (e *Expression) ApplyAlias(alias string) error {
	if alias == "" {
		return fmt.Errorf("expr: empty alias for column %s", e.column)
	}
	if e.alias != "" {
		if e.alias == alias {
			return nil
		}
		return fmt.Errorf("%w: column %s is bound to %s, not %s", ErrAliasBound, e.column, e.alias, alias)
	}
	e.text = strings.ReplaceAll(e.text, AliasPlaceholder, alias)
	e.alias = alias
	return nil
}

// Equals renders "= v".
func (e *Expression) Equals(v any) *Expression { return e.compare("=", sqlvalue.Of(v)) }

// NotEquals renders "<> v".
func (e *Expression) NotEquals(v any) *Expression { return e.compare("<>", sqlvalue.Of(v)) }

// GreaterThan renders "> v".
func (e *Expression) GreaterThan(v any) *Expression { return e.compare(">", sqlvalue.Of(v)) }

// GreaterOrEqual renders ">= v".
func (e *Expression) GreaterOrEqual(v any) *Expression { return e.compare(">=", sqlvalue.Of(v)) }

// LessThan renders "< v".
func (e *Expression) LessThan(v any) *Expression { return e.compare("<", sqlvalue.Of(v)) }

// LessOrEqual renders "<= v".
func (e *Expression) LessOrEqual(v any) *Expression { return e.compare("<=", sqlvalue.Of(v)) }

// Like renders "LIKE '%v%'".
func (e *Expression) Like(v any) *Expression {
	val := sqlvalue.Of(v)
	if val.IsNull() {
		return e.compare("LIKE", val)
	}
	return e.compare("LIKE", sqlvalue.TextOf("%"+val.String()+"%"))
}

// In renders an IN list. Nil values are dropped; a single remaining value
// degrades to Equals and none to IS NULL.
func (e *Expression) In(values ...any) *Expression {
	kept := make([]sqlvalue.Value, 0, len(values))
	for _, v := range values {
		if val := sqlvalue.Of(v); !val.IsNull() {
			kept = append(kept, val)
		}
	}

	switch len(kept) {
	case 0:
		return e.compare("=", sqlvalue.NullValue())
	case 1:
		return e.compare("=", kept[0])
	}

	literals := make([]string, len(kept))
	for i, val := range kept {
		literals[i] = val.Literal()
	}
	e.text = fmt.Sprintf("%s IN (%s)", e.ref(), strings.Join(literals, ", "))
	return e
}

// Between renders "BETWEEN low AND high". A missing bound degrades to a
// one-sided comparison; if either bound is text both are quoted.
func (e *Expression) Between(low, high any) *Expression {
	lo, hi := sqlvalue.Of(low), sqlvalue.Of(high)

	switch {
	case lo.IsBlank() && hi.IsBlank():
		return e.compare("=", sqlvalue.NullValue())
	case lo.IsBlank():
		return e.compare("<=", hi)
	case hi.IsBlank():
		return e.compare(">=", lo)
	}

	render := sqlvalue.Value.Literal
	if lo.IsTextual() || hi.IsTextual() {
		render = sqlvalue.Value.Quoted
	}
	e.text = fmt.Sprintf("%s BETWEEN %s AND %s", e.ref(), render(lo), render(hi))
	return e
}

// And combines e with other.
func (e *Expression) And(other *Expression) *Expression { return e.combine("and", other) }

// Or combines e with other.
func (e *Expression) Or(other *Expression) *Expression { return e.combine("or", other) }

// Not combines e with the negation of other.
func (e *Expression) Not(other *Expression) *Expression { return e.combine("and not", other) }

func (e *Expression) combine(op string, other *Expression) *Expression {
	if other == nil || other.Empty() {
		return e
	}
	rhs := other.String()
	if e.alias != "" {
		rhs = strings.ReplaceAll(rhs, AliasPlaceholder, e.alias)
	}
	if e.Empty() {
		if op == "and not" {
			e.text = "not " + parenthesize(rhs)
		} else {
			e.text = rhs
		}
		return e
	}
	e.text = parenthesize(e.text) + " " + op + " " + parenthesize(rhs)
	return e
}

// parenthesize wraps compound fragments. The check is textual, so a quoted
// literal containing " and " is wrapped as well.
func parenthesize(s string) string {
	if strings.Contains(s, " and ") || strings.Contains(s, " or ") {
		return "(" + s + ")"
	}
	return s
}

func (e *Expression) compare(op string, val sqlvalue.Value) *Expression {
	if val.IsBlank() {
		e.text = e.ref() + " IS NULL"
		return e
	}
	e.text = fmt.Sprintf("%s %s %s", e.ref(), op, val.Literal())
	return e
}

func (e *Expression) ref() string {
	if e.alias != "" {
		return e.alias + "." + e.column
	}
	return AliasPlaceholder + "." + e.column
}
