package script

import (
	"fmt"
	"io"
	"strings"

	"github.com/tordrt/dbsnap/internal/db"
	"github.com/tordrt/dbsnap/internal/schema"
)

// DDLGenerator writes DROP TABLE and CREATE TABLE statements
type DDLGenerator struct {
	writer io.Writer
}

// NewDDLGenerator creates a new DDL generator
func NewDDLGenerator(w io.Writer) *DDLGenerator {
	return &DDLGenerator{writer: w}
}

// Generate writes every DROP TABLE, then every CREATE TABLE, tables in name order
func (g *DDLGenerator) Generate(s *schema.Schema) error {
	var sb strings.Builder
	writeBanner(&sb, "DDL", s)

	tables := s.SortedTables()
	for _, t := range tables {
		fmt.Fprintf(&sb, "DROP TABLE IF EXISTS %s;\n", db.QuoteIdent(s.Dialect, t.Name))
	}

	for _, t := range tables {
		sb.WriteString("\n")
		writeCreate(&sb, t, s.Dialect)
	}

	_, err := io.WriteString(g.writer, sb.String())
	return err
}

func writeCreate(sb *strings.Builder, t *schema.Table, dialect string) {
	inlinePK := !t.HasConstraint(schema.PrimaryKeyConstraint)

	var lines []string
	for _, col := range t.Columns() {
		lines = append(lines, columnDefinition(col, dialect, inlinePK))
	}
	for _, c := range t.Constraints {
		lines = append(lines, constraintClause(c, dialect))
	}

	fmt.Fprintf(sb, "CREATE TABLE %s (\n", db.QuoteIdent(dialect, t.Name))
	sb.WriteString("    " + strings.Join(lines, ",\n    "))
	sb.WriteString("\n);\n")
}

func columnDefinition(col *schema.Column, dialect string, inlinePK bool) string {
	parts := []string{db.QuoteIdent(dialect, col.Name)}
	if col.Type != "" {
		parts = append(parts, col.Type)
	}
	if !col.Nullable {
		parts = append(parts, "NOT NULL")
	}
	if col.DefaultValue != nil && *col.DefaultValue != "" {
		parts = append(parts, "DEFAULT "+*col.DefaultValue)
	}

	primary := inlinePK && col.IsPrimaryKey
	auto := col.IsAutoIncrement
	switch dialect {
	case db.DialectMySQL:
		if auto {
			parts = append(parts, "AUTO_INCREMENT")
		}
		if primary {
			parts = append(parts, "PRIMARY KEY")
		}
	case db.DialectSQLite:
		if primary {
			parts = append(parts, "PRIMARY KEY")
			if auto {
				parts = append(parts, "AUTOINCREMENT")
			}
		}
	default:
		// serial types carry auto-increment on PostgreSQL
		if primary {
			parts = append(parts, "PRIMARY KEY")
		}
	}

	if col.IsUnique && !primary {
		parts = append(parts, "UNIQUE")
	}
	return strings.Join(parts, " ")
}

func constraintClause(c schema.Constraint, dialect string) string {
	if c.Kind == schema.CheckConstraint {
		return c.Expression
	}
	return fmt.Sprintf("%s (%s)", c.Kind, quoteAll(dialect, c.Columns))
}

// quoteAll quotes names for dialect and joins them with commas
func quoteAll(dialect string, names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = db.QuoteIdent(dialect, n)
	}
	return strings.Join(quoted, ", ")
}
