package script

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/tordrt/dbsnap/internal/db"
	"github.com/tordrt/dbsnap/internal/schema"
	"github.com/tordrt/dbsnap/internal/sqlvalue"
)

// DMLGenerator writes DELETE and INSERT statements for captured records
type DMLGenerator struct {
	writer io.Writer
}

// NewDMLGenerator creates a new DML generator
func NewDMLGenerator(w io.Writer) *DMLGenerator {
	return &DMLGenerator{writer: w}
}

// Generate writes a DELETE per table in name order, then one multi-row
// INSERT per table in reverse name order. Reverse order tends to put
// referenced tables first but does not follow the key graph.
func (g *DMLGenerator) Generate(s *schema.Schema) error {
	var sb strings.Builder
	writeBanner(&sb, "DML", s)

	tables := s.SortedTables()
	for _, t := range tables {
		fmt.Fprintf(&sb, "DELETE FROM %s;\n", db.QuoteIdent(s.Dialect, t.Name))
	}

	for _, t := range slices.Backward(tables) {
		if len(t.Records()) == 0 {
			continue
		}
		sb.WriteString("\n")
		writeInsert(&sb, t, s.Dialect)
	}

	_, err := io.WriteString(g.writer, sb.String())
	return err
}

func writeInsert(sb *strings.Builder, t *schema.Table, dialect string) {
	columns := t.ColumnNames()
	if len(columns) == 0 {
		for _, f := range t.Records()[0].Fields() {
			columns = append(columns, f.Column)
		}
	}

	fmt.Fprintf(sb, "INSERT INTO %s (%s) VALUES\n", db.QuoteIdent(dialect, t.Name), quoteAll(dialect, columns))

	tuples := make([]string, len(t.Records()))
	for i, r := range t.Records() {
		values := make([]string, len(columns))
		for j, c := range columns {
			v, _ := r.Get(c)
			values[j] = literal(v, dialect)
		}
		tuples[i] = "    (" + strings.Join(values, ", ") + ")"
	}
	sb.WriteString(strings.Join(tuples, ",\n"))
	sb.WriteString(";\n")
}

// literal renders a captured value; PostgreSQL takes binary data as bytea
// hex input
func literal(v sqlvalue.Value, dialect string) string {
	if dialect == db.DialectPostgres {
		return v.ByteaLiteral()
	}
	return v.Literal()
}
