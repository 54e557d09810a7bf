package engine

import (
	"context"
	"strings"

	"github.com/tordrt/dbsnap/internal/db"
	"github.com/tordrt/dbsnap/internal/schema"
)

type fakeTable struct {
	name    string
	columns []db.ColumnInfo
	pk      []string
	fks     []db.KeyRef
	uniques []db.UniqueKey
	checks  []string
	rows    []db.Row
}

// fakeSession serves metadata and rows from memory. Queries are routed to
// the table named after the first FROM; the WHERE clause is not evaluated.
type fakeSession struct {
	schemaName string
	tables     []*fakeTable

	columnsErr error
	queryErr   error

	queries []string
	opened  int
	closed  int
}

func (f *fakeSession) Open(context.Context) (db.Session, error) {
	f.opened++
	return f, nil
}

func (f *fakeSession) Close(context.Context) error {
	f.closed++
	return nil
}

func (f *fakeSession) Dialect() string { return db.DialectSQLite }

func (f *fakeSession) find(name string) *fakeTable {
	for _, t := range f.tables {
		if schema.Key(t.name) == schema.Key(name) {
			return t
		}
	}
	return nil
}

func (f *fakeSession) SchemaExists(_ context.Context, name string) (bool, error) {
	return name == f.schemaName, nil
}

func (f *fakeSession) TableName(_ context.Context, _, table string) (string, bool, error) {
	if t := f.find(table); t != nil {
		return t.name, true, nil
	}
	return "", false, nil
}

func (f *fakeSession) Columns(_ context.Context, _, table string) ([]db.ColumnInfo, error) {
	if f.columnsErr != nil {
		return nil, f.columnsErr
	}
	return f.find(table).columns, nil
}

func (f *fakeSession) PrimaryKeyColumns(_ context.Context, _, table string) ([]string, error) {
	return f.find(table).pk, nil
}

func (f *fakeSession) ImportedKeys(_ context.Context, _, table string) ([]db.KeyRef, error) {
	return f.find(table).fks, nil
}

func (f *fakeSession) ExportedKeys(_ context.Context, _, table string) ([]db.KeyRef, error) {
	var refs []db.KeyRef
	for _, child := range f.tables {
		for _, fk := range child.fks {
			if schema.Key(fk.ForeignTable) == schema.Key(table) {
				refs = append(refs, db.KeyRef{LocalColumn: fk.ForeignColumn, ForeignTable: child.name, ForeignColumn: fk.LocalColumn})
			}
		}
	}
	return refs, nil
}

func (f *fakeSession) UniqueConstraints(_ context.Context, _, table string) ([]db.UniqueKey, error) {
	return f.find(table).uniques, nil
}

func (f *fakeSession) CheckConstraints(_ context.Context, _, table string) ([]string, error) {
	return f.find(table).checks, nil
}

func (f *fakeSession) Query(_ context.Context, query string) ([]db.Row, error) {
	f.queries = append(f.queries, query)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	rest := query[strings.Index(query, " FROM ")+len(" FROM "):]
	name, _, _ := strings.Cut(rest, " ")
	return f.find(strings.Trim(name, `"`)).rows, nil
}

func intColumn(ordinal int, name string) db.ColumnInfo {
	return db.ColumnInfo{Ordinal: ordinal, Name: name, DeclaredType: "INTEGER"}
}

func textColumn(ordinal int, name string) db.ColumnInfo {
	return db.ColumnInfo{Ordinal: ordinal, Name: name, DeclaredType: "TEXT", Nullable: true}
}

// customerDB is CUSTOMER and ADDRESS linked through CUSTOMER_ADDRESS
func customerDB() *fakeSession {
	return &fakeSession{
		schemaName: "main",
		tables: []*fakeTable{
			{
				name:    "ADDRESS",
				columns: []db.ColumnInfo{intColumn(1, "ID"), textColumn(2, "STREET")},
				pk:      []string{"ID"},
				rows: []db.Row{
					{Columns: []string{"ID", "STREET"}, Values: []any{int64(1), "Main St"}},
				},
			},
			{
				name:    "CUSTOMER",
				columns: []db.ColumnInfo{intColumn(1, "ID"), textColumn(2, "NAME"), textColumn(3, "EMAIL")},
				pk:      []string{"ID"},
				uniques: []db.UniqueKey{{Name: "uq_email", Columns: []string{"EMAIL"}}},
				checks:  []string{"CHECK (length(NAME) > 0)"},
				rows: []db.Row{
					{Columns: []string{"ID", "NAME", "EMAIL"}, Values: []any{int64(7), "Ann", nil}},
				},
			},
			{
				name:    "CUSTOMER_ADDRESS",
				columns: []db.ColumnInfo{intColumn(1, "CUSTOMER_ID"), intColumn(2, "ADDRESS_ID")},
				pk:      []string{"CUSTOMER_ID", "ADDRESS_ID"},
				fks: []db.KeyRef{
					{LocalColumn: "CUSTOMER_ID", ForeignTable: "CUSTOMER", ForeignColumn: "ID"},
					{LocalColumn: "ADDRESS_ID", ForeignTable: "ADDRESS", ForeignColumn: "ID"},
				},
				rows: []db.Row{
					{Columns: []string{"CUSTOMER_ID", "ADDRESS_ID"}, Values: []any{int64(7), int64(1)}},
				},
			},
		},
	}
}

// chainDB is A <- B <- C <- D, each child holding a key to its parent
func chainDB() *fakeSession {
	table := func(name, parent string) *fakeTable {
		t := &fakeTable{
			name:    name,
			columns: []db.ColumnInfo{intColumn(1, "ID")},
			pk:      []string{"ID"},
			rows:    []db.Row{{Columns: []string{"ID"}, Values: []any{int64(1)}}},
		}
		if parent != "" {
			t.columns = append(t.columns, intColumn(2, parent+"_ID"))
			t.fks = []db.KeyRef{{LocalColumn: parent + "_ID", ForeignTable: parent, ForeignColumn: "ID"}}
			t.rows = []db.Row{{Columns: []string{"ID", parent + "_ID"}, Values: []any{int64(1), int64(1)}}}
		}
		return t
	}
	return &fakeSession{
		schemaName: "main",
		tables:     []*fakeTable{table("A", ""), table("B", "A"), table("C", "B"), table("D", "C")},
	}
}
