// Package db discovers table metadata and runs generated queries against
// PostgreSQL, MySQL and SQLite. Each vendor provides a Connector whose
// Session holds exactly one connection for the duration of a build.
package db

import (
	"context"
	"database/sql"
	"strings"
)

// Dialect names
const (
	DialectPostgres = "postgresql"
	DialectMySQL    = "mysql"
	DialectSQLite   = "sqlite"
)

// ColumnInfo describes one column as reported by the database
type ColumnInfo struct {
	Ordinal       int
	Name          string
	DeclaredType  string
	Nullable      bool
	AutoIncrement bool
	Default       *string
}

// KeyRef is one column pair of a foreign key. For imported keys Local is
// the referencing column; for exported keys Local is the referenced one and
// Foreign names the referencing table.
type KeyRef struct {
	LocalColumn   string
	ForeignTable  string
	ForeignColumn string
}

// UniqueKey is a unique constraint
type UniqueKey struct {
	Name    string
	Columns []string
}

// MetadataProvider discovers table structure
type MetadataProvider interface {
	SchemaExists(ctx context.Context, schema string) (bool, error)
	// TableName returns the stored spelling of table, matched case-insensitively
	TableName(ctx context.Context, schema, table string) (string, bool, error)
	Columns(ctx context.Context, schema, table string) ([]ColumnInfo, error)
	PrimaryKeyColumns(ctx context.Context, schema, table string) ([]string, error)
	ImportedKeys(ctx context.Context, schema, table string) ([]KeyRef, error)
	ExportedKeys(ctx context.Context, schema, table string) ([]KeyRef, error)
}

// VendorStrategy supplies constraint metadata with no portable query
type VendorStrategy interface {
	Dialect() string
	UniqueConstraints(ctx context.Context, schema, table string) ([]UniqueKey, error)
	CheckConstraints(ctx context.Context, schema, table string) ([]string, error)
}

// Row is one result row with its column names in select order
type Row struct {
	Columns []string
	Values  []any
}

// QueryExecutor runs literal SQL
type QueryExecutor interface {
	Query(ctx context.Context, query string) ([]Row, error)
}

// Session is a single acquired connection
type Session interface {
	MetadataProvider
	VendorStrategy
	QueryExecutor
	Close(ctx context.Context) error
}

// Connector opens sessions
type Connector interface {
	Open(ctx context.Context) (Session, error)
}

// queryer is satisfied by *sql.DB and *sql.Conn
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// queryStrings runs a single-column query and collects the results
func queryStrings(ctx context.Context, q queryer, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// queryKeyRefs runs a three-column key query
func queryKeyRefs(ctx context.Context, q queryer, query string, args ...any) ([]KeyRef, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []KeyRef
	for rows.Next() {
		var ref KeyRef
		if err := rows.Scan(&ref.LocalColumn, &ref.ForeignTable, &ref.ForeignColumn); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// groupUniqueKeys folds (constraint, column) pairs ordered by constraint
// into unique keys
func groupUniqueKeys(pairs [][2]string) []UniqueKey {
	var keys []UniqueKey
	for _, p := range pairs {
		if n := len(keys); n > 0 && keys[n-1].Name == p[0] {
			keys[n-1].Columns = append(keys[n-1].Columns, p[1])
			continue
		}
		keys = append(keys, UniqueKey{Name: p[0], Columns: []string{p[1]}})
	}
	return keys
}

// QuoteIdent quotes a table or column name for dialect: backticks on
// MySQL, double quotes elsewhere
func QuoteIdent(dialect, name string) string {
	if dialect == DialectMySQL {
		return "`" + strings.ReplaceAll(name, "`", "``") + "`"
	}
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// quoteIdent quotes an identifier for PRAGMA statements
func quoteIdent(name string) string {
	return QuoteIdent(DialectSQLite, name)
}
