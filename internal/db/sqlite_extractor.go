package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// SQLiteDefaultSchema is the schema name of the main database file
const SQLiteDefaultSchema = "main"

// SQLiteMetadata reads metadata through sqlite_master and PRAGMAs
type SQLiteMetadata struct {
	q queryer
}

// NewSQLiteMetadata creates a SQLite metadata provider
func NewSQLiteMetadata(q queryer) SQLiteMetadata {
	return SQLiteMetadata{q: q}
}

// Dialect returns the dialect name
func (m SQLiteMetadata) Dialect() string { return DialectSQLite }

// SchemaExists checks the attached databases
func (m SQLiteMetadata) SchemaExists(ctx context.Context, schemaName string) (bool, error) {
	rows, err := m.q.QueryContext(ctx, "PRAGMA database_list")
	if err != nil {
		return false, err
	}
	defer rows.Close()

	found := false
	for rows.Next() {
		var seq int
		var name string
		var file sql.NullString
		if err := rows.Scan(&seq, &name, &file); err != nil {
			return false, err
		}
		if strings.EqualFold(name, schemaName) {
			found = true
		}
	}
	return found, rows.Err()
}

// TableName resolves the stored table name
func (m SQLiteMetadata) TableName(ctx context.Context, schemaName, table string) (string, bool, error) {
	query := fmt.Sprintf(`
		SELECT name
		FROM %s.sqlite_master
		WHERE type = 'table' AND lower(name) = lower(?)
		ORDER BY name = ? DESC
		LIMIT 1
	`, quoteIdent(schemaName))

	names, err := queryStrings(ctx, m.q, query, table, table)
	if err != nil || len(names) == 0 {
		return "", false, err
	}
	return names[0], true, nil
}

type sqliteColumn struct {
	cid     int
	name    string
	colType string
	notNull int
	dflt    sql.NullString
	pkOrder int
}

func (m SQLiteMetadata) tableInfo(ctx context.Context, schemaName, table string) ([]sqliteColumn, error) {
	query := fmt.Sprintf("PRAGMA %s.table_info(%s)", quoteIdent(schemaName), quoteIdent(table))

	rows, err := m.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []sqliteColumn
	for rows.Next() {
		var c sqliteColumn
		if err := rows.Scan(&c.cid, &c.name, &c.colType, &c.notNull, &c.dflt, &c.pkOrder); err != nil {
			return nil, err
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (m SQLiteMetadata) createSQL(ctx context.Context, schemaName, table string) (string, error) {
	query := fmt.Sprintf(`SELECT sql FROM %s.sqlite_master WHERE type = 'table' AND name = ?`, quoteIdent(schemaName))
	stmts, err := queryStrings(ctx, m.q, query, table)
	if err != nil || len(stmts) == 0 {
		return "", err
	}
	return stmts[0], nil
}

// Columns extracts column information for a table
func (m SQLiteMetadata) Columns(ctx context.Context, schemaName, table string) ([]ColumnInfo, error) {
	cols, err := m.tableInfo(ctx, schemaName, table)
	if err != nil {
		return nil, err
	}
	create, err := m.createSQL(ctx, schemaName, table)
	if err != nil {
		return nil, err
	}
	autoIncrement := strings.Contains(strings.ToUpper(create), "AUTOINCREMENT")

	columns := make([]ColumnInfo, 0, len(cols))
	for _, c := range cols {
		col := ColumnInfo{
			Ordinal:      c.cid + 1,
			Name:         c.name,
			DeclaredType: c.colType,
			Nullable:     c.notNull == 0 && c.pkOrder == 0,
		}
		if c.dflt.Valid {
			col.Default = &c.dflt.String
		}
		if autoIncrement && c.pkOrder > 0 && strings.EqualFold(c.colType, "INTEGER") {
			col.AutoIncrement = true
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// PrimaryKeyColumns extracts primary key columns in key order
func (m SQLiteMetadata) PrimaryKeyColumns(ctx context.Context, schemaName, table string) ([]string, error) {
	cols, err := m.tableInfo(ctx, schemaName, table)
	if err != nil {
		return nil, err
	}

	pk := make([]string, 0, len(cols))
	for order := 1; ; order++ {
		found := false
		for _, c := range cols {
			if c.pkOrder == order {
				pk = append(pk, c.name)
				found = true
			}
		}
		if !found {
			return pk, nil
		}
	}
}

type sqliteForeignKey struct {
	id, seq int
	table   string
	from    string
	to      sql.NullString
}

func (m SQLiteMetadata) foreignKeyList(ctx context.Context, schemaName, table string) ([]sqliteForeignKey, error) {
	query := fmt.Sprintf("PRAGMA %s.foreign_key_list(%s)", quoteIdent(schemaName), quoteIdent(table))

	rows, err := m.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var fks []sqliteForeignKey
	for rows.Next() {
		var fk sqliteForeignKey
		var onUpdate, onDelete, match string
		if err := rows.Scan(&fk.id, &fk.seq, &fk.table, &fk.from, &fk.to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// targetColumn returns the referenced column, falling back to the parent's
// primary key when the foreign key omits the column list
func (m SQLiteMetadata) targetColumn(ctx context.Context, schemaName string, fk sqliteForeignKey) (string, error) {
	if fk.to.Valid && fk.to.String != "" {
		return fk.to.String, nil
	}
	pk, err := m.PrimaryKeyColumns(ctx, schemaName, fk.table)
	if err != nil {
		return "", err
	}
	if fk.seq >= len(pk) {
		return "", fmt.Errorf("foreign key %d of %s references %s without a matching primary key", fk.id, fk.from, fk.table)
	}
	return pk[fk.seq], nil
}

// ImportedKeys lists the foreign keys of table
func (m SQLiteMetadata) ImportedKeys(ctx context.Context, schemaName, table string) ([]KeyRef, error) {
	fks, err := m.foreignKeyList(ctx, schemaName, table)
	if err != nil {
		return nil, err
	}

	refs := make([]KeyRef, 0, len(fks))
	for _, fk := range fks {
		target, err := m.targetColumn(ctx, schemaName, fk)
		if err != nil {
			return nil, err
		}
		refs = append(refs, KeyRef{LocalColumn: fk.from, ForeignTable: fk.table, ForeignColumn: target})
	}
	return refs, nil
}

// ExportedKeys lists the foreign keys referencing table. SQLite has no
// reverse lookup, so every table's foreign key list is scanned.
func (m SQLiteMetadata) ExportedKeys(ctx context.Context, schemaName, table string) ([]KeyRef, error) {
	query := fmt.Sprintf(`
		SELECT name
		FROM %s.sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%%'
		ORDER BY name
	`, quoteIdent(schemaName))

	tables, err := queryStrings(ctx, m.q, query)
	if err != nil {
		return nil, err
	}

	var refs []KeyRef
	for _, child := range tables {
		fks, err := m.foreignKeyList(ctx, schemaName, child)
		if err != nil {
			return nil, err
		}
		for _, fk := range fks {
			if !strings.EqualFold(fk.table, table) {
				continue
			}
			target, err := m.targetColumn(ctx, schemaName, fk)
			if err != nil {
				return nil, err
			}
			refs = append(refs, KeyRef{LocalColumn: target, ForeignTable: child, ForeignColumn: fk.from})
		}
	}
	return refs, nil
}

// UniqueConstraints lists UNIQUE constraints declared on the table
func (m SQLiteMetadata) UniqueConstraints(ctx context.Context, schemaName, table string) ([]UniqueKey, error) {
	query := fmt.Sprintf("PRAGMA %s.index_list(%s)", quoteIdent(schemaName), quoteIdent(table))

	rows, err := m.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}

	var names []string
	for rows.Next() {
		var seq, unique, partial int
		var name, origin string
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			rows.Close()
			return nil, err
		}
		if unique == 1 && origin == "u" {
			names = append(names, name)
		}
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	keys := make([]UniqueKey, 0, len(names))
	for _, name := range names {
		cols, err := m.indexColumns(ctx, schemaName, name)
		if err != nil {
			return nil, err
		}
		if len(cols) > 0 {
			keys = append(keys, UniqueKey{Name: name, Columns: cols})
		}
	}
	return keys, nil
}

func (m SQLiteMetadata) indexColumns(ctx context.Context, schemaName, index string) ([]string, error) {
	query := fmt.Sprintf("PRAGMA %s.index_info(%s)", quoteIdent(schemaName), quoteIdent(index))

	rows, err := m.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var seqno, cid int
		var name sql.NullString
		if err := rows.Scan(&seqno, &cid, &name); err != nil {
			return nil, err
		}
		if name.Valid {
			cols = append(cols, name.String)
		}
	}
	return cols, rows.Err()
}

// CheckConstraints extracts CHECK clauses from the table's CREATE statement
func (m SQLiteMetadata) CheckConstraints(ctx context.Context, schemaName, table string) ([]string, error) {
	create, err := m.createSQL(ctx, schemaName, table)
	if err != nil {
		return nil, err
	}
	return extractChecks(create), nil
}

// extractChecks finds every CHECK (...) clause, matching parentheses and
// skipping quoted text
func extractChecks(create string) []string {
	var checks []string
	upper := strings.ToUpper(create)

	for from := 0; ; {
		i := strings.Index(upper[from:], "CHECK")
		if i < 0 {
			return checks
		}
		start := from + i
		from = start + len("CHECK")

		if start > 0 && isIdentByte(upper[start-1]) {
			continue
		}
		open := from
		for open < len(create) && (create[open] == ' ' || create[open] == '\t' || create[open] == '\n' || create[open] == '\r') {
			open++
		}
		if open >= len(create) || create[open] != '(' {
			continue
		}

		end := matchParen(create, open)
		if end < 0 {
			return checks
		}
		checks = append(checks, "CHECK "+create[open:end+1])
		from = end + 1
	}
}

func matchParen(s string, open int) int {
	depth := 0
	var quote byte
	for i := open; i < len(s); i++ {
		c := s[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '\'' || c == '"':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isIdentByte(c byte) bool {
	return c == '_' || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
