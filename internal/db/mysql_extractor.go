package db

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

// errUnknownTable is ER_UNKNOWN_TABLE
const errUnknownTable = 1109

// MySQLMetadata reads metadata from information_schema
type MySQLMetadata struct {
	q queryer
}

// NewMySQLMetadata creates a MySQL metadata provider
func NewMySQLMetadata(q queryer) MySQLMetadata {
	return MySQLMetadata{q: q}
}

// Dialect returns the dialect name
func (m MySQLMetadata) Dialect() string { return DialectMySQL }

// SchemaExists checks information_schema.schemata
func (m MySQLMetadata) SchemaExists(ctx context.Context, schemaName string) (bool, error) {
	names, err := queryStrings(ctx, m.q,
		`SELECT schema_name FROM information_schema.schemata WHERE schema_name = ?`,
		schemaName,
	)
	return len(names) > 0, err
}

// TableName resolves the stored table name
func (m MySQLMetadata) TableName(ctx context.Context, schemaName, table string) (string, bool, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ?
			AND LOWER(table_name) = LOWER(?)
			AND table_type = 'BASE TABLE'
		ORDER BY table_name = ? DESC
		LIMIT 1
	`
	names, err := queryStrings(ctx, m.q, query, schemaName, table, table)
	if err != nil || len(names) == 0 {
		return "", false, err
	}
	return names[0], true, nil
}

// Columns extracts column information for a table
func (m MySQLMetadata) Columns(ctx context.Context, schemaName, table string) ([]ColumnInfo, error) {
	query := `
		SELECT
			c.column_name,
			c.ordinal_position,
			c.column_type,
			c.is_nullable,
			c.column_default,
			c.extra
		FROM information_schema.columns c
		WHERE c.table_schema = ? AND c.table_name = ?
		ORDER BY c.ordinal_position
	`

	rows, err := m.q.QueryContext(ctx, query, schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		var nullable string
		var defaultVal, extra sql.NullString

		if err := rows.Scan(&col.Name, &col.Ordinal, &col.DeclaredType, &nullable, &defaultVal, &extra); err != nil {
			return nil, err
		}

		col.Nullable = nullable == "YES"
		col.AutoIncrement = strings.Contains(strings.ToLower(extra.String), "auto_increment")
		if defaultVal.Valid {
			def := mysqlDefault(defaultVal.String, extra.String)
			col.Default = &def
		}

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

// mysqlDefault turns column_default, which holds literals unquoted, into
// a SQL expression
func mysqlDefault(def, extra string) string {
	switch {
	case strings.HasPrefix(strings.ToUpper(def), "CURRENT_TIMESTAMP"):
		return def
	case strings.Contains(strings.ToUpper(extra), "DEFAULT_GENERATED"):
		return "(" + def + ")"
	case strings.HasPrefix(def, "'"):
		return def
	}
	if _, err := strconv.ParseFloat(def, 64); err == nil {
		return def
	}
	return "'" + strings.ReplaceAll(def, "'", "''") + "'"
}

// PrimaryKeyColumns extracts primary key columns
func (m MySQLMetadata) PrimaryKeyColumns(ctx context.Context, schemaName, table string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ?
			AND table_name = ?
			AND constraint_name = 'PRIMARY'
		ORDER BY ordinal_position
	`
	return queryStrings(ctx, m.q, query, schemaName, table)
}

// ImportedKeys lists the foreign keys of table
func (m MySQLMetadata) ImportedKeys(ctx context.Context, schemaName, table string) ([]KeyRef, error) {
	query := `
		SELECT
			kcu.column_name,
			kcu.referenced_table_name,
			kcu.referenced_column_name
		FROM information_schema.key_column_usage kcu
		WHERE kcu.table_schema = ?
			AND kcu.table_name = ?
			AND kcu.referenced_table_schema = ?
			AND kcu.referenced_table_name IS NOT NULL
		ORDER BY kcu.constraint_name, kcu.ordinal_position
	`
	return queryKeyRefs(ctx, m.q, query, schemaName, table, schemaName)
}

// ExportedKeys lists the foreign keys referencing table
func (m MySQLMetadata) ExportedKeys(ctx context.Context, schemaName, table string) ([]KeyRef, error) {
	query := `
		SELECT
			kcu.referenced_column_name,
			kcu.table_name,
			kcu.column_name
		FROM information_schema.key_column_usage kcu
		WHERE kcu.referenced_table_schema = ?
			AND kcu.referenced_table_name = ?
			AND kcu.table_schema = ?
		ORDER BY kcu.table_name, kcu.constraint_name, kcu.ordinal_position
	`
	return queryKeyRefs(ctx, m.q, query, schemaName, table, schemaName)
}

// UniqueConstraints lists unique constraints with their columns
func (m MySQLMetadata) UniqueConstraints(ctx context.Context, schemaName, table string) ([]UniqueKey, error) {
	query := `
		SELECT tc.constraint_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.table_schema = ?
			AND tc.table_name = ?
			AND tc.constraint_type = 'UNIQUE'
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`

	rows, err := m.q.QueryContext(ctx, query, schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pairs [][2]string
	for rows.Next() {
		var p [2]string
		if err := rows.Scan(&p[0], &p[1]); err != nil {
			return nil, err
		}
		pairs = append(pairs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return groupUniqueKeys(pairs), nil
}

// CheckConstraints returns CHECK clauses (MySQL 8.0.16 and later)
func (m MySQLMetadata) CheckConstraints(ctx context.Context, schemaName, table string) ([]string, error) {
	query := `
		SELECT cc.check_clause
		FROM information_schema.table_constraints tc
		JOIN information_schema.check_constraints cc
			ON cc.constraint_schema = tc.constraint_schema
			AND cc.constraint_name = tc.constraint_name
		WHERE tc.table_schema = ?
			AND tc.table_name = ?
			AND tc.constraint_type = 'CHECK'
		ORDER BY tc.constraint_name
	`

	clauses, err := queryStrings(ctx, m.q, query, schemaName, table)
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == errUnknownTable {
		// check_constraints does not exist before 8.0.16
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	for i, c := range clauses {
		clauses[i] = "CHECK (" + c + ")"
	}
	return clauses, nil
}
