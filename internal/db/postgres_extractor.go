package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"

	"github.com/tordrt/dbsnap/internal/sqlvalue"
)

// pgxQuerier is satisfied by *pgx.Conn
type pgxQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresMetadata reads metadata from information_schema and pg_catalog
type PostgresMetadata struct {
	conn pgxQuerier
}

// NewPostgresMetadata creates a PostgreSQL metadata provider
func NewPostgresMetadata(conn pgxQuerier) PostgresMetadata {
	return PostgresMetadata{conn: conn}
}

// Dialect returns the dialect name
func (m PostgresMetadata) Dialect() string { return DialectPostgres }

// SchemaExists checks information_schema.schemata
func (m PostgresMetadata) SchemaExists(ctx context.Context, schemaName string) (bool, error) {
	var exists bool
	err := m.conn.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		schemaName,
	).Scan(&exists)
	return exists, err
}

// TableName resolves the stored table name
func (m PostgresMetadata) TableName(ctx context.Context, schemaName, table string) (string, bool, error) {
	query := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1
			AND lower(table_name) = lower($2)
			AND table_type = 'BASE TABLE'
		ORDER BY (table_name = $2) DESC
		LIMIT 1
	`

	var name string
	err := m.conn.QueryRow(ctx, query, schemaName, table).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return name, true, nil
}

// Columns extracts column information for a table
func (m PostgresMetadata) Columns(ctx context.Context, schemaName, table string) ([]ColumnInfo, error) {
	query := `
		SELECT
			column_name,
			ordinal_position,
			data_type,
			udt_name,
			character_maximum_length,
			numeric_precision,
			numeric_scale,
			is_nullable,
			column_default,
			is_identity
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := m.conn.Query(ctx, query, schemaName, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var columns []ColumnInfo
	for rows.Next() {
		var col ColumnInfo
		var dataType, udtName, nullable, identity string
		var charLen, precision, scale *int32
		var defaultVal *string

		if err := rows.Scan(&col.Name, &col.Ordinal, &dataType, &udtName, &charLen, &precision, &scale, &nullable, &defaultVal, &identity); err != nil {
			return nil, err
		}

		col.DeclaredType = postgresType(dataType, udtName, charLen, precision, scale)
		col.Nullable = nullable == "YES"
		col.Default = defaultVal

		isSequence := defaultVal != nil && strings.HasPrefix(*defaultVal, "nextval(")
		if isSequence || identity == "YES" {
			col.AutoIncrement = true
			if serial, ok := serialTypes[dataType]; ok {
				col.DeclaredType = serial
				col.Default = nil
			}
		}

		columns = append(columns, col)
	}

	return columns, rows.Err()
}

var serialTypes = map[string]string{
	"smallint": "smallserial",
	"integer":  "serial",
	"bigint":   "bigserial",
}

// postgresType renders information_schema type data as a column type
func postgresType(dataType, udtName string, charLen, precision, scale *int32) string {
	switch dataType {
	case "character varying":
		if charLen != nil {
			return fmt.Sprintf("varchar(%d)", *charLen)
		}
		return "varchar"
	case "character":
		if charLen != nil {
			return fmt.Sprintf("char(%d)", *charLen)
		}
		return "char"
	case "numeric":
		if precision != nil && scale != nil {
			return fmt.Sprintf("numeric(%d,%d)", *precision, *scale)
		}
		return "numeric"
	case "ARRAY":
		return strings.TrimPrefix(udtName, "_") + "[]"
	case "USER-DEFINED":
		return udtName
	default:
		return dataType
	}
}

// PrimaryKeyColumns extracts primary key columns
func (m PostgresMetadata) PrimaryKeyColumns(ctx context.Context, schemaName, table string) ([]string, error) {
	query := `
		SELECT column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = $1
			AND table_name = $2
			AND constraint_name IN (
				SELECT constraint_name
				FROM information_schema.table_constraints
				WHERE table_schema = $1
					AND table_name = $2
					AND constraint_type = 'PRIMARY KEY'
			)
		ORDER BY ordinal_position
	`
	return m.listStrings(ctx, query, schemaName, table)
}

// ImportedKeys lists the foreign keys of table
func (m PostgresMetadata) ImportedKeys(ctx context.Context, schemaName, table string) ([]KeyRef, error) {
	query := `
		SELECT
			kcu.column_name,
			pk.table_name,
			pk.column_name
		FROM information_schema.referential_constraints rc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_schema = rc.constraint_schema
			AND kcu.constraint_name = rc.constraint_name
		JOIN information_schema.key_column_usage pk
			ON pk.constraint_schema = rc.unique_constraint_schema
			AND pk.constraint_name = rc.unique_constraint_name
			AND pk.ordinal_position = kcu.position_in_unique_constraint
		WHERE kcu.table_schema = $1
			AND kcu.table_name = $2
			AND pk.table_schema = $1
		ORDER BY rc.constraint_name, kcu.ordinal_position
	`
	return m.listKeyRefs(ctx, query, schemaName, table)
}

// ExportedKeys lists the foreign keys referencing table
func (m PostgresMetadata) ExportedKeys(ctx context.Context, schemaName, table string) ([]KeyRef, error) {
	query := `
		SELECT
			pk.column_name,
			kcu.table_name,
			kcu.column_name
		FROM information_schema.referential_constraints rc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_schema = rc.constraint_schema
			AND kcu.constraint_name = rc.constraint_name
		JOIN information_schema.key_column_usage pk
			ON pk.constraint_schema = rc.unique_constraint_schema
			AND pk.constraint_name = rc.unique_constraint_name
			AND pk.ordinal_position = kcu.position_in_unique_constraint
		WHERE pk.table_schema = $1
			AND pk.table_name = $2
			AND kcu.table_schema = $1
		ORDER BY kcu.table_name, rc.constraint_name, kcu.ordinal_position
	`
	return m.listKeyRefs(ctx, query, schemaName, table)
}

// UniqueConstraints lists unique constraints with their columns
func (m PostgresMetadata) UniqueConstraints(ctx context.Context, schemaName, table string) ([]UniqueKey, error) {
	query := `
		SELECT tc.constraint_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
			AND tc.table_name = kcu.table_name
		WHERE tc.table_schema = $1
			AND tc.table_name = $2
			AND tc.constraint_type = 'UNIQUE'
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`

	rows, err := m.conn.Query(ctx, query, schemaName, table)
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

// CheckConstraints returns CHECK clauses as reported by pg_get_constraintdef
func (m PostgresMetadata) CheckConstraints(ctx context.Context, schemaName, table string) ([]string, error) {
	query := `
		SELECT pg_get_constraintdef(c.oid)
		FROM pg_constraint c
		JOIN pg_class t ON t.oid = c.conrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		WHERE c.contype = 'c'
			AND n.nspname = $1
			AND t.relname = $2
		ORDER BY c.conname
	`
	return m.listStrings(ctx, query, schemaName, table)
}

func (m PostgresMetadata) listStrings(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := m.conn.Query(ctx, query, args...)
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

func (m PostgresMetadata) listKeyRefs(ctx context.Context, query string, args ...any) ([]KeyRef, error) {
	rows, err := m.conn.Query(ctx, query, args...)
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

// PostgresExecutor runs generated queries over pgx
type PostgresExecutor struct {
	conn pgxQuerier
}

// NewPostgresExecutor creates a PostgreSQL query executor
func NewPostgresExecutor(conn pgxQuerier) PostgresExecutor {
	return PostgresExecutor{conn: conn}
}

// Query runs query and returns every row
func (e PostgresExecutor) Query(ctx context.Context, query string) ([]Row, error) {
	rows, err := e.conn.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	columns := fieldNames(fields)

	var result []Row
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, err
		}
		for i, v := range values {
			values[i] = fromPostgresColumn(v, fields[i].DataTypeOID)
		}
		result = append(result, Row{Columns: columns, Values: values})
	}

	return result, rows.Err()
}

func fieldNames(fields []pgconn.FieldDescription) []string {
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.Name
	}
	return names
}

// fromPostgresColumn converts a value of a column with the given type OID.
// JSON documents become JSON text and arrays become array literals.
func fromPostgresColumn(v any, oid uint32) any {
	if v == nil {
		return nil
	}
	if oid == pgtype.JSONOID || oid == pgtype.JSONBOID {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
	if elems, ok := v.([]any); ok {
		return pgArray(elems)
	}
	return fromPostgres(v)
}

// pgArray renders elements in PostgreSQL array input syntax
func pgArray(elems []any) string {
	parts := make([]string, len(elems))
	for i, e := range elems {
		if nested, ok := e.([]any); ok {
			parts[i] = pgArray(nested)
			continue
		}
		v := sqlvalue.Of(fromPostgres(e))
		switch {
		case v.IsNull():
			parts[i] = "NULL"
		case v.IsTextual():
			r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
			parts[i] = `"` + r.Replace(v.String()) + `"`
		default:
			parts[i] = v.String()
		}
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// fromPostgres converts pgx values without a natural Go scalar form
func fromPostgres(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		dv, err := x.Value()
		if err != nil {
			return nil
		}
		if s, ok := dv.(string); ok {
			if d, err := decimal.NewFromString(s); err == nil {
				return d
			}
			return s
		}
		return dv
	case [16]byte:
		return fmt.Sprintf("%x-%x-%x-%x-%x", x[0:4], x[4:6], x[6:8], x[8:10], x[10:16])
	default:
		return v
	}
}
