package db

import (
	"context"
	"database/sql"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

// SQLExecutor runs queries through database/sql
type SQLExecutor struct {
	q queryer
}

// NewSQLExecutor wraps a *sql.DB or *sql.Conn
func NewSQLExecutor(q queryer) SQLExecutor {
	return SQLExecutor{q: q}
}

// Query runs query and returns every row. Numeric columns that arrive as
// text (the MySQL text protocol) are parsed back into numbers.
func (e SQLExecutor) Query(ctx context.Context, query string) ([]Row, error) {
	rows, err := e.q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rows.ColumnTypes()
	if err != nil {
		return nil, err
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range values {
			if raw, ok := v.([]byte); ok {
				values[i] = fromText(raw, types[i])
			}
		}
		result = append(result, Row{Columns: columns, Values: values})
	}

	return result, rows.Err()
}

// fromText converts a textual driver value according to the column type.
// Binary columns and bytes that are not valid UTF-8 stay []byte.
func fromText(raw []byte, ct *sql.ColumnType) any {
	s := string(raw)
	typeName := ""
	if ct != nil {
		typeName = strings.ToUpper(ct.DatabaseTypeName())
	}

	switch {
	case strings.Contains(typeName, "BLOB"), strings.Contains(typeName, "BINARY"),
		!utf8.Valid(raw):
		return raw
	case strings.Contains(typeName, "INT"):
		if i, err := strconv.ParseInt(s, 10, 64); err == nil {
			return i
		}
		if d, err := decimal.NewFromString(s); err == nil {
			return d
		}
	case strings.Contains(typeName, "DECIMAL"), strings.Contains(typeName, "NUMERIC"),
		strings.Contains(typeName, "FLOAT"), strings.Contains(typeName, "DOUBLE"),
		strings.Contains(typeName, "REAL"):
		if d, err := decimal.NewFromString(s); err == nil {
			return d
		}
	}
	return s
}
