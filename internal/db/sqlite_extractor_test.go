package db

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var tableInfoColumns = []string{"cid", "name", "type", "notnull", "dflt_value", "pk"}

var foreignKeyColumns = []string{"id", "seq", "table", "from", "to", "on_update", "on_delete", "match"}

func TestSQLiteColumns(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(escape(`PRAGMA "main".table_info("ADDRESS")`)).
		WillReturnRows(sqlmock.NewRows(tableInfoColumns).
			AddRow(0, "ID", "INTEGER", 0, nil, 1).
			AddRow(1, "STREET", "TEXT", 1, "'n/a'", 0))
	mock.ExpectQuery("SELECT sql FROM").
		WithArgs("ADDRESS").
		WillReturnRows(sqlmock.NewRows([]string{"sql"}).
			AddRow("CREATE TABLE ADDRESS (ID INTEGER PRIMARY KEY AUTOINCREMENT, STREET TEXT NOT NULL DEFAULT 'n/a')"))

	cols, err := NewSQLiteMetadata(db).Columns(context.Background(), "main", "ADDRESS")
	require.NoError(t, err)
	require.Len(t, cols, 2)

	assert.Equal(t, 1, cols[0].Ordinal)
	assert.True(t, cols[0].AutoIncrement)
	assert.False(t, cols[0].Nullable)
	assert.False(t, cols[1].Nullable)
	require.NotNil(t, cols[1].Default)
	assert.Equal(t, "'n/a'", *cols[1].Default)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteImportedKeysFallBackToPrimaryKey(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(escape(`PRAGMA "main".foreign_key_list("CUSTOMER_ADDRESS")`)).
		WillReturnRows(sqlmock.NewRows(foreignKeyColumns).
			AddRow(0, 0, "CUSTOMER", "CUSTOMER_ID", "ID", "NO ACTION", "NO ACTION", "NONE").
			AddRow(1, 0, "ADDRESS", "ADDRESS_ID", nil, "NO ACTION", "NO ACTION", "NONE"))
	mock.ExpectQuery(escape(`PRAGMA "main".table_info("ADDRESS")`)).
		WillReturnRows(sqlmock.NewRows(tableInfoColumns).
			AddRow(0, "ID", "INTEGER", 0, nil, 1))

	refs, err := NewSQLiteMetadata(db).ImportedKeys(context.Background(), "main", "CUSTOMER_ADDRESS")
	require.NoError(t, err)
	assert.Equal(t, []KeyRef{
		{LocalColumn: "CUSTOMER_ID", ForeignTable: "CUSTOMER", ForeignColumn: "ID"},
		{LocalColumn: "ADDRESS_ID", ForeignTable: "ADDRESS", ForeignColumn: "ID"},
	}, refs)
}

func TestSQLiteExportedKeysScanAllTables(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("NOT LIKE 'sqlite_%'").
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("ADDRESS").AddRow("CUSTOMER_ADDRESS"))
	mock.ExpectQuery(escape(`PRAGMA "main".foreign_key_list("ADDRESS")`)).
		WillReturnRows(sqlmock.NewRows(foreignKeyColumns))
	mock.ExpectQuery(escape(`PRAGMA "main".foreign_key_list("CUSTOMER_ADDRESS")`)).
		WillReturnRows(sqlmock.NewRows(foreignKeyColumns).
			AddRow(0, 0, "CUSTOMER", "CUSTOMER_ID", "ID", "NO ACTION", "NO ACTION", "NONE").
			AddRow(1, 0, "address", "ADDRESS_ID", "ID", "NO ACTION", "NO ACTION", "NONE"))

	refs, err := NewSQLiteMetadata(db).ExportedKeys(context.Background(), "main", "ADDRESS")
	require.NoError(t, err)
	assert.Equal(t, []KeyRef{{LocalColumn: "ID", ForeignTable: "CUSTOMER_ADDRESS", ForeignColumn: "ADDRESS_ID"}}, refs)
}

func TestSQLiteSchemaExists(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("PRAGMA database_list").
		WillReturnRows(sqlmock.NewRows([]string{"seq", "name", "file"}).AddRow(0, "main", "/tmp/x.db"))

	ok, err := NewSQLiteMetadata(db).SchemaExists(context.Background(), "MAIN")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestExtractChecks(t *testing.T) {
	create := `CREATE TABLE item (
		id INTEGER PRIMARY KEY,
		price REAL CHECK (price > 0),
		code TEXT CHECK(length(code) = 3 AND code <> ')'),
		recheck INTEGER,
		CONSTRAINT qty_ok CHECK (qty BETWEEN 1 AND 10)
	)`

	assert.Equal(t, []string{
		"CHECK (price > 0)",
		"CHECK (length(code) = 3 AND code <> ')')",
		"CHECK (qty BETWEEN 1 AND 10)",
	}, extractChecks(create))

	assert.Empty(t, extractChecks("CREATE TABLE t (id INTEGER)"))
}
