package engine

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/dbsnap/internal/db"
	"github.com/tordrt/dbsnap/internal/expr"
	"github.com/tordrt/dbsnap/internal/schema"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func newEngine(f *fakeSession, opts ...Option) *Engine {
	return New(f, append([]Option{WithSchema("main"), WithLogger(quiet)}, opts...)...)
}

func tableNames(s *schema.Schema) []string {
	var names []string
	for _, t := range s.Tables() {
		names = append(names, t.Name)
	}
	return names
}

func TestBuildLevelZeroKeepsSeedsOnly(t *testing.T) {
	f := customerDB()
	e := newEngine(f).RegisterTable("address")

	s, err := e.Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ADDRESS"}, tableNames(s))
	assert.Equal(t, "t1", s.Tables()[0].Alias())
	assert.Empty(t, s.Tables()[0].Relations())
	assert.Equal(t, Done, e.State())
	assert.Equal(t, 1, f.closed)
}

func TestBuildExpandsByLevel(t *testing.T) {
	f := customerDB()
	s, err := newEngine(f, WithLevel(1), WithDDLOnly(true)).RegisterTable("ADDRESS").Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ADDRESS", "CUSTOMER_ADDRESS"}, tableNames(s))

	f = customerDB()
	s, err = newEngine(f, WithLevel(2), WithDDLOnly(true)).RegisterTable("ADDRESS").Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"ADDRESS", "CUSTOMER_ADDRESS", "CUSTOMER"}, tableNames(s))

	link, _ := s.Table("CUSTOMER_ADDRESS")
	assert.Len(t, link.FKRelations(), 2)
	assert.Empty(t, link.PKRelations())

	address, _ := s.Table("ADDRESS")
	require.Len(t, address.PKRelations(), 1)
	rel := address.PKRelations()[0]
	assert.Equal(t, "t2.ADDRESS_ID = t1.ID", rel.Condition())
	assert.Same(t, rel, link.FKRelations()[0])
}

func TestBuildTerminatesOnCycles(t *testing.T) {
	f := &fakeSession{
		schemaName: "main",
		tables: []*fakeTable{
			{
				name:    "EMPLOYEE",
				columns: []db.ColumnInfo{intColumn(1, "ID"), intColumn(2, "MANAGER_ID"), intColumn(3, "DEPT_ID")},
				pk:      []string{"ID"},
				fks: []db.KeyRef{
					{LocalColumn: "MANAGER_ID", ForeignTable: "EMPLOYEE", ForeignColumn: "ID"},
					{LocalColumn: "DEPT_ID", ForeignTable: "DEPT", ForeignColumn: "ID"},
				},
			},
			{
				name:    "DEPT",
				columns: []db.ColumnInfo{intColumn(1, "ID"), intColumn(2, "HEAD_ID")},
				pk:      []string{"ID"},
				fks:     []db.KeyRef{{LocalColumn: "HEAD_ID", ForeignTable: "EMPLOYEE", ForeignColumn: "ID"}},
			},
		},
	}

	s, err := newEngine(f, WithLevel(1000), WithDDLOnly(true)).RegisterTable("EMPLOYEE").Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"EMPLOYEE", "DEPT"}, tableNames(s))
	employee, _ := s.Table("EMPLOYEE")
	assert.Len(t, employee.Relations(), 3)
}

func TestBuildTwiceFails(t *testing.T) {
	f := customerDB()
	e := newEngine(f).RegisterTable("ADDRESS")

	_, err := e.Build(context.Background())
	require.NoError(t, err)

	_, err = e.Build(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyBuilt)
	assert.Equal(t, 1, f.opened)
}

func TestBuildAfterFailureFails(t *testing.T) {
	f := customerDB()
	e := newEngine(f).RegisterTable("NOPE")

	_, err := e.Build(context.Background())
	require.ErrorIs(t, err, ErrUnknownTable)

	_, err = e.Build(context.Background())
	assert.ErrorIs(t, err, ErrAlreadyBuilt)
}

func TestBuildSchemaNotFound(t *testing.T) {
	f := customerDB()
	_, err := New(f, WithSchema("other"), WithLogger(quiet)).RegisterTable("ADDRESS").Build(context.Background())

	assert.ErrorIs(t, err, ErrSchemaNotFound)
	assert.Equal(t, 1, f.closed)
}

func TestBuildWrapsMetadataFailure(t *testing.T) {
	cause := errors.New("connection reset")
	f := customerDB()
	f.columnsErr = cause

	_, err := newEngine(f).RegisterTable("ADDRESS").Build(context.Background())
	assert.ErrorIs(t, err, ErrMetadataQuery)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, f.closed)
}

func TestBuildWrapsRowFailure(t *testing.T) {
	cause := errors.New("syntax error")
	f := customerDB()
	f.queryErr = cause

	_, err := newEngine(f).RegisterTable("ADDRESS").Build(context.Background())
	assert.ErrorIs(t, err, ErrRowCollection)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 1, f.closed)
}

func TestBuildDDLOnlyRunsNoQueries(t *testing.T) {
	f := customerDB()
	s, err := newEngine(f, WithLevel(2), WithDDLOnly(true)).RegisterTable("ADDRESS").Build(context.Background())
	require.NoError(t, err)

	assert.Empty(t, f.queries)
	assert.Zero(t, s.RecordCount())
}

func TestBuildCollectsRecords(t *testing.T) {
	f := customerDB()
	s, err := newEngine(f, WithLevel(2)).
		RegisterTable("ADDRESS", expr.ForColumn("ID").Equals(1)).
		Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{
		`SELECT t1."ID", t1."STREET" FROM "ADDRESS" t1 WHERE t1.ID = 1`,
		`SELECT t2."CUSTOMER_ID", t2."ADDRESS_ID" FROM "CUSTOMER_ADDRESS" t2 WHERE EXISTS (SELECT 1 FROM "ADDRESS" t1 WHERE t2."ADDRESS_ID" = t1."ID" AND t1.ID = 1)`,
		`SELECT t3."ID", t3."NAME", t3."EMAIL" FROM "CUSTOMER" t3 WHERE EXISTS (SELECT 1 FROM "CUSTOMER_ADDRESS" t2 JOIN "ADDRESS" t1 ON t2."ADDRESS_ID" = t1."ID" WHERE t2."CUSTOMER_ID" = t3."ID" AND t1.ID = 1)`,
	}, f.queries)

	address, _ := s.Table("ADDRESS")
	require.Len(t, address.Records(), 1)
	id, ok := address.Records()[0].Get("ID")
	require.True(t, ok)
	assert.Equal(t, "1", id.String())
	assert.Equal(t, 3, s.RecordCount())
}

func TestBuildNormalizesConstraints(t *testing.T) {
	f := customerDB()
	s, err := newEngine(f, WithLevel(2), WithDDLOnly(true)).RegisterTable("CUSTOMER").Build(context.Background())
	require.NoError(t, err)

	customer, _ := s.Table("CUSTOMER")
	email, _ := customer.Column("EMAIL")
	assert.True(t, email.IsUnique)
	assert.Equal(t, []schema.Constraint{{Kind: schema.CheckConstraint, Expression: "CHECK (length(NAME) > 0)"}}, customer.Constraints)

	link, _ := s.Table("CUSTOMER_ADDRESS")
	assert.Equal(t, []schema.Constraint{{Kind: schema.PrimaryKeyConstraint, Columns: []string{"CUSTOMER_ID", "ADDRESS_ID"}}}, link.Constraints)
}

func TestBuildExplicitRelation(t *testing.T) {
	f := customerDB()
	rel := schema.NewRelation("CUSTOMER_ADDRESS", "ADDRESS_ID", "ADDRESS", "ID")
	rel.Kind = schema.JoinInner

	s, err := newEngine(f).
		RegisterTable("address").
		RegisterRelation("address", rel).
		Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"ADDRESS", "CUSTOMER_ADDRESS"}, tableNames(s))
	assert.Contains(t, f.queries, `SELECT t1."ID", t1."STREET" FROM "ADDRESS" t1 WHERE EXISTS (SELECT 1 FROM "CUSTOMER_ADDRESS" t2 WHERE t2."ADDRESS_ID" = t1."ID")`)
}

func TestBuildCollectsNoRowsForUnreachableFilter(t *testing.T) {
	f := chainDB()
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	s, err := newEngine(f, WithLevel(3), WithLogger(logger)).
		RegisterTable("A", expr.ForColumn("ID").Equals(1)).
		Build(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "D"}, tableNames(s))
	require.Len(t, f.queries, 3)
	for _, q := range f.queries {
		assert.Contains(t, q, "t1.ID = 1")
	}

	for _, name := range []string{"A", "B", "C"} {
		table, _ := s.Table(name)
		assert.Len(t, table.Records(), 1, name)
	}
	d, _ := s.Table("D")
	assert.Empty(t, d.Records())
	assert.Contains(t, logs.String(), "collecting no rows")
}

func TestBuildRecordsTimes(t *testing.T) {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	clock := func() time.Time {
		calls++
		return base.Add(time.Duration(calls-1) * 250 * time.Millisecond)
	}

	s, err := newEngine(customerDB(), WithClock(clock)).RegisterTable("ADDRESS").Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, s.BuildTime)
	assert.Equal(t, base.Add(250*time.Millisecond), s.GeneratedAt)
}

func TestBuildSeedFilterBoundElsewhere(t *testing.T) {
	f := customerDB()
	filter := expr.ForColumn("ID").Equals(1)
	require.NoError(t, filter.ApplyAlias("t9"))

	s, err := newEngine(f).RegisterTable("ADDRESS", filter).Build(context.Background())
	require.NoError(t, err)

	address, _ := s.Table("ADDRESS")
	assert.Len(t, address.Statements(), 1)
	assert.Empty(t, f.queries)
	assert.Empty(t, address.Records())
}
