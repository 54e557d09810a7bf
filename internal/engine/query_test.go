package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tordrt/dbsnap/internal/expr"
	"github.com/tordrt/dbsnap/internal/schema"
)

func link(t *testing.T, child, parent *schema.Table, childCol, parentCol string) *schema.Relation {
	t.Helper()
	r := schema.NewRelation(child.Name, childCol, parent.Name, parentCol)
	require.NoError(t, r.Build(child, parent))
	r = child.AddFKRelation(r)
	parent.AddPKRelation(r)
	return r
}

func TestBuildSelectWithoutFilters(t *testing.T) {
	s := schema.New("main", "sqlite")
	item, _ := s.AddTable("ITEM")
	item.AddColumn(schema.Column{Name: "ID"})
	item.AddColumn(schema.Column{Name: "LABEL"})

	q := buildSelect(item)
	assert.Equal(t, `SELECT t1."ID", t1."LABEL" FROM "ITEM" t1`, q.sql)
	assert.Empty(t, q.unreachable)
}

func TestBuildSelectWithoutColumns(t *testing.T) {
	s := schema.New("main", "sqlite")
	item, _ := s.AddTable("ITEM")

	assert.Equal(t, `SELECT t1.* FROM "ITEM" t1`, buildSelect(item).sql)
}

func TestBuildSelectQuotesReservedNames(t *testing.T) {
	s := schema.New("shop", "mysql")
	order, _ := s.AddTable("order")
	order.AddColumn(schema.Column{Name: "group"})

	assert.Equal(t, "SELECT t1.`group` FROM `order` t1", buildSelect(order).sql)

	s = schema.New("public", "postgresql")
	user, _ := s.AddTable("User")
	user.AddColumn(schema.Column{Name: "Name"})

	assert.Equal(t, `SELECT t1."Name" FROM "User" t1`, buildSelect(user).sql)
}

func TestBuildSelectGroupsCompositeKeys(t *testing.T) {
	s := schema.New("main", "sqlite")
	order, _ := s.AddTable("ORDERS")
	order.AddColumn(schema.Column{Name: "REGION"})
	order.AddColumn(schema.Column{Name: "NO"})
	line, _ := s.AddTable("ORDER_LINE")
	line.AddColumn(schema.Column{Name: "ORDER_REGION"})
	line.AddColumn(schema.Column{Name: "ORDER_NO"})

	link(t, line, order, "ORDER_REGION", "REGION")
	link(t, line, order, "ORDER_NO", "NO")

	require.NoError(t, order.AddStatement(expr.ForColumn("REGION").Equals("EU")))
	for _, stmt := range order.Statements() {
		require.NoError(t, line.AddStatement(stmt))
	}

	q := buildSelect(line)
	assert.Equal(t,
		`SELECT t2."ORDER_REGION", t2."ORDER_NO" FROM "ORDER_LINE" t2 WHERE EXISTS (SELECT 1 FROM "ORDERS" t1 WHERE t2."ORDER_NO" = t1."NO" AND t2."ORDER_REGION" = t1."REGION" AND t1.REGION = 'EU')`,
		q.sql)
}

func TestBuildSelectWrapsMultipleFilters(t *testing.T) {
	s := schema.New("main", "sqlite")
	item, _ := s.AddTable("ITEM")
	item.AddColumn(schema.Column{Name: "ID"})

	require.NoError(t, item.AddStatement(expr.ForColumn("ID").GreaterThan(1).Or(expr.ForColumn("ID").Equals(0))))
	require.NoError(t, item.AddStatement(expr.ForColumn("ID").LessThan(10)))

	assert.Equal(t,
		`SELECT t1."ID" FROM "ITEM" t1 WHERE (t1.ID > 1 or t1.ID = 0) AND (t1.ID < 10)`,
		buildSelect(item).sql)
}

func TestBuildSelectMixesOwnAndJoinedFilters(t *testing.T) {
	s := schema.New("main", "sqlite")
	order, _ := s.AddTable("ORDERS")
	order.AddColumn(schema.Column{Name: "NO"})
	line, _ := s.AddTable("ORDER_LINE")
	line.AddColumn(schema.Column{Name: "QTY"})
	link(t, line, order, "ORDER_NO", "NO")

	require.NoError(t, order.AddStatement(expr.ForColumn("NO").Equals(5)))
	for _, stmt := range order.Statements() {
		require.NoError(t, line.AddStatement(stmt))
	}
	require.NoError(t, line.AddStatement(expr.ForColumn("QTY").GreaterThan(0)))

	assert.Equal(t,
		`SELECT t2."QTY" FROM "ORDER_LINE" t2 WHERE (t2.QTY > 0) AND EXISTS (SELECT 1 FROM "ORDERS" t1 WHERE t2."ORDER_NO" = t1."NO" AND (t1.NO = 5))`,
		buildSelect(line).sql)
}

func TestBuildSelectReportsUnreachableFilters(t *testing.T) {
	s := schema.New("main", "sqlite")
	a, _ := s.AddTable("A")
	b, _ := s.AddTable("B")
	c, _ := s.AddTable("C")
	d, _ := s.AddTable("D")
	link(t, b, a, "A_ID", "ID")
	link(t, c, b, "B_ID", "ID")
	link(t, d, c, "C_ID", "ID")

	far := expr.ForColumn("ID").Equals(1)
	require.NoError(t, a.AddStatement(far))
	require.NoError(t, d.AddStatement(far))

	q := buildSelect(d)
	assert.Empty(t, q.sql)
	assert.Equal(t, []*expr.Expression{far}, q.unreachable)
}

func TestBuildSelectSkipsSelfReference(t *testing.T) {
	s := schema.New("main", "sqlite")
	emp, _ := s.AddTable("EMPLOYEE")
	emp.AddColumn(schema.Column{Name: "ID"})
	link(t, emp, emp, "MANAGER_ID", "ID")

	explicit := schema.NewRelation("EMPLOYEE", "MANAGER_ID", "EMPLOYEE", "ID")
	require.NoError(t, explicit.Build(emp, emp))
	emp.AddJoin(explicit)

	assert.Equal(t, `SELECT t1."ID" FROM "EMPLOYEE" t1`, buildSelect(emp).sql)
}

func TestBuildSelectDropsUnfilteredOuterJoin(t *testing.T) {
	s := schema.New("main", "sqlite")
	address, _ := s.AddTable("ADDRESS")
	address.AddColumn(schema.Column{Name: "ID"})
	customerAddress, _ := s.AddTable("CUSTOMER_ADDRESS")

	r := schema.NewRelation("CUSTOMER_ADDRESS", "ADDRESS_ID", "ADDRESS", "ID")
	r.Kind = schema.JoinLeft
	require.NoError(t, r.Build(customerAddress, address))
	address.AddJoin(r)

	assert.Equal(t, `SELECT t1."ID" FROM "ADDRESS" t1`, buildSelect(address).sql)
}
