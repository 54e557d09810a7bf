// Package engine reverse-engineers a slice of a live database into a
// schema.Schema.
//
// An Engine is configured with seed tables, their filters and optional
// explicit joins, then built once. Building discovers the seeds, expands
// along foreign keys for a fixed number of levels, collects the rows
// matching the filters and normalizes constraints. The engine holds one
// database session for the whole build and is not safe for concurrent use.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tordrt/dbsnap/internal/db"
	"github.com/tordrt/dbsnap/internal/expr"
	"github.com/tordrt/dbsnap/internal/schema"
)

// Option configures an Engine
type Option func(*Engine)

// WithSchema sets the database schema to read from
func WithSchema(name string) Option {
	return func(e *Engine) { e.schemaName = name }
}

// WithLevel sets how many foreign key hops are followed from the seeds
func WithLevel(level int) Option {
	return func(e *Engine) {
		if level >= 0 {
			e.level = level
		}
	}
}

// WithDDLOnly skips row collection
func WithDDLOnly(ddlOnly bool) Option {
	return func(e *Engine) { e.ddlOnly = ddlOnly }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

type seed struct {
	name    string
	filters []*expr.Expression
}

type join struct {
	table    string
	relation *schema.Relation
}

// Engine builds a Schema from a database
type Engine struct {
	connector  db.Connector
	schemaName string
	level      int
	ddlOnly    bool
	logger     *slog.Logger
	now        func() time.Time

	seeds []*seed
	joins []join
	state State
	built bool
}

// New creates an engine reading through connector
func New(connector db.Connector, opts ...Option) *Engine {
	e := &Engine{
		connector: connector,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RegisterTable adds a seed table. Registering the same table again adds
// its filters to the earlier registration.
func (e *Engine) RegisterTable(name string, filters ...*expr.Expression) *Engine {
	for _, s := range e.seeds {
		if schema.Key(s.name) == schema.Key(name) {
			s.filters = append(s.filters, filters...)
			return e
		}
	}
	e.seeds = append(e.seeds, &seed{name: name, filters: filters})
	return e
}

// RegisterRelation adds an explicit join to the query of table. The
// relation must start or end at table; the other end is added to the
// schema when missing.
func (e *Engine) RegisterRelation(table string, relation *schema.Relation) *Engine {
	e.joins = append(e.joins, join{table: table, relation: relation})
	return e
}

// State returns the current build phase
func (e *Engine) State() State { return e.state }

// Build runs the engine. It can be called once; later calls return
// ErrAlreadyBuilt whether or not the first one succeeded.
func (e *Engine) Build(ctx context.Context) (*schema.Schema, error) {
	if e.built {
		return nil, ErrAlreadyBuilt
	}
	e.built = true
	start := e.now()

	session, err := e.connector.Open(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open session: %w", err)
	}
	defer func() {
		if cerr := session.Close(ctx); cerr != nil {
			e.logger.Warn("failed to close session", "error", cerr)
		}
	}()

	b := &builder{
		Engine:   e,
		session:  session,
		expanded: make(map[string]bool),
	}

	e.transition(Discovering)
	if err := b.discover(ctx); err != nil {
		return nil, err
	}

	e.transition(Expanding)
	for ; e.level > 0; e.level-- {
		n, err := b.expand(ctx)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			e.logger.Debug("expansion reached a fixed point", "remaining_levels", e.level)
			e.level = 0
			break
		}
	}

	if !e.ddlOnly {
		e.transition(Collecting)
		if err := b.collect(ctx); err != nil {
			return nil, err
		}
	}

	e.transition(Finalizing)
	if err := b.finalize(ctx); err != nil {
		return nil, err
	}

	b.schema.GeneratedAt = e.now()
	b.schema.BuildTime = b.schema.GeneratedAt.Sub(start)
	e.transition(Done)

	e.logger.Info("schema built",
		"schema", b.schema.Name,
		"tables", b.schema.Len(),
		"records", b.schema.RecordCount(),
		"elapsed", b.schema.BuildTime,
	)
	return b.schema, nil
}

func (e *Engine) transition(s State) {
	e.state = s
	e.logger.Debug("build state", "state", s.String())
}

// builder carries the state of one Build
type builder struct {
	*Engine
	session  db.Session
	schema   *schema.Schema
	expanded map[string]bool
}

func (b *builder) discover(ctx context.Context) error {
	ok, err := b.session.SchemaExists(ctx, b.schemaName)
	if err != nil {
		return fmt.Errorf("%w: schema %s: %w", ErrMetadataQuery, b.schemaName, err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrSchemaNotFound, b.schemaName)
	}
	b.schema = schema.New(b.schemaName, b.session.Dialect())

	for _, s := range b.seeds {
		t, err := b.lookup(ctx, s.name)
		if err != nil {
			return err
		}
		for _, f := range s.filters {
			if err := t.AddStatement(f); err != nil {
				return err
			}
		}
	}

	for _, j := range b.joins {
		if err := b.attach(ctx, j); err != nil {
			return err
		}
	}
	return nil
}

// lookup resolves a user supplied table name and loads the table
func (b *builder) lookup(ctx context.Context, name string) (*schema.Table, error) {
	stored, found, err := b.session.TableName(ctx, b.schemaName, name)
	if err != nil {
		return nil, fmt.Errorf("%w: table %s: %w", ErrMetadataQuery, name, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownTable, b.schemaName, name)
	}
	return b.table(ctx, stored)
}

func (b *builder) attach(ctx context.Context, j join) error {
	r := j.relation
	if schema.Key(r.SourceTable) != schema.Key(j.table) && schema.Key(r.TargetTable) != schema.Key(j.table) {
		return fmt.Errorf("relation %s does not touch table %s", r, j.table)
	}
	anchor, err := b.lookup(ctx, j.table)
	if err != nil {
		return err
	}
	source, err := b.lookup(ctx, r.SourceTable)
	if err != nil {
		return err
	}
	target, err := b.lookup(ctx, r.TargetTable)
	if err != nil {
		return err
	}
	if err := r.Build(source, target); err != nil {
		return err
	}
	anchor.AddJoin(r)
	return nil
}

// table returns the table stored under name, loading its metadata the
// first time it is seen
func (b *builder) table(ctx context.Context, name string) (*schema.Table, error) {
	t, created := b.schema.AddTable(name)
	if !created {
		return t, nil
	}
	if err := b.load(ctx, t); err != nil {
		return nil, err
	}
	b.logger.Debug("table discovered", "table", t.Name, "alias", t.Alias())
	return t, nil
}

func (b *builder) load(ctx context.Context, t *schema.Table) error {
	columns, err := b.session.Columns(ctx, b.schemaName, t.Name)
	if err != nil {
		return fmt.Errorf("%w: columns of %s: %w", ErrMetadataQuery, t.Name, err)
	}
	pk, err := b.session.PrimaryKeyColumns(ctx, b.schemaName, t.Name)
	if err != nil {
		return fmt.Errorf("%w: primary key of %s: %w", ErrMetadataQuery, t.Name, err)
	}

	inPK := make(map[string]bool, len(pk))
	for _, name := range pk {
		inPK[schema.Key(name)] = true
	}
	for _, c := range columns {
		t.AddColumn(schema.Column{
			Ordinal:         c.Ordinal,
			Name:            c.Name,
			Type:            c.DeclaredType,
			Nullable:        c.Nullable,
			IsPrimaryKey:    inPK[schema.Key(c.Name)],
			IsAutoIncrement: c.AutoIncrement,
			DefaultValue:    c.Default,
		})
	}
	return nil
}

// expand follows the keys of every table not yet expanded and returns how
// many tables it expanded
func (b *builder) expand(ctx context.Context) (int, error) {
	var pending []*schema.Table
	for _, t := range b.schema.Tables() {
		if !b.expanded[schema.Key(t.Name)] {
			pending = append(pending, t)
		}
	}

	for _, t := range pending {
		b.expanded[schema.Key(t.Name)] = true

		imported, err := b.session.ImportedKeys(ctx, b.schemaName, t.Name)
		if err != nil {
			return 0, fmt.Errorf("%w: imported keys of %s: %w", ErrMetadataQuery, t.Name, err)
		}
		for _, ref := range imported {
			rel := schema.NewRelation(t.Name, ref.LocalColumn, ref.ForeignTable, ref.ForeignColumn)
			if err := b.link(ctx, t, ref.ForeignTable, rel); err != nil {
				return 0, err
			}
		}

		exported, err := b.session.ExportedKeys(ctx, b.schemaName, t.Name)
		if err != nil {
			return 0, fmt.Errorf("%w: exported keys of %s: %w", ErrMetadataQuery, t.Name, err)
		}
		for _, ref := range exported {
			rel := schema.NewRelation(ref.ForeignTable, ref.ForeignColumn, t.Name, ref.LocalColumn)
			if err := b.link(ctx, t, ref.ForeignTable, rel); err != nil {
				return 0, err
			}
		}

		b.logger.Debug("table expanded", "table", t.Name, "imported", len(imported), "exported", len(exported))
	}
	return len(pending), nil
}

// link connects t to its neighbor through rel. A neighbor seen for the
// first time inherits t's filters.
func (b *builder) link(ctx context.Context, t *schema.Table, neighborName string, rel *schema.Relation) error {
	_, known := b.schema.Table(neighborName)
	neighbor, err := b.table(ctx, neighborName)
	if err != nil {
		return err
	}

	source, target := t, neighbor
	if schema.Key(rel.SourceTable) != schema.Key(t.Name) {
		source, target = neighbor, t
	}
	if err := rel.Build(source, target); err != nil {
		return err
	}
	rel = source.AddFKRelation(rel)
	target.AddPKRelation(rel)

	if !known {
		for _, stmt := range t.Statements() {
			if err := neighbor.AddStatement(stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *builder) collect(ctx context.Context) error {
	for _, t := range b.schema.Tables() {
		q := buildSelect(t)
		if len(q.unreachable) > 0 {
			for _, stmt := range q.unreachable {
				b.logger.Warn("filter cannot be joined, collecting no rows", "table", t.Name, "filter", stmt.String())
			}
			continue
		}
		b.logger.Debug("collecting rows", "table", t.Name, "query", q.sql)

		rows, err := b.session.Query(ctx, q.sql)
		if err != nil {
			return fmt.Errorf("%w: table %s: %w", ErrRowCollection, t.Name, err)
		}
		for _, row := range rows {
			t.AddRecord(schema.NewRecord(row.Columns, row.Values))
		}
	}
	return nil
}

func (b *builder) finalize(ctx context.Context) error {
	for _, t := range b.schema.Tables() {
		uniques, err := b.session.UniqueConstraints(ctx, b.schemaName, t.Name)
		if err != nil {
			return fmt.Errorf("%w: unique constraints of %s: %w", ErrMetadataQuery, t.Name, err)
		}
		checks, err := b.session.CheckConstraints(ctx, b.schemaName, t.Name)
		if err != nil {
			return fmt.Errorf("%w: check constraints of %s: %w", ErrMetadataQuery, t.Name, err)
		}

		keys := make([][]string, len(uniques))
		for i, u := range uniques {
			keys[i] = u.Columns
		}
		t.NormalizeConstraints(keys, checks)
	}
	return nil
}
