package store

import (
	"fmt"
	"time"
)

// Dialect abstracts database-specific SQL generation and value encoding.
type Dialect interface {
	// Name returns "postgres" or "sqlite".
	Name() string

	// DriverName returns the database/sql driver name ("pgx" or "sqlite").
	DriverName() string

	// NewParamBuilder creates a dialect-aware parameter builder.
	NewParamBuilder() ParamBuilder

	// TimeParam encodes a timestamp for storage.
	TimeParam(t time.Time) any

	// SchemaSQL returns the DDL for all application tables.
	SchemaSQL() string
}

// ParamBuilder accumulates query parameters and generates dialect-specific
// placeholders.
type ParamBuilder interface {
	// Add appends a value and returns the placeholder string.
	Add(v any) string

	// Params returns all accumulated parameter values.
	Params() []any
}

// NewDialect creates a Dialect for the given driver name ("postgres" or
// "sqlite").
func NewDialect(driver string) Dialect {
	switch driver {
	case "sqlite":
		return &SQLiteDialect{}
	default:
		return &PostgresDialect{}
	}
}

// --- PostgreSQL ---

type PostgresDialect struct{}

func (d *PostgresDialect) Name() string       { return "postgres" }
func (d *PostgresDialect) DriverName() string { return "pgx" }

func (d *PostgresDialect) NewParamBuilder() ParamBuilder { return &pgParamBuilder{} }

func (d *PostgresDialect) TimeParam(t time.Time) any { return t.UTC() }

type pgParamBuilder struct {
	params []any
	n      int
}

func (p *pgParamBuilder) Add(v any) string {
	p.n++
	p.params = append(p.params, v)
	return fmt.Sprintf("$%d", p.n)
}

func (p *pgParamBuilder) Params() []any { return p.params }

// --- SQLite ---

type SQLiteDialect struct{}

func (d *SQLiteDialect) Name() string       { return "sqlite" }
func (d *SQLiteDialect) DriverName() string { return "sqlite" }

func (d *SQLiteDialect) NewParamBuilder() ParamBuilder { return &sqliteParamBuilder{} }

// Timestamps are stored as RFC3339 text so scans are unambiguous.
func (d *SQLiteDialect) TimeParam(t time.Time) any {
	return t.UTC().Format(time.RFC3339Nano)
}

type sqliteParamBuilder struct {
	params []any
	n      int
}

func (p *sqliteParamBuilder) Add(v any) string {
	p.n++
	p.params = append(p.params, v)
	return fmt.Sprintf("?%d", p.n)
}

func (p *sqliteParamBuilder) Params() []any { return p.params }
