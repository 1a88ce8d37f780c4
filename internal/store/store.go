package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // Register pgx as database/sql driver
	_ "modernc.org/sqlite"             // Register sqlite as database/sql driver

	"github.com/shalak/assetgridapp/internal/config"
)

var ErrNotFound = errors.New("not found")

// Querier is implemented by both *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store wraps a database connection and dialect.
type Store struct {
	DB      *sql.DB
	Dialect Dialect
}

// New connects to the configured database and applies driver-specific
// connection settings.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = "postgres"
	}

	dialect := NewDialect(driver)

	db, err := sql.Open(dialect.DriverName(), cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == "postgres" {
		if cfg.PoolSize > 0 {
			db.SetMaxOpenConns(cfg.PoolSize)
		}
	} else if driver == "sqlite" {
		// SQLite: single writer, WAL mode for concurrent reads
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return &Store{DB: db, Dialect: dialect}, nil
}

// Close closes the database connection.
func (s *Store) Close() {
	s.DB.Close()
}

// BeginTx starts a new transaction.
func (s *Store) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return s.DB.BeginTx(ctx, nil)
}

// scanTime normalizes a scanned timestamp column. PostgreSQL returns
// time.Time; SQLite stores text and returns string or []byte.
func scanTime(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC(), nil
	case string:
		return parseTimeString(val)
	case []byte:
		return parseTimeString(string(val))
	case nil:
		return time.Time{}, nil
	}
	return time.Time{}, fmt.Errorf("cannot scan %T as timestamp", v)
}

func parseTimeString(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse timestamp %q", s)
}

// scanBool normalizes a scanned boolean column. SQLite stores booleans as
// integers.
func scanBool(v any) (bool, error) {
	switch val := v.(type) {
	case bool:
		return val, nil
	case int64:
		return val != 0, nil
	case nil:
		return false, nil
	}
	return false, fmt.Errorf("cannot scan %T as boolean", v)
}
