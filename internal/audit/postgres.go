package audit

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver
)

const (
	pgDriver = "pgx"
	// Default DSN matches the shared changelog database on the LIMS host.
	pgDefaultDSN = "postgres://localhost/limsepp?sslmode=disable"
)

var (
	pgOpen   = sql.Open
	pgOpenMu sync.Mutex
)

// PostgresSink persists changelog entries to a PostgreSQL table shared by
// all scripts on the server.
type PostgresSink struct {
	db *sql.DB
}

// NewPostgresSink opens the shared changelog database (falls back to
// pgDefaultDSN) and ensures the changelog table exists.
func NewPostgresSink(dsn string) (*PostgresSink, error) {
	if dsn == "" {
		dsn = pgDefaultDSN
	}
	pgOpenMu.Lock()
	db, err := pgOpen(pgDriver, dsn)
	pgOpenMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	ddl := `CREATE TABLE IF NOT EXISTS changelog (
		id TEXT PRIMARY KEY,
		at TIMESTAMPTZ NOT NULL,
		field TEXT NOT NULL,
		entity_name TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		prior TEXT NOT NULL,
		new_value TEXT NOT NULL
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return nil, fmt.Errorf("ensure changelog table: %w", err)
	}
	return &PostgresSink{db: db}, nil
}

// Append inserts one row.
func (s *PostgresSink) Append(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO changelog(id, at, field, entity_name, entity_id, prior, new_value) VALUES($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.At, e.Field, e.EntityName, e.EntityID, e.Prior, e.New)
	if err != nil {
		return fmt.Errorf("insert changelog: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *PostgresSink) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *PostgresSink) DB() *sql.DB { return s.db }

// OverridePGOpen swaps the sql.Open function for tests and returns a restore
// function.
func OverridePGOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	pgOpenMu.Lock()
	defer pgOpenMu.Unlock()
	prev := pgOpen
	pgOpen = fn
	return func() {
		pgOpenMu.Lock()
		defer pgOpenMu.Unlock()
		pgOpen = prev
	}
}
