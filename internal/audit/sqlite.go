package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver
)

// SQLiteSink persists changelog entries to an embedded sqlite table, one row
// per entry. Suited to hosts where scripts run without a database server.
type SQLiteSink struct {
	db   *sql.DB
	path string
}

// NewSQLiteSink opens (creating if needed) the changelog database at path.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	if path == "" {
		path = "changelog.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS changelog (
		id TEXT PRIMARY KEY,
		at TEXT NOT NULL,
		field TEXT NOT NULL,
		entity_name TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		prior TEXT NOT NULL,
		new_value TEXT NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create changelog table: %w", err)
	}
	return &SQLiteSink{db: db, path: path}, nil
}

// Append inserts one row.
func (s *SQLiteSink) Append(ctx context.Context, e Entry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO changelog(id, at, field, entity_name, entity_id, prior, new_value) VALUES(?,?,?,?,?,?,?)`,
		e.ID, e.At.Format("2006-01-02 15:04:05"), e.Field, e.EntityName, e.EntityID, e.Prior, e.New)
	if err != nil {
		return fmt.Errorf("insert changelog: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteSink) Close() error { return s.db.Close() }

// Path returns the configured database path.
func (s *SQLiteSink) Path() string { return s.path }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *SQLiteSink) DB() *sql.DB { return s.db }
