// Package audit records the changelog: one entry per value-changing UDF
// copy, durable across runs, in the line format the downstream tooling
// already parses.
package audit

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
)

// Driver identifies a concrete changelog sink implementation.
type Driver string

const (
	DriverFile     Driver = "file"     // append-only text file (default)
	DriverSQLite   Driver = "sqlite"   // embedded sqlite table
	DriverPostgres Driver = "postgres" // shared PostgreSQL table
	DriverMemory   Driver = "memory"   // in-memory (tests)
)

// Entry captures one field change.
type Entry struct {
	ID         string    `json:"id"`
	At         time.Time `json:"at"`
	Field      string    `json:"field"`
	EntityName string    `json:"entity_name"`
	EntityID   string    `json:"entity_id"`
	Prior      string    `json:"prior"`
	New        string    `json:"new"`
}

// NewEntry builds an entry stamped with the current local time and a fresh ID.
func NewEntry(fieldName, entityName, entityID, prior, newValue string) Entry {
	return Entry{
		ID:         uuid.NewString(),
		At:         time.Now(),
		Field:      fieldName,
		EntityName: entityName,
		EntityID:   entityID,
		Prior:      prior,
		New:        newValue,
	}
}

// FormatLine renders the changelog line. The format is load-bearing: operators
// grep these files and the layout predates this implementation.
func FormatLine(e Entry) string {
	return fmt.Sprintf("%s: udf: %s on %s (id: %s) from %s to %s.\n",
		e.At.Format("2006-01-02 15:04:05"), e.Field, e.EntityName, e.EntityID, e.Prior, e.New)
}

// Sink receives changelog entries. Append is called once per value-changing
// copy, sequentially within a run.
type Sink interface {
	Append(ctx context.Context, e Entry) error
	Close() error
}

// Open selects a sink implementation. Environment variables win over the
// passed-in values so deployments can redirect the changelog without
// touching script arguments.
//
//	LIMSEPP_AUDIT_DRIVER: file|sqlite|postgres|memory (default file)
//	LIMSEPP_AUDIT_PATH: changelog path when driver=file or sqlite
//	LIMSEPP_AUDIT_DSN: postgres DSN when driver=postgres
func Open(driver Driver, path, dsn string) (Sink, error) {
	if env := os.Getenv("LIMSEPP_AUDIT_DRIVER"); env != "" {
		driver = Driver(env)
	}
	if driver == "" {
		driver = DriverFile
	}
	if env := os.Getenv("LIMSEPP_AUDIT_PATH"); env != "" {
		path = env
	}
	if env := os.Getenv("LIMSEPP_AUDIT_DSN"); env != "" {
		dsn = env
	}
	switch driver {
	case DriverFile:
		return NewFileSink(path), nil
	case DriverSQLite:
		return NewSQLiteSink(path)
	case DriverPostgres:
		return NewPostgresSink(dsn)
	case DriverMemory:
		return NewMemorySink(), nil
	default:
		return nil, fmt.Errorf("unknown audit driver %s", driver)
	}
}
