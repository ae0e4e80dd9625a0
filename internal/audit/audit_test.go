package audit

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedEntry() Entry {
	return Entry{
		ID:         "e1",
		At:         time.Date(2016, 3, 4, 13, 37, 42, 0, time.Local),
		Field:      "Concentration",
		EntityName: "P.1001",
		EntityID:   "KLL101",
		Prior:      "",
		New:        "12.5",
	}
}

func TestFormatLine(t *testing.T) {
	got := FormatLine(fixedEntry())
	assert.Equal(t, "2016-03-04 13:37:42: udf: Concentration on P.1001 (id: KLL101) from  to 12.5.\n", got)
}

func TestFileSinkAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changelog.txt")
	sink := NewFileSink(path)

	require.NoError(t, sink.Append(context.Background(), fixedEntry()))
	e2 := fixedEntry()
	e2.Prior = "12.5"
	e2.New = "25"
	require.NoError(t, sink.Append(context.Background(), e2))
	require.NoError(t, sink.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, FormatLine(fixedEntry())+FormatLine(e2), string(data))
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	require.NoError(t, sink.Append(context.Background(), fixedEntry()))
	entries := sink.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "Concentration", entries[0].Field)
}

func TestSQLiteSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "changelog.db")
	sink, err := NewSQLiteSink(path)
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	require.NoError(t, sink.Append(context.Background(), fixedEntry()))

	var field, entityID, newValue string
	row := sink.DB().QueryRow(`SELECT field, entity_id, new_value FROM changelog WHERE id = ?`, "e1")
	require.NoError(t, row.Scan(&field, &entityID, &newValue))
	assert.Equal(t, "Concentration", field)
	assert.Equal(t, "KLL101", entityID)
	assert.Equal(t, "12.5", newValue)
}

func TestPostgresSinkRoundTrip(t *testing.T) {
	// Route the postgres sink onto an embedded database; sqlite accepts the
	// $n placeholder style, so the SQL runs unchanged.
	path := filepath.Join(t.TempDir(), "changelog.db")
	restore := OverridePGOpen(func(_, _ string) (*sql.DB, error) {
		return sql.Open("sqlite", path)
	})
	defer restore()

	sink, err := NewPostgresSink("")
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()
	require.NoError(t, sink.Append(context.Background(), fixedEntry()))

	var field string
	row := sink.DB().QueryRow(`SELECT field FROM changelog WHERE id = $1`, "e1")
	require.NoError(t, row.Scan(&field))
	assert.Equal(t, "Concentration", field)
}

func TestOpenSelectsDriver(t *testing.T) {
	t.Setenv("LIMSEPP_AUDIT_DRIVER", "memory")
	sink, err := Open(DriverFile, "", "")
	require.NoError(t, err)
	_, ok := sink.(*MemorySink)
	assert.True(t, ok)

	t.Setenv("LIMSEPP_AUDIT_DRIVER", "bogus")
	_, err = Open(DriverFile, "", "")
	assert.Error(t, err)
}

func TestOpenDefaultsToFile(t *testing.T) {
	t.Setenv("LIMSEPP_AUDIT_DRIVER", "")
	path := filepath.Join(t.TempDir(), "changelog.txt")
	sink, err := Open("", path, "")
	require.NoError(t, err)
	fs, ok := sink.(*FileSink)
	require.True(t, ok)
	assert.Equal(t, path, fs.Path())
}

func TestNewEntryStampsIdentity(t *testing.T) {
	e := NewEntry("Concentration", "P.1001", "KLL101", "", "12.5")
	assert.NotEmpty(t, e.ID)
	assert.WithinDuration(t, time.Now(), e.At, time.Minute)
}
