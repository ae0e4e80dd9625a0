package epp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"limsepp/internal/audit"
	"limsepp/pkg/field"
)

func TestRunnerCountsOutcomes(t *testing.T) {
	src := process(map[string]field.Value{"Status": field.String("Done")})
	changed := project(nil)
	unchanged := project(map[string]field.Value{"Status": field.String("Done")})
	sink := audit.NewMemorySink()
	r := NewRunner(sink, nil)

	err := r.CopyToAll(context.Background(), src, "Status", "", []field.Entity{changed, unchanged})

	require.NoError(t, err)
	assert.Equal(t, 1, r.Updated)
	assert.Equal(t, 1, r.Unchanged)
	assert.Equal(t, 0, r.Skipped)
	assert.Len(t, sink.Entries(), 1)
	assert.Equal(t, "Updated 1 project(s), out of 2 in total.", r.Abstract("project"))
}

func TestRunnerSkipsWhenSourceUDFUndefined(t *testing.T) {
	src := process(nil)
	dst := project(nil)
	r := NewRunner(nil, nil)

	err := r.CopyToAll(context.Background(), src, "Status", "", []field.Entity{dst})

	require.NoError(t, err)
	assert.Equal(t, 1, r.Skipped)
	assert.Zero(t, dst.PersistCalls())
	assert.Equal(t,
		"Updated 0 project(s), out of 1 in total. Failed to update 1 project(s) due to wrong source udf info.",
		r.Abstract("project"))
}

func TestRunnerAbortsOnFirstFatalPersist(t *testing.T) {
	src := process(map[string]field.Value{"Status": field.String("Done")})
	failing := project(nil)
	failing.FailPersistWith(field.TypeMismatchError{Entity: "P1", Field: "Status"})
	later := project(nil)
	r := NewRunner(nil, nil)

	err := r.CopyToAll(context.Background(), src, "Status", "", []field.Entity{failing, later})

	require.Error(t, err)
	assert.True(t, field.IsFatalPersist(err))
	assert.Zero(t, later.PersistCalls(), "no further copies after a fatal write")
	assert.Equal(t, 0, r.Updated)
}

func TestRunnerCopyPairs(t *testing.T) {
	rowWith := field.NewMapEntity("Sample1", "Sample1", "result file")
	rowWith.SetUDF("Concentration", field.String("0.5"))
	rowWithout := field.NewMapEntity("Sample2", "Sample2", "result file")

	dst1 := field.NewMapEntity("ART1", "Sample1", "artifact")
	dst2 := field.NewMapEntity("ART2", "Sample2", "artifact")
	r := NewRunner(nil, nil)

	err := r.CopyPairs(context.Background(), "Concentration", "", []CopyPair{
		{Source: rowWith, Destination: dst1},
		{Source: rowWithout, Destination: dst2},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, r.Updated)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, field.String("0.5"), field.Read(dst1, "Concentration"))
}
