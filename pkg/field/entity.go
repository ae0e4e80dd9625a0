package field

import "context"

// Entity is the capability surface a copy operation needs from a LIMS
// record. Remote-backed implementations live in internal/limsapi; MapEntity
// provides an in-memory implementation for tests and parsed result files.
type Entity interface {
	// ID returns the LIMS identifier of the record.
	ID() string
	// Name returns the human-readable name used in changelog lines.
	Name() string
	// Kind returns the record category (process, artifact, sample, project).
	Kind() string
	// UDF looks up a user-defined field by name.
	UDF(name string) (Value, bool)
	// SetUDF stages a user-defined field value. The write becomes visible
	// remotely only after Persist.
	SetUDF(name string, v Value)
	// Attribute looks up a native (non-UDF) field by name.
	Attribute(name string) (Value, bool)
	// Persist writes staged changes back to the LIMS. Failures are reported
	// as TypeMismatchError or RejectedError.
	Persist(ctx context.Context) error
}

// Read resolves a field on an entity: the UDF mapping is consulted first,
// then a same-named native attribute. A field found in neither yields the
// absent sentinel rather than an error.
func Read(e Entity, name string) Value {
	if v, ok := e.UDF(name); ok {
		return v
	}
	if v, ok := e.Attribute(name); ok {
		return v
	}
	return Absent()
}
