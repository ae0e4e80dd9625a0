package field

import "context"

// MapEntity is an in-memory Entity. It backs tests and also presents a
// parsed result-file row as a copy source, so the same copy path serves
// file-to-LIMS and LIMS-to-LIMS transfers.
type MapEntity struct {
	EntityID   string
	EntityName string
	EntityKind string
	udfs       map[string]Value
	attrs      map[string]Value

	persisted  int
	persistErr error
}

// NewMapEntity constructs an empty in-memory entity.
func NewMapEntity(id, name, kind string) *MapEntity {
	return &MapEntity{
		EntityID:   id,
		EntityName: name,
		EntityKind: kind,
		udfs:       make(map[string]Value),
		attrs:      make(map[string]Value),
	}
}

// ID returns the entity identifier.
func (m *MapEntity) ID() string { return m.EntityID }

// Name returns the entity name.
func (m *MapEntity) Name() string { return m.EntityName }

// Kind returns the entity category.
func (m *MapEntity) Kind() string { return m.EntityKind }

// UDF looks up a user-defined field.
func (m *MapEntity) UDF(name string) (Value, bool) {
	v, ok := m.udfs[name]
	return v, ok
}

// SetUDF stages a user-defined field value.
func (m *MapEntity) SetUDF(name string, v Value) { m.udfs[name] = v }

// Attribute looks up a native field.
func (m *MapEntity) Attribute(name string) (Value, bool) {
	v, ok := m.attrs[name]
	return v, ok
}

// SetAttribute sets a native field, shadowable by a same-named UDF.
func (m *MapEntity) SetAttribute(name string, v Value) { m.attrs[name] = v }

// Persist counts the call and returns the configured error, if any.
func (m *MapEntity) Persist(context.Context) error {
	m.persisted++
	return m.persistErr
}

// FailPersistWith makes subsequent Persist calls return err.
func (m *MapEntity) FailPersistWith(err error) { m.persistErr = err }

// PersistCalls returns how many times Persist ran.
func (m *MapEntity) PersistCalls() int { return m.persisted }
