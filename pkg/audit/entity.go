package audit

import "context"

// Entity is the view of a persistent entity the engine needs. It is
// implemented by the caller's persistence framework.
type Entity interface {
	// TypeName is the entity type recorded on audit rows
	TypeName() string
	// PrimaryKey is the entity identifier recorded on audit rows
	PrimaryKey() string
	// FieldValues are the current in-memory values
	FieldValues() map[string]Value
	// OriginalFieldValues are the values as last loaded from or saved to storage
	OriginalFieldValues() map[string]Value
	// DirtyFieldKeys are the fields modified since load
	DirtyFieldKeys() []string
	// Exists reports whether the entity was already persisted before this save
	Exists() bool
}

// SoftDeleteReporter is implemented by entities that can answer the
// soft-delete question directly.
type SoftDeleteReporter interface {
	IsSoftDeleting() bool
}

// ForceDeleteReporter is implemented by entities that track a
// deletion-in-progress flag; a soft delete is one that is not forced.
type ForceDeleteReporter interface {
	IsForceDeleting() bool
}

// LegacySoftDeleter is implemented by entities exposing the older boolean
// soft-delete switch.
type LegacySoftDeleter interface {
	SoftDeletes() bool
}

// Hook is a lifecycle callback registered with a Dispatcher. It receives
// the cycle opened by the matching pre-save hook when there is one.
type Hook func(ctx context.Context, e Entity, c *Cycle) (*Cycle, error)

// Dispatcher is the caller's lifecycle event mechanism
type Dispatcher interface {
	RegisterHook(kind EventKind, entityType string, hook Hook)
}

// disabledEntity carries fields excluded for one mutation cycle. It is a
// value: disabling more fields wraps again instead of mutating.
type disabledEntity struct {
	Entity
	disabled []string
}

// DisableFieldTemporarily returns e with fields excluded from auditing for
// the next cycle it is passed to. Repeated calls accumulate; a field once
// disabled stays disabled. e itself is left untouched.
func DisableFieldTemporarily(e Entity, fields ...string) Entity {
	if d, ok := e.(disabledEntity); ok {
		return disabledEntity{Entity: d.Entity, disabled: mergeFields(d.disabled, fields)}
	}
	return disabledEntity{Entity: e, disabled: mergeFields(nil, fields)}
}

// DisabledFields returns the fields disabled on e by DisableFieldTemporarily
func DisabledFields(e Entity) []string {
	if d, ok := e.(disabledEntity); ok {
		return append([]string(nil), d.disabled...)
	}
	return nil
}

// Unwrap returns the entity passed to DisableFieldTemporarily
func (d disabledEntity) Unwrap() Entity { return d.Entity }

// unwrapEntity strips DisableFieldTemporarily wrappers so optional
// interfaces of the caller's entity stay visible.
func unwrapEntity(e Entity) Entity {
	for {
		w, ok := e.(interface{ Unwrap() Entity })
		if !ok {
			return e
		}
		e = w.Unwrap()
	}
}
