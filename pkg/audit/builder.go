package audit

import "time"

// BuildChangeRecords turns a diff into records, one per auditable field,
// in diff order. CreatedAt and UpdatedAt are both set to now.
func BuildChangeRecords(entityType, entityID string, changes []Change, p Policy, actor *string, now time.Time) []Record {
	records := make([]Record, 0, len(changes))
	for _, c := range changes {
		if !IsAuditable(c.Field, p) {
			continue
		}
		records = append(records, Record{
			EntityType: entityType,
			EntityID:   entityID,
			Field:      c.Field,
			OldValue:   c.Old.Ptr(),
			NewValue:   c.New.Ptr(),
			ActorID:    copyString(actor),
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return records
}

// BuildSyntheticRecord builds a record without an old value. It backs the
// viewed, created and deleted events.
func BuildSyntheticRecord(entityType, entityID, key string, newValue Value, actor *string, now time.Time) Record {
	return Record{
		EntityType: entityType,
		EntityID:   entityID,
		Field:      key,
		NewValue:   newValue.Ptr(),
		ActorID:    copyString(actor),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// IsSoftDeleted reports whether deleting e keeps the row. A direct
// SoftDeleteReporter answer wins; otherwise a delete that is not forced is
// soft, and failing that the legacy flag decides. Entities exposing none of
// these are hard-deleted.
func IsSoftDeleted(e Entity) bool {
	e = unwrapEntity(e)
	if r, ok := e.(SoftDeleteReporter); ok {
		return r.IsSoftDeleting()
	}
	if r, ok := e.(ForceDeleteReporter); ok {
		return !r.IsForceDeleting()
	}
	if r, ok := e.(LegacySoftDeleter); ok {
		return r.SoftDeletes()
	}
	return false
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
