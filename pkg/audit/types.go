package audit

import (
	"time"
)

// EventKind identifies the lifecycle event that invoked the engine
type EventKind string

const (
	EventPreSave    EventKind = "pre_save"
	EventPostSave   EventKind = "post_save"
	EventPostCreate EventKind = "post_create"
	EventPostDelete EventKind = "post_delete"
	EventViewed     EventKind = "viewed"
)

// Field names used by synthetic records
const (
	// ShowedAtField is the key of records produced by view events
	ShowedAtField = "showed_at"
	// CreatedAtField is the creation-timestamp field of an entity
	CreatedAtField = "created_at"
	// DeletedAtField is the soft-deletion timestamp field of an entity
	DeletedAtField = "deleted_at"
)

// RecordID identifies a persisted audit record. IDs grow with insertion
// order, so ascending IDs are oldest first.
type RecordID int64

// Record is one immutable audit log entry
type Record struct {
	ID         RecordID  `json:"id,omitempty"`
	EntityType string    `json:"entity_type"`
	EntityID   string    `json:"entity_id"`
	Field      string    `json:"field"`
	OldValue   *string   `json:"old_value"`
	NewValue   *string   `json:"new_value"`
	ActorID    *string   `json:"actor_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Change is the before/after pair of one diffed field
type Change struct {
	Field string
	Old   Value
	New   Value
}

// SortOrder is the direction used when reading history
type SortOrder string

const (
	OrderAsc  SortOrder = "asc"
	OrderDesc SortOrder = "desc"
)

// ParseSortOrder maps user input to a SortOrder, defaulting to descending
func ParseSortOrder(s string) SortOrder {
	if s == string(OrderAsc) {
		return OrderAsc
	}
	return OrderDesc
}

// DefaultHistoryLimit is the number of records returned by history queries
// when no positive limit is given
const DefaultHistoryLimit = 100

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
