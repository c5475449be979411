package audit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	// DefaultNullString is shown for absent values
	DefaultNullString = "nothing"
	// DefaultUnknownString is shown for values that cannot be rendered
	DefaultUnknownString = "unknown"
)

// Presenter renders records for display. FieldFormats holds one format
// per field:
//
//	string:<fmt>       fmt.Sprintf(fmt, value), e.g. "string:<b>%s</b>"
//	boolean:<no>|<yes> maps false/true (and 0/1) to the given labels
//
// A value its format cannot render is shown as UnknownString.
type Presenter struct {
	FieldNames    map[string]string
	FieldFormats  map[string]string
	NullString    string
	UnknownString string
	// IdentifiableName maps an entity id to a display name; defaults to the id
	IdentifiableName func(entityID string) string
}

// Entry is a record prepared for display
type Entry struct {
	EntityType string    `json:"entity_type"`
	EntityName string    `json:"entity_name"`
	Field      string    `json:"field"`
	FieldName  string    `json:"field_name"`
	Old        string    `json:"old"`
	New        string    `json:"new"`
	Actor      string    `json:"actor"`
	At         time.Time `json:"at"`
}

// Present renders one record
func (p Presenter) Present(r Record) Entry {
	name := r.EntityID
	if p.IdentifiableName != nil {
		name = p.IdentifiableName(r.EntityID)
	}

	actor := p.unknownString()
	if r.ActorID != nil {
		actor = *r.ActorID
	}

	return Entry{
		EntityType: r.EntityType,
		EntityName: name,
		Field:      r.Field,
		FieldName:  p.FieldName(r.Field),
		Old:        p.FormatValue(r.Field, r.OldValue),
		New:        p.FormatValue(r.Field, r.NewValue),
		Actor:      actor,
		At:         r.UpdatedAt,
	}
}

// PresentAll renders records in order
func (p Presenter) PresentAll(records []Record) []Entry {
	entries := make([]Entry, 0, len(records))
	for _, r := range records {
		entries = append(entries, p.Present(r))
	}
	return entries
}

// FieldName returns the display name of field
func (p Presenter) FieldName(field string) string {
	if name, ok := p.FieldNames[field]; ok {
		return name
	}
	return field
}

// FormatValue renders a stored value of field
func (p Presenter) FormatValue(field string, v *string) string {
	if v == nil {
		return p.nullString()
	}
	layout, ok := p.FieldFormats[field]
	if !ok {
		return *v
	}
	out, ok := applyFormat(layout, *v)
	if !ok {
		return p.unknownString()
	}
	return out
}

func applyFormat(layout, value string) (string, bool) {
	kind, arg, found := strings.Cut(layout, ":")
	if !found {
		return "", false
	}

	switch kind {
	case "string":
		return fmt.Sprintf(arg, value), true
	case "boolean":
		no, yes, found := strings.Cut(arg, "|")
		if !found {
			return "", false
		}
		b, err := strconv.ParseBool(value)
		if err != nil {
			return "", false
		}
		if b {
			return yes, true
		}
		return no, true
	default:
		return "", false
	}
}

func (p Presenter) nullString() string {
	if p.NullString == "" {
		return DefaultNullString
	}
	return p.NullString
}

func (p Presenter) unknownString() string {
	if p.UnknownString == "" {
		return DefaultUnknownString
	}
	return p.UnknownString
}
