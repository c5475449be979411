package audit

// Policy is the per-entity-type audit configuration
type Policy struct {
	// IncludeOnly, when non-empty, is the allow-list of auditable fields
	IncludeOnly []string `yaml:"include_only" json:"include_only,omitempty"`
	// Exclude lists fields that are never audited unless also in IncludeOnly
	Exclude []string `yaml:"exclude" json:"exclude,omitempty"`
	// AuditCreations enables the synthetic created_at record
	AuditCreations bool `yaml:"audit_creations" json:"audit_creations"`
	// AuditEnabled switches the engine on for this entity type
	AuditEnabled bool `yaml:"audit_enabled" json:"audit_enabled"`
	// HistoryLimit caps the number of records kept per entity; nil means unlimited
	HistoryLimit *int `yaml:"history_limit" json:"history_limit,omitempty"`
	// CleanupOnLimit evicts the oldest records instead of rejecting new ones
	CleanupOnLimit bool `yaml:"cleanup_on_limit" json:"cleanup_on_limit"`
}

// DefaultPolicy audits every field of every update, nothing else
func DefaultPolicy() Policy {
	return Policy{AuditEnabled: true}
}

// Limit returns a pointer suitable for Policy.HistoryLimit
func Limit(n int) *int { return &n }

// WithDisabled returns a copy of p whose exclude list also holds fields.
// The receiver is never modified.
func (p Policy) WithDisabled(fields ...string) Policy {
	if len(fields) == 0 {
		return p
	}
	out := p
	out.Exclude = mergeFields(p.Exclude, fields)
	return out
}

// IsAuditable decides whether field is eligible for auditing under p.
// An include-list entry always wins over an exclude entry; without an
// include-list every field that is not excluded is auditable.
func IsAuditable(field string, p Policy) bool {
	if len(p.IncludeOnly) > 0 && containsField(p.IncludeOnly, field) {
		return true
	}
	if containsField(p.Exclude, field) {
		return false
	}
	return len(p.IncludeOnly) == 0
}

func containsField(fields []string, field string) bool {
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}

// mergeFields appends the entries of extra missing from base, keeping order
func mergeFields(base, extra []string) []string {
	out := make([]string, 0, len(base)+len(extra))
	out = append(out, base...)
	for _, f := range extra {
		if !containsField(out, f) {
			out = append(out, f)
		}
	}
	return out
}
