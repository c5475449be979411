package audit

// Snapshot maps field names to comparable values at one point in time
type Snapshot map[string]Value

// CaptureBefore reads the last persisted values of e
func CaptureBefore(e Entity) Snapshot {
	return capture(e.OriginalFieldValues())
}

// CaptureAfter reads the current in-memory values of e
func CaptureAfter(e Entity) Snapshot {
	return capture(e.FieldValues())
}

// CapturePair captures both snapshots and drops every field that is opaque
// on either side from both of them.
func CapturePair(e Entity) (before, after Snapshot) {
	original := e.OriginalFieldValues()
	current := e.FieldValues()
	before = make(Snapshot, len(original))
	after = make(Snapshot, len(current))
	for k, v := range current {
		if !v.Comparable() {
			continue
		}
		if o, ok := original[k]; ok && !o.Comparable() {
			continue
		}
		after[k] = v
	}
	for k, v := range original {
		if !v.Comparable() {
			continue
		}
		if c, ok := current[k]; ok && !c.Comparable() {
			continue
		}
		before[k] = v
	}
	return before, after
}

func capture(fields map[string]Value) Snapshot {
	s := make(Snapshot, len(fields))
	for k, v := range fields {
		if v.Comparable() {
			s[k] = v
		}
	}
	return s
}

// Diff compares before and after over changedKeys. A field is reported when
// it is present in after and either missing from before or stored
// differently (see Value.Same); list values are never reported. The result keeps the order of changedKeys.
func Diff(before, after Snapshot, changedKeys []string) []Change {
	changes := make([]Change, 0, len(changedKeys))
	seen := make(map[string]struct{}, len(changedKeys))
	for _, key := range changedKeys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		newValue, ok := after[key]
		if !ok || newValue.IsList() {
			continue
		}
		oldValue, had := before[key]
		if !had {
			oldValue = Null()
		}
		if oldValue.IsList() || oldValue.Same(newValue) {
			continue
		}
		changes = append(changes, Change{Field: key, Old: oldValue, New: newValue})
	}
	return changes
}
