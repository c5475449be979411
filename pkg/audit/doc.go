// Package audit records field-level change history for persistent entities.
//
// # Overview
//
// An Engine attaches to the lifecycle of one entity type. Around every save
// it snapshots the entity, diffs the auditable fields and writes one Record
// per changed field: who changed what, from what value, to what value, and
// when. Creations, soft deletes and reads produce single synthetic records.
//
// # Lifecycle
//
//	cycle := engine.OnPreSave(ctx, user)   // before the framework saves
//	// ... framework persists user ...
//	err := engine.OnPostSave(ctx, cycle)   // diff + persist
//
//	err = engine.OnPostCreate(ctx, user)   // created_at record, if enabled
//	err = engine.Delete(ctx, user)         // deleted_at record on soft delete
//	err = engine.OnViewed(ctx, user)       // showed_at record on every read
//
// Engines are usually owned by a Registry, which binds the hooks to the
// caller's lifecycle Dispatcher:
//
//	reg := audit.NewRegistry(store, audit.WithLogger(log))
//	reg.Configure("user", audit.Policy{
//		AuditEnabled:   true,
//		Exclude:        []string{"password"},
//		HistoryLimit:   audit.Limit(500),
//		CleanupOnLimit: true,
//	})
//	reg.Register(dispatcher, "user")
//
// # Field Policy
//
// IncludeOnly is an allow-list and always wins over Exclude. Without an
// allow-list every field not excluded is audited. DisableFieldTemporarily
// excludes more fields for the next cycle without touching the policy.
//
// # Retention
//
// With HistoryLimit set, an update batch arriving at a full history is
// dropped, or, with CleanupOnLimit, the oldest records are evicted to make
// room. The check is read-then-act and may overshoot under concurrent
// writers; the Sweeper trims such histories back to the limit.
//
// # Related Packages
//
//   - pkg/storage: Store implementations (memory, postgres, sqlite, cache)
//   - pkg/auth: actor providers for ChainResolver
//   - pkg/config: policy files and their watcher
package audit
