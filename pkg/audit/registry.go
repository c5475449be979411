package audit

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry owns one Engine per configured entity type, all sharing a store
// and engine options. Reconfiguring a type swaps its engine; cycles already
// open keep the policy they started with.
type Registry struct {
	store Store
	opts  []Option

	mu      sync.RWMutex
	engines map[string]*Engine
}

// NewRegistry creates an empty registry over store
func NewRegistry(store Store, opts ...Option) *Registry {
	return &Registry{
		store:   store,
		opts:    opts,
		engines: make(map[string]*Engine),
	}
}

// Store returns the storage collaborator shared by all engines
func (r *Registry) Store() Store { return r.store }

// Configure sets the policy of entityType
func (r *Registry) Configure(entityType string, p Policy) {
	engine := NewEngine(entityType, p, r.store, r.opts...)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.engines[entityType] = engine
}

// ConfigureAll replaces the policies of every type in policies. Types not
// listed keep their current policy.
func (r *Registry) ConfigureAll(policies map[string]Policy) {
	built := make(map[string]*Engine, len(policies))
	for entityType, p := range policies {
		built[entityType] = NewEngine(entityType, p, r.store, r.opts...)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for entityType, engine := range built {
		r.engines[entityType] = engine
	}
}

// Engine returns the engine of entityType
func (r *Registry) Engine(entityType string) (*Engine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	engine, ok := r.engines[entityType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownEntityType, entityType)
	}
	return engine, nil
}

// EntityTypes lists the configured entity types in sorted order
func (r *Registry) EntityTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.engines))
	for t := range r.engines {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Policy returns the current policy of entityType
func (r *Registry) Policy(entityType string) (Policy, bool) {
	engine, err := r.Engine(entityType)
	if err != nil {
		return Policy{}, false
	}
	return engine.Policy(), true
}

// Register binds the lifecycle hooks of entityType on d. The engine is
// looked up on every event so later Configure calls take effect.
func (r *Registry) Register(d Dispatcher, entityType string) {
	d.RegisterHook(EventPreSave, entityType, func(ctx context.Context, e Entity, _ *Cycle) (*Cycle, error) {
		engine, err := r.Engine(entityType)
		if err != nil {
			return nil, err
		}
		return engine.OnPreSave(ctx, e), nil
	})

	d.RegisterHook(EventPostSave, entityType, func(ctx context.Context, _ Entity, c *Cycle) (*Cycle, error) {
		engine, err := r.Engine(entityType)
		if err != nil {
			return c, err
		}
		return c, engine.OnPostSave(ctx, c)
	})

	d.RegisterHook(EventPostCreate, entityType, func(ctx context.Context, e Entity, c *Cycle) (*Cycle, error) {
		engine, err := r.Engine(entityType)
		if err != nil {
			return c, err
		}
		return c, engine.OnPostCreate(ctx, e)
	})

	d.RegisterHook(EventPostDelete, entityType, func(ctx context.Context, e Entity, c *Cycle) (*Cycle, error) {
		engine, err := r.Engine(entityType)
		if err != nil {
			return c, err
		}
		if c == nil {
			c = engine.OnPreSave(ctx, e)
		}
		return c, engine.OnPostDelete(ctx, c)
	})

	d.RegisterHook(EventViewed, entityType, func(ctx context.Context, e Entity, c *Cycle) (*Cycle, error) {
		engine, err := r.Engine(entityType)
		if err != nil {
			return c, err
		}
		return c, engine.OnViewed(ctx, e)
	})
}

// QueryHistory returns the latest records of every entity of entityType,
// ordered by updated_at. A non-positive limit reads DefaultHistoryLimit records.
func (r *Registry) QueryHistory(ctx context.Context, entityType string, limit int, order SortOrder) ([]Record, error) {
	return r.store.History(ctx, HistoryQuery{
		EntityType: entityType,
		Limit:      limit,
		Order:      order,
	}.Normalize())
}

// EntityHistory is QueryHistory restricted to one entity
func (r *Registry) EntityHistory(ctx context.Context, entityType, entityID string, limit int, order SortOrder) ([]Record, error) {
	return r.store.History(ctx, HistoryQuery{
		EntityType: entityType,
		EntityID:   entityID,
		Limit:      limit,
		Order:      order,
	}.Normalize())
}
