package audit

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/platinummonkey/auditable/pkg/audit"

// Cycle is the state of one mutation cycle, opened by OnPreSave and passed
// to the matching post-event hook. It is never modified after creation.
type Cycle struct {
	id         uuid.UUID
	entity     Entity
	policy     Policy
	enabled    bool
	updating   bool
	softDelete bool
	before     Snapshot
	after      Snapshot
	dirty      []string
}

// ID is the correlation id of the cycle, attached to logs and spans
func (c *Cycle) ID() uuid.UUID { return c.id }

// Enabled reports whether auditing was on when the cycle opened
func (c *Cycle) Enabled() bool { return c.enabled }

// Updating reports whether the entity already existed when the cycle opened
func (c *Cycle) Updating() bool { return c.updating }

// SoftDelete reports whether a delete in this cycle keeps the row
func (c *Cycle) SoftDelete() bool { return c.softDelete }

// Policy is the effective policy, disabled fields included
func (c *Cycle) Policy() Policy { return c.policy }

// Entity is the entity the cycle was opened for
func (c *Cycle) Entity() Entity { return c.entity }

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(log logrus.FieldLogger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithActorResolver sets how the acting user is found
func WithActorResolver(r ActorResolver) Option {
	return func(e *Engine) {
		if r != nil {
			e.actors = r
		}
	}
}

// WithClock overrides the record timestamp source
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithMetrics enables Prometheus metrics
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithTracerProvider overrides the global OpenTelemetry tracer provider
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) {
		if tp != nil {
			e.tracer = tp.Tracer(tracerName)
		}
	}
}

// Engine audits one entity type under a fixed policy. It is safe for
// concurrent use; all per-mutation state lives in Cycle values.
type Engine struct {
	entityType string
	policy     Policy
	store      Store
	retention  *Retention
	actors     ActorResolver
	log        logrus.FieldLogger
	metrics    *Metrics
	tracer     trace.Tracer
	now        func() time.Time
}

// NewEngine creates an engine for entityType
func NewEngine(entityType string, policy Policy, store Store, opts ...Option) *Engine {
	e := &Engine{
		entityType: entityType,
		policy:     policy,
		store:      store,
		retention:  NewRetention(store),
		actors:     NoActor{},
		log:        discardLogger(),
		tracer:     otel.Tracer(tracerName),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.WithField("entity_type", entityType)
	return e
}

// EntityType returns the entity type this engine audits
func (e *Engine) EntityType() string { return e.entityType }

// Policy returns the configured policy
func (e *Engine) Policy() Policy { return e.policy }

// OnPreSave opens a cycle for ent. With auditing disabled the cycle is
// inert and every post-event hook given it does nothing.
func (e *Engine) OnPreSave(ctx context.Context, ent Entity) *Cycle {
	c := &Cycle{id: uuid.New(), entity: ent, policy: e.policy}
	if !e.policy.AuditEnabled {
		e.log.WithField("cycle_id", c.id).Debug("auditing disabled; skipping snapshot")
		return c
	}

	c.enabled = true
	c.before, c.after = CapturePair(ent)
	c.policy = e.policy.WithDisabled(DisabledFields(ent)...)
	c.dirty = append([]string(nil), ent.DirtyFieldKeys()...)
	c.updating = ent.Exists()
	c.softDelete = IsSoftDeleted(ent)
	return c
}

// OnPostSave records the field changes of an update cycle. Insert cycles
// are left to OnPostCreate. Storage failures are returned unchanged.
func (e *Engine) OnPostSave(ctx context.Context, c *Cycle) error {
	if c == nil {
		return ErrNilCycle
	}
	if !c.enabled || !c.updating {
		return nil
	}

	entityID := c.entity.PrimaryKey()
	changes := Diff(c.before, c.after, c.dirty)
	records := BuildChangeRecords(e.entityType, entityID, changes, c.policy, e.currentActor(ctx), e.now())
	if len(records) == 0 {
		return nil
	}

	ctx, span := e.startSpan(ctx, EventPostSave, c)
	defer span.End()

	decision, err := e.retention.Check(ctx, e.entityType, entityID, len(records), c.policy)
	if err != nil {
		return e.storageFailure(span, c, "count", err)
	}
	if !decision.Allow {
		if e.metrics != nil {
			e.metrics.BatchesRejected.WithLabelValues(e.entityType).Inc()
		}
		e.log.WithFields(logrus.Fields{
			"cycle_id":  c.id,
			"entity_id": entityID,
			"records":   len(records),
		}).Debug("history limit reached; dropping audit batch")
		span.SetAttributes(attribute.Bool("audit.rejected", true))
		return nil
	}

	if len(decision.Evict) > 0 {
		if err := evictRecords(ctx, e.store, e.entityType, entityID, decision.Evict); err != nil {
			return e.storageFailure(span, c, "evict", err)
		}
		if e.metrics != nil {
			e.metrics.RecordsEvicted.WithLabelValues(e.entityType).Add(float64(len(decision.Evict)))
		}
		span.SetAttributes(attribute.Int("audit.evicted", len(decision.Evict)))
	}

	return e.persist(ctx, span, c, EventPostSave, records)
}

// OnPostCreate records the creation of ent when the policy asks for it
func (e *Engine) OnPostCreate(ctx context.Context, ent Entity) error {
	if !e.policy.AuditEnabled || !e.policy.AuditCreations {
		return nil
	}
	c := &Cycle{id: uuid.New(), entity: ent, policy: e.policy, enabled: true}
	return e.synthetic(ctx, c, EventPostCreate, CreatedAtField, fieldValue(ent, CreatedAtField))
}

// OnPostDelete records a soft delete. It needs the cycle opened by
// OnPreSave on the deletion path; hard deletes and a non-auditable
// deleted_at field record nothing.
func (e *Engine) OnPostDelete(ctx context.Context, c *Cycle) error {
	if c == nil {
		return ErrNilCycle
	}
	if !c.enabled || !c.softDelete || !IsAuditable(DeletedAtField, c.policy) {
		return nil
	}
	return e.synthetic(ctx, c, EventPostDelete, DeletedAtField, fieldValue(c.entity, DeletedAtField))
}

// OnViewed records a read of ent. Every call writes a new record.
func (e *Engine) OnViewed(ctx context.Context, ent Entity) error {
	if !e.policy.AuditEnabled {
		return nil
	}
	c := &Cycle{id: uuid.New(), entity: ent, policy: e.policy, enabled: true}
	return e.synthetic(ctx, c, EventViewed, ShowedAtField, fieldValue(ent, CreatedAtField))
}

// Delete runs the hooks of a deletion: a pre-save cycle followed by the
// post-delete record.
func (e *Engine) Delete(ctx context.Context, ent Entity) error {
	return e.OnPostDelete(ctx, e.OnPreSave(ctx, ent))
}

func (e *Engine) synthetic(ctx context.Context, c *Cycle, event EventKind, key string, v Value) error {
	ctx, span := e.startSpan(ctx, event, c)
	defer span.End()

	record := BuildSyntheticRecord(e.entityType, c.entity.PrimaryKey(), key, v, e.currentActor(ctx), e.now())
	return e.persist(ctx, span, c, event, []Record{record})
}

func (e *Engine) persist(ctx context.Context, span trace.Span, c *Cycle, event EventKind, records []Record) error {
	start := time.Now()
	err := e.store.InsertRecords(ctx, e.entityType, records)
	if e.metrics != nil {
		e.metrics.PersistDuration.WithLabelValues(e.entityType, string(event)).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return e.storageFailure(span, c, "insert", err)
	}

	if e.metrics != nil {
		e.metrics.RecordsWritten.WithLabelValues(e.entityType, string(event)).Add(float64(len(records)))
	}
	span.SetAttributes(attribute.Int("audit.records", len(records)))
	return nil
}

func (e *Engine) storageFailure(span trace.Span, c *Cycle, op string, err error) error {
	if e.metrics != nil {
		e.metrics.StorageErrors.WithLabelValues(e.entityType, op).Inc()
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.log.WithError(err).WithFields(logrus.Fields{
		"cycle_id":  c.id,
		"entity_id": c.entity.PrimaryKey(),
		"operation": op,
	}).Error("failed to persist audit records")
	return err
}

func (e *Engine) startSpan(ctx context.Context, event EventKind, c *Cycle) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "audit."+string(event), trace.WithAttributes(
		attribute.String("audit.entity_type", e.entityType),
		attribute.String("audit.entity_id", c.entity.PrimaryKey()),
		attribute.String("audit.cycle_id", c.id.String()),
	))
}

func (e *Engine) currentActor(ctx context.Context) *string {
	id, ok := e.actors.CurrentActor(ctx)
	if !ok {
		return nil
	}
	return &id
}

func fieldValue(ent Entity, key string) Value {
	if v, ok := ent.FieldValues()[key]; ok && v.Comparable() {
		return v
	}
	return Null()
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
