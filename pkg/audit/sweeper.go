package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// Sweeper trims histories that grew past their limit, for example through
// concurrent writers or a lowered history_limit. Only types with
// cleanup_on_limit enabled are swept.
type Sweeper struct {
	registry    *Registry
	log         logrus.FieldLogger
	metrics     *Metrics
	concurrency int
}

// NewSweeper creates a sweeper over the registry's store, which must
// implement Pruner.
func NewSweeper(registry *Registry, log logrus.FieldLogger, metrics *Metrics) *Sweeper {
	if log == nil {
		log = discardLogger()
	}
	return &Sweeper{registry: registry, log: log, metrics: metrics, concurrency: 4}
}

// SweepResult counts removed records per entity type
type SweepResult struct {
	mu      sync.Mutex
	Removed map[string]int
}

func (r *SweepResult) add(entityType string, n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Removed[entityType] += n
}

// Total is the number of records removed across all types
func (r *SweepResult) Total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	total := 0
	for _, n := range r.Removed {
		total += n
	}
	return total
}

// Sweep trims every configured entity type, or only the given types
func (s *Sweeper) Sweep(ctx context.Context, entityTypes ...string) (*SweepResult, error) {
	pruner, ok := s.registry.Store().(Pruner)
	if !ok {
		return nil, fmt.Errorf("store %T cannot list entities over limit", s.registry.Store())
	}

	if len(entityTypes) == 0 {
		entityTypes = s.registry.EntityTypes()
	}

	result := &SweepResult{Removed: make(map[string]int)}
	retention := NewRetention(s.registry.Store())

	limits := make(map[string]int, len(entityTypes))
	swept := make([]string, 0, len(entityTypes))
	for _, entityType := range entityTypes {
		policy, ok := s.registry.Policy(entityType)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownEntityType, entityType)
		}
		if policy.HistoryLimit == nil || !policy.CleanupOnLimit {
			continue
		}
		if _, dup := limits[entityType]; !dup {
			swept = append(swept, entityType)
		}
		limits[entityType] = *policy.HistoryLimit
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, entityType := range swept {
		entityType, limit := entityType, limits[entityType]
		g.Go(func() error {
			over, err := pruner.EntitiesOverLimit(ctx, entityType, limit)
			if err != nil {
				return fmt.Errorf("failed to list %s entities over limit: %w", entityType, err)
			}
			for _, ec := range over {
				n, err := retention.Trim(ctx, entityType, ec.EntityID, limit)
				if err != nil {
					return err
				}
				result.add(entityType, n)
				if s.metrics != nil && n > 0 {
					s.metrics.RecordsEvicted.WithLabelValues(entityType).Add(float64(n))
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return result, err
	}

	s.log.WithField("removed", result.Total()).Info("retention sweep complete")
	return result, nil
}
