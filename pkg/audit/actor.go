package audit

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// ActorResolver answers who is acting right now. Implementations never fail;
// an unknown actor is reported as ok == false.
type ActorResolver interface {
	CurrentActor(ctx context.Context) (actorID string, ok bool)
}

// ActorProvider is one identity backend probed by a ChainResolver. A
// provider reports ok == false when it has no authenticated actor.
type ActorProvider interface {
	Name() string
	Actor(ctx context.Context) (actorID string, ok bool, err error)
}

// ActorProviderFunc adapts a function to ActorProvider
type ActorProviderFunc struct {
	ProviderName string
	Fn           func(ctx context.Context) (string, bool, error)
}

// Name returns the provider name used in logs
func (f ActorProviderFunc) Name() string { return f.ProviderName }

// Actor calls the wrapped function
func (f ActorProviderFunc) Actor(ctx context.Context) (string, bool, error) {
	return f.Fn(ctx)
}

// ChainResolver probes providers in order and returns the first actor found.
// A provider error or panic ends the probe and yields no actor.
type ChainResolver struct {
	providers []ActorProvider
	log       logrus.FieldLogger
}

// NewChainResolver creates a resolver over providers in priority order
func NewChainResolver(log logrus.FieldLogger, providers ...ActorProvider) *ChainResolver {
	if log == nil {
		log = discardLogger()
	}
	return &ChainResolver{providers: providers, log: log}
}

// CurrentActor implements ActorResolver
func (r *ChainResolver) CurrentActor(ctx context.Context) (actorID string, ok bool) {
	defer func() {
		if p := recover(); p != nil {
			r.log.WithField("panic", fmt.Sprint(p)).Warn("actor lookup panicked; recording without actor")
			actorID, ok = "", false
		}
	}()

	for _, p := range r.providers {
		id, found, err := p.Actor(ctx)
		if err != nil {
			r.log.WithError(err).WithField("provider", p.Name()).Warn("actor lookup failed; recording without actor")
			return "", false
		}
		if found && id != "" {
			return id, true
		}
	}
	return "", false
}

// NoActor is a resolver that never reports an actor
type NoActor struct{}

// CurrentActor implements ActorResolver
func (NoActor) CurrentActor(context.Context) (string, bool) { return "", false }
