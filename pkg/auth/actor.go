package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/platinummonkey/auditable/pkg/audit"
	"github.com/platinummonkey/auditable/pkg/contextkeys"
	"github.com/sirupsen/logrus"
)

// AuthContextProvider resolves the actor from the *AuthContext stored under
// contextkeys.AuthKey.
type AuthContextProvider struct{}

// Name identifies the provider in resolver logs
func (AuthContextProvider) Name() string { return "auth_context" }

// Actor returns the authenticated user of the request
func (AuthContextProvider) Actor(ctx context.Context) (string, bool, error) {
	authCtx, ok := ctx.Value(contextkeys.AuthKey).(*AuthContext)
	if !ok {
		return "", false, nil
	}
	id, found := authCtx.ActorID()
	return id, found, nil
}

// TokenProvider resolves the actor as the owner of the raw API token stored
// under contextkeys.TokenKey. Malformed tokens and failed lookups are
// errors; unknown, revoked and expired tokens resolve no actor.
type TokenProvider struct {
	Tokens TokenLookup
	Now    func() time.Time

	gen TokenGenerator
}

// Name identifies the provider in resolver logs
func (p *TokenProvider) Name() string { return "api_token" }

// Actor returns the user id owning a usable token
func (p *TokenProvider) Actor(ctx context.Context) (string, bool, error) {
	raw := contextkeys.GetToken(ctx)
	if raw == "" {
		return "", false, nil
	}
	if err := p.gen.ValidateTokenFormat(raw); err != nil {
		return "", false, err
	}

	token, err := p.Tokens.LookupToken(ctx, p.gen.HashToken(raw))
	if errors.Is(err, ErrTokenNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to look up token: %w", err)
	}

	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	if !token.Usable(now()) {
		return "", false, nil
	}
	return strconv.FormatInt(token.UserID, 10), true, nil
}

// UserIDProvider resolves the actor from the plain user id under
// contextkeys.UserIDKey.
type UserIDProvider struct{}

// Name identifies the provider in resolver logs
func (UserIDProvider) Name() string { return "user_id" }

// Actor returns the user id, if one is set
func (UserIDProvider) Actor(ctx context.Context) (string, bool, error) {
	id := contextkeys.GetUserID(ctx)
	return id, id != "", nil
}

// StaticProvider always resolves the same actor, for system jobs
type StaticProvider struct {
	ActorID string
}

// Name identifies the provider in resolver logs
func (p StaticProvider) Name() string { return "static" }

// Actor returns ActorID, or no actor when it is empty
func (p StaticProvider) Actor(context.Context) (string, bool, error) {
	return p.ActorID, p.ActorID != "", nil
}

// NewActorResolver chains the providers in precedence order: auth context,
// API token (when tokens is non-nil), user id, then the system actor (when
// non-empty).
func NewActorResolver(log logrus.FieldLogger, tokens TokenLookup, systemActor string) *audit.ChainResolver {
	providers := []audit.ActorProvider{AuthContextProvider{}}
	if tokens != nil {
		providers = append(providers, &TokenProvider{Tokens: tokens})
	}
	providers = append(providers, UserIDProvider{})
	if systemActor != "" {
		providers = append(providers, StaticProvider{ActorID: systemActor})
	}
	return audit.NewChainResolver(log, providers...)
}
