package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/platinummonkey/auditable/pkg/auth"
	"github.com/platinummonkey/auditable/pkg/contextkeys"
	"github.com/platinummonkey/auditable/pkg/httputil"
	"github.com/sirupsen/logrus"
)

// AuthMiddleware authenticates bearer tokens against a TokenLookup and
// stores the raw token and its AuthContext on the request context.
type AuthMiddleware struct {
	tokens   auth.TokenLookup
	optional bool // If true, allow requests without auth
	gen      *auth.TokenGenerator
	log      logrus.FieldLogger
	now      func() time.Time
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(tokens auth.TokenLookup, optional bool, log logrus.FieldLogger) *AuthMiddleware {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &AuthMiddleware{
		tokens:   tokens,
		optional: optional,
		gen:      auth.NewTokenGenerator(),
		log:      log,
		now:      time.Now,
	}
}

// Handler wraps an HTTP handler with authentication
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Format: "Bearer <token>"
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			if m.optional {
				next.ServeHTTP(w, r)
				return
			}
			httputil.WriteUnauthorized(w, "missing authorization header")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			httputil.WriteUnauthorized(w, "invalid authorization header format")
			return
		}

		raw := parts[1]
		if err := m.gen.ValidateTokenFormat(raw); err != nil {
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		token, err := m.tokens.LookupToken(r.Context(), m.gen.HashToken(raw))
		switch {
		case errors.Is(err, auth.ErrTokenNotFound):
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		case err != nil:
			m.log.WithError(err).Error("token lookup failed")
			httputil.WriteInternalError(w)
			return
		case !token.Usable(m.now()):
			httputil.WriteUnauthorized(w, "invalid or expired token")
			return
		}

		authCtx := &auth.AuthContext{
			Token:  token,
			Scopes: token.Scopes,
		}

		ctx := contextkeys.WithToken(r.Context(), raw)
		ctx = contextkeys.WithAuth(ctx, authCtx)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	authCtx, ok := r.Context().Value(contextkeys.AuthKey).(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// RequireScope creates middleware that checks for a specific scope
func RequireScope(scope auth.Scope) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authCtx := GetAuthContext(r)
			if authCtx == nil {
				httputil.WriteForbidden(w, "authentication required")
				return
			}

			if !authCtx.HasScope(scope) {
				httputil.WriteForbidden(w, "insufficient permissions")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
