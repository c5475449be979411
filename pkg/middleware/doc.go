// Package middleware provides the authentication and rate limiting
// middleware in front of the history API.
//
// AuthMiddleware validates "Bearer audit_..." tokens and stores the raw token
// and its AuthContext on the request, where the actor resolver chain can
// find them:
//
//	authn := middleware.NewAuthMiddleware(tokens, false, log)
//	router.Use(authn.Handler, middleware.RequireScope(auth.ScopeAuditRead))
//
// RateLimitMiddleware limits each token owner, or each client IP when the
// request is anonymous. MemoryLimiter keeps buckets in process; RedisLimiter
// shares counts across instances. Limiter errors let the request
// through.
package middleware
