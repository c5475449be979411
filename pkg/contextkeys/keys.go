// Package contextkeys defines every context key shared across packages.
//
// Keeping the keys in one place avoids collisions between packages that
// would otherwise each declare a private key type:
//
//	ctx = contextkeys.WithAuth(ctx, authCtx)
//	authCtx, _ := ctx.Value(contextkeys.AuthKey).(*auth.AuthContext)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.AuthContext
	// Set by: the embedding application's authentication layer
	// Used by: auth.AuthContextProvider when resolving the audit actor
	AuthKey Key = "auth_context"

	// TokenKey contains the raw bearer token string of the request
	// Used by: auth.TokenProvider
	TokenKey Key = "api_token"

	// RequestIDKey contains request ID string
	// Used by: observability.FromContext
	RequestIDKey Key = "request_id"

	// UserIDKey contains user ID string
	// Used by: observability.FromContext, auth.UserIDProvider
	UserIDKey Key = "user_id"

	// LoggerKey contains a logrus.FieldLogger
	// Used by: observability.FromContext
	LoggerKey Key = "logger"
)

// WithAuth adds authentication context to the context
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

// WithToken adds a raw API token to the context
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, TokenKey, token)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetToken retrieves the raw API token from context
func GetToken(ctx context.Context) string {
	if token, ok := ctx.Value(TokenKey).(string); ok {
		return token
	}
	return ""
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if userID, ok := ctx.Value(UserIDKey).(string); ok {
		return userID
	}
	return ""
}
