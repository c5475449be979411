package auth

import (
	"strconv"
	"time"
)

// User represents a user or bot account
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	IsBot    bool   `json:"is_bot"`
	IsActive bool   `json:"is_active"`
}

// Scope represents API token scopes
type Scope string

const (
	ScopeAuditRead  Scope = "audit:read"
	ScopeAuditWrite Scope = "audit:write"
	ScopeAll        Scope = "*" // All permissions (for admin)
)

// APIToken represents an API token
type APIToken struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	TokenHash   string     `json:"-"` // Never expose hash
	TokenPrefix string     `json:"token_prefix"`
	Name        string     `json:"name"`
	Scopes      []Scope    `json:"scopes"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// Usable reports whether the token is neither revoked nor expired at now
func (t *APIToken) Usable(now time.Time) bool {
	if t.RevokedAt != nil {
		return false
	}
	return t.ExpiresAt == nil || now.Before(*t.ExpiresAt)
}

// AuthContext holds authenticated user information
type AuthContext struct {
	User   *User
	Token  *APIToken
	Scopes []Scope
}

// HasScope checks if the context has a specific scope
func (ac *AuthContext) HasScope(scope Scope) bool {
	for _, s := range ac.Scopes {
		if s == ScopeAll || s == scope {
			return true
		}
	}
	return false
}

// ActorID returns the id recorded on audit records for this principal:
// the user id, or the token owner when no user was loaded.
func (ac *AuthContext) ActorID() (string, bool) {
	switch {
	case ac == nil:
		return "", false
	case ac.User != nil:
		return strconv.FormatInt(ac.User.ID, 10), true
	case ac.Token != nil:
		return strconv.FormatInt(ac.Token.UserID, 10), true
	}
	return "", false
}
