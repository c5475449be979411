// Package auth resolves who is acting when an audited entity changes.
//
// The audit engine asks an audit.ActorResolver for the current actor. This
// package supplies the providers an application chains together:
//
//   - AuthContextProvider reads *AuthContext under contextkeys.AuthKey
//   - TokenProvider hashes the raw bearer token under contextkeys.TokenKey and
//     looks it up through a TokenLookup
//   - UserIDProvider reads a plain user id under contextkeys.UserIDKey
//   - StaticProvider names a fixed system actor for jobs
//
// NewActorResolver wires them in that order:
//
//	resolver := auth.NewActorResolver(log, tokens, "system")
//	registry := audit.NewRegistry(store, audit.WithActorResolver(resolver))
//
// A provider error stops the chain and the change is recorded without an
// actor; the error is logged at warn.
//
// # Tokens
//
// Tokens have the form audit_<base64url(32 random bytes)> and are stored only
// as their SHA256 hash:
//
//	tokens := auth.NewMemoryTokens()
//	record, plaintext, err := tokens.Issue(userID, "ci", []auth.Scope{auth.ScopeAuditRead}, 90*24*time.Hour)
package auth
