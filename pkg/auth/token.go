package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	// TokenPrefix identifies audit service tokens
	TokenPrefix = "audit_"
	// TokenLength is the total length of random bytes (32 bytes = 256 bits)
	TokenLength = 32
)

// ErrTokenNotFound is returned by lookups for unknown token hashes
var ErrTokenNotFound = errors.New("token not found")

// TokenGenerator generates and validates API tokens
type TokenGenerator struct{}

// NewTokenGenerator creates a new token generator
func NewTokenGenerator() *TokenGenerator {
	return &TokenGenerator{}
}

// GenerateToken creates a new API token.
// Format: audit_<base64url(32 random bytes)>
func (tg *TokenGenerator) GenerateToken() (token string, tokenHash string, tokenPrefix string, err error) {
	randomBytes := make([]byte, TokenLength)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(randomBytes)
	token = TokenPrefix + encoded
	return token, tg.HashToken(token), TokenPrefix + encoded[:8], nil
}

// HashToken computes the SHA256 hash of a token for lookup
func (tg *TokenGenerator) HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// ValidateTokenFormat checks if a token has the correct format
func (tg *TokenGenerator) ValidateTokenFormat(token string) error {
	if !strings.HasPrefix(token, TokenPrefix) {
		return fmt.Errorf("token must start with %q", TokenPrefix)
	}

	encodedPart := strings.TrimPrefix(token, TokenPrefix)
	if len(encodedPart) == 0 {
		return fmt.Errorf("token is too short")
	}
	if _, err := base64.RawURLEncoding.DecodeString(encodedPart); err != nil {
		return fmt.Errorf("invalid token encoding: %w", err)
	}
	return nil
}

// TokenLookup finds stored tokens by hash
type TokenLookup interface {
	LookupToken(ctx context.Context, tokenHash string) (*APIToken, error)
}

// MemoryTokens is an in-process TokenLookup
type MemoryTokens struct {
	mu     sync.RWMutex
	tokens map[string]*APIToken
	nextID int64
	gen    *TokenGenerator
}

// NewMemoryTokens creates an empty token set
func NewMemoryTokens() *MemoryTokens {
	return &MemoryTokens{tokens: make(map[string]*APIToken), gen: NewTokenGenerator()}
}

// Issue creates a token for userID and returns the stored record together
// with the plaintext token, which is not kept.
func (m *MemoryTokens) Issue(userID int64, name string, scopes []Scope, ttl time.Duration) (*APIToken, string, error) {
	token, hash, prefix, err := m.gen.GenerateToken()
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate token: %w", err)
	}

	now := time.Now()
	t := &APIToken{
		UserID:      userID,
		TokenHash:   hash,
		TokenPrefix: prefix,
		Name:        name,
		Scopes:      scopes,
		CreatedAt:   now,
	}
	if ttl > 0 {
		exp := now.Add(ttl)
		t.ExpiresAt = &exp
	}

	m.mu.Lock()
	m.nextID++
	t.ID = m.nextID
	m.tokens[hash] = t
	m.mu.Unlock()
	return t, token, nil
}

// Register stores a caller supplied plaintext token, such as one read from
// configuration.
func (m *MemoryTokens) Register(token string, userID int64, name string, scopes []Scope) (*APIToken, error) {
	if err := m.gen.ValidateTokenFormat(token); err != nil {
		return nil, err
	}

	t := &APIToken{
		UserID:      userID,
		TokenHash:   m.gen.HashToken(token),
		TokenPrefix: token[:min(len(token), len(TokenPrefix)+8)],
		Name:        name,
		Scopes:      scopes,
		CreatedAt:   time.Now(),
	}

	m.mu.Lock()
	m.nextID++
	t.ID = m.nextID
	m.tokens[t.TokenHash] = t
	m.mu.Unlock()
	return t, nil
}

// Revoke marks the token with the given id as revoked
func (m *MemoryTokens) Revoke(id int64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.ID == id {
			now := time.Now()
			t.RevokedAt = &now
			return true
		}
	}
	return false
}

// LookupToken implements TokenLookup
func (m *MemoryTokens) LookupToken(_ context.Context, tokenHash string) (*APIToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tokens[tokenHash]
	if !ok {
		return nil, ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}
