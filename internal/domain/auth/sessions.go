package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
)

// SessionRegistry makes self-verifying refresh tokens revocable. Tokens are stored as
// SHA-256 digests so a dump of the store cannot be replayed.
type SessionRegistry struct {
	store SessionStore
	limit int
}

// NewSessionRegistry wraps store; limit caps the sessions kept per user.
func NewSessionRegistry(store SessionStore, limit int) *SessionRegistry {
	return &SessionRegistry{store: store, limit: limit}
}

// Register records a newly issued refresh token.
func (r *SessionRegistry) Register(ctx context.Context, userID int64, refreshToken string) error {
	return r.store.AddSession(ctx, userID, digestToken(refreshToken), r.limit)
}

// Rotate swaps oldToken for newToken in one write. It reports false when oldToken
// was already rotated away or revoked.
func (r *SessionRegistry) Rotate(ctx context.Context, userID int64, oldToken, newToken string) (bool, error) {
	return r.store.RotateSession(ctx, userID, digestToken(oldToken), digestToken(newToken), r.limit)
}

// RevokeOne removes a single refresh token.
func (r *SessionRegistry) RevokeOne(ctx context.Context, userID int64, refreshToken string) error {
	return r.store.RemoveSession(ctx, userID, digestToken(refreshToken))
}

// RevokeAll removes every refresh token of the user.
func (r *SessionRegistry) RevokeAll(ctx context.Context, userID int64) error {
	return r.store.RemoveAllSessions(ctx, userID)
}

// IsValid reports whether refreshToken is currently registered for the user.
func (r *SessionRegistry) IsValid(ctx context.Context, userID int64, refreshToken string) (bool, error) {
	return r.store.HasSession(ctx, userID, digestToken(refreshToken))
}

func digestToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
