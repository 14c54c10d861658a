package auth

import "context"

// Repository abstracts user persistence.
//
// GetByID, GetByEmail and GetByUsername never populate User.PasswordHash; only
// FindCredentials loads the secret.
type Repository interface {
	Create(ctx context.Context, user NewUser) (User, error)
	GetByID(ctx context.Context, id int64) (User, bool, error)
	GetByEmail(ctx context.Context, email string) (User, bool, error)
	GetByUsername(ctx context.Context, username string) (User, bool, error)
	FindCredentials(ctx context.Context, lookup CredentialLookup) (User, bool, error)
	UpdatePasswordHash(ctx context.Context, id int64, passwordHash string) error
}

// SessionStore persists the per-user set of refresh-token digests.
//
// Every method must be atomic per user. limit caps the set after an insert by
// evicting the oldest digests; a limit <= 0 disables the cap.
type SessionStore interface {
	AddSession(ctx context.Context, userID int64, digest string, limit int) error
	// RotateSession replaces oldDigest with newDigest and reports false, without
	// writing, when oldDigest is not registered.
	RotateSession(ctx context.Context, userID int64, oldDigest, newDigest string, limit int) (bool, error)
	RemoveSession(ctx context.Context, userID int64, digest string) error
	RemoveAllSessions(ctx context.Context, userID int64) error
	HasSession(ctx context.Context, userID int64, digest string) (bool, error)
}

// AppendSession appends digest to sessions and trims the oldest entries beyond limit.
// Storage backends that keep the registry as an ordered list share this helper.
func AppendSession(sessions []string, digest string, limit int) []string {
	out := make([]string, 0, len(sessions)+1)
	for _, existing := range sessions {
		if existing != digest {
			out = append(out, existing)
		}
	}
	out = append(out, digest)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// RemoveSessionDigest returns sessions without digest and whether it was present.
func RemoveSessionDigest(sessions []string, digest string) ([]string, bool) {
	out := make([]string, 0, len(sessions))
	found := false
	for _, existing := range sessions {
		if existing == digest {
			found = true
			continue
		}
		out = append(out, existing)
	}
	return out, found
}
