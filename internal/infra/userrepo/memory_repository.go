package userrepo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/yanqian/fittrack/internal/domain/auth"
)

// MemoryRepository provides an in-memory user store for tests/dev. It also keeps
// each user's refresh-token registry on the user record.
type MemoryRepository struct {
	mu            sync.RWMutex
	users         map[int64]auth.User
	sessions      map[int64][]string
	emailIndex    map[string]int64
	usernameIndex map[string]int64
	seq           int64
}

// NewMemoryRepository constructs a new in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		users:         make(map[int64]auth.User),
		sessions:      make(map[int64][]string),
		emailIndex:    make(map[string]int64),
		usernameIndex: make(map[string]int64),
	}
}

// Create stores the user record.
func (r *MemoryRepository) Create(_ context.Context, in auth.NewUser) (auth.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email := strings.ToLower(in.Email)
	if _, exists := r.emailIndex[email]; exists {
		return auth.User{}, auth.ErrEmailExists
	}
	if _, exists := r.usernameIndex[strings.ToLower(in.Username)]; exists {
		return auth.User{}, auth.ErrUsernameExists
	}
	r.seq++
	now := time.Now().UTC()
	user := auth.User{
		ID:           r.seq,
		Username:     in.Username,
		Email:        email,
		PasswordHash: in.PasswordHash,
		FirstName:    in.Profile.FirstName,
		LastName:     in.Profile.LastName,
		DateOfBirth:  in.Profile.DateOfBirth,
		Gender:       in.Profile.Gender,
		HeightCm:     in.Profile.HeightCm,
		WeightKg:     in.Profile.WeightKg,
		FitnessLevel: in.Profile.FitnessLevel,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	r.users[user.ID] = user
	r.emailIndex[email] = user.ID
	r.usernameIndex[strings.ToLower(user.Username)] = user.ID
	return withoutSecret(user), nil
}

// GetByID fetches by ID.
func (r *MemoryRepository) GetByID(_ context.Context, id int64) (auth.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	return withoutSecret(user), ok, nil
}

// GetByEmail returns a user by email.
func (r *MemoryRepository) GetByEmail(_ context.Context, email string) (auth.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.emailIndex[strings.ToLower(email)]; ok {
		return withoutSecret(r.users[id]), true, nil
	}
	return auth.User{}, false, nil
}

// GetByUsername returns a user by exact username. The index is case-folded for
// uniqueness, so the stored spelling is compared afterwards.
func (r *MemoryRepository) GetByUsername(_ context.Context, username string) (auth.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id, ok := r.lookupUsername(username); ok {
		return withoutSecret(r.users[id]), true, nil
	}
	return auth.User{}, false, nil
}

func (r *MemoryRepository) lookupUsername(username string) (int64, bool) {
	id, ok := r.usernameIndex[strings.ToLower(username)]
	if !ok || r.users[id].Username != username {
		return 0, false
	}
	return id, true
}

// FindCredentials returns the user including the password hash.
func (r *MemoryRepository) FindCredentials(_ context.Context, lookup auth.CredentialLookup) (auth.User, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id := lookup.ID
	switch {
	case lookup.Email != "":
		id = r.emailIndex[strings.ToLower(lookup.Email)]
	case lookup.Username != "":
		id, _ = r.lookupUsername(lookup.Username)
	}
	user, ok := r.users[id]
	return user, ok, nil
}

// UpdatePasswordHash replaces the stored secret.
func (r *MemoryRepository) UpdatePasswordHash(_ context.Context, id int64, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return auth.ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	user.UpdatedAt = time.Now().UTC()
	r.users[id] = user
	return nil
}

// AddSession appends a refresh-token digest to the user's registry.
func (r *MemoryRepository) AddSession(_ context.Context, userID int64, digest string, limit int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return auth.ErrUserNotFound
	}
	r.sessions[userID] = auth.AppendSession(r.sessions[userID], digest, limit)
	return nil
}

// RotateSession swaps oldDigest for newDigest under the repository lock.
func (r *MemoryRepository) RotateSession(_ context.Context, userID int64, oldDigest, newDigest string, limit int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	remaining, found := auth.RemoveSessionDigest(r.sessions[userID], oldDigest)
	if !found {
		return false, nil
	}
	r.sessions[userID] = auth.AppendSession(remaining, newDigest, limit)
	return true, nil
}

// RemoveSession drops one digest.
func (r *MemoryRepository) RemoveSession(_ context.Context, userID int64, digest string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	remaining, _ := auth.RemoveSessionDigest(r.sessions[userID], digest)
	r.sessions[userID] = remaining
	return nil
}

// RemoveAllSessions clears the user's registry.
func (r *MemoryRepository) RemoveAllSessions(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, userID)
	return nil
}

// HasSession reports registry membership.
func (r *MemoryRepository) HasSession(_ context.Context, userID int64, digest string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, existing := range r.sessions[userID] {
		if existing == digest {
			return true, nil
		}
	}
	return false, nil
}

// SessionCount reports how many sessions a user holds.
func (r *MemoryRepository) SessionCount(userID int64) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions[userID])
}

func withoutSecret(user auth.User) auth.User {
	user.PasswordHash = ""
	return user
}

var (
	_ auth.Repository   = (*MemoryRepository)(nil)
	_ auth.SessionStore = (*MemoryRepository)(nil)
)
