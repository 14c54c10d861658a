package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/yanqian/fittrack/pkg/errors"
)

func testConfig() Config {
	return Config{
		AccessSecret:    "access-secret",
		RefreshSecret:   "refresh-secret",
		AccessTokenTTL:  15 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
		PasswordCost:    bcrypt.MinCost,
		MaxSessions:     5,
	}
}

func newServiceUnderTest(t *testing.T) (*service, *memoryRepo) {
	t.Helper()
	repo := newMemoryRepo()
	cfg := testConfig()
	return newService(cfg, repo, repo, NewTokenService(cfg), newTestLogger()), repo
}

func registerAlice(t *testing.T, svc Service) UserView {
	t.Helper()
	view, err := svc.Register(context.Background(), RegisterRequest{
		Username: "alice",
		Email:    "A@X.com",
		Password: "Secret123",
	})
	require.NoError(t, err)
	return view
}

func TestService_RegisterNormalizesAndHashes(t *testing.T) {
	svc, repo := newServiceUnderTest(t)

	view := registerAlice(t, svc)
	require.Equal(t, "a@x.com", view.Email)
	require.Equal(t, "alice", view.Username)
	require.NotZero(t, view.ID)

	stored := repo.users[view.ID]
	require.NotEqual(t, "Secret123", stored.PasswordHash)
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("Secret123")))
}

func TestService_RegisterConflicts(t *testing.T) {
	svc, _ := newServiceUnderTest(t)
	registerAlice(t, svc)

	_, err := svc.Register(context.Background(), RegisterRequest{Username: "alice2", Email: "a@X.COM", Password: "Secret123"})
	require.True(t, apperrors.IsCode(err, CodeConflict))

	_, err = svc.Register(context.Background(), RegisterRequest{Username: "alice", Email: "other@x.com", Password: "Secret123"})
	require.True(t, apperrors.IsCode(err, CodeConflict))

	_, err = svc.Register(context.Background(), RegisterRequest{Username: "ALICE", Email: "third@x.com", Password: "Secret123"})
	require.True(t, apperrors.IsCode(err, CodeConflict), "usernames are unique regardless of case")
}

func TestService_RegisterValidation(t *testing.T) {
	svc, _ := newServiceUnderTest(t)
	cases := []RegisterRequest{
		{Username: "al", Email: "a@x.com", Password: "Secret123"},
		{Username: "bad name", Email: "a@x.com", Password: "Secret123"},
		{Username: strings.Repeat("a", 31), Email: "a@x.com", Password: "Secret123"},
		{Username: "alice", Email: "not-an-email", Password: "Secret123"},
		{Username: "alice", Email: "a@x.com", Password: "short1"},
		{Username: "alice", Email: "a@x.com", Password: "lettersonly"},
		{Username: "alice", Email: "a@x.com", Password: "Secret123", Profile: Profile{FitnessLevel: "elite"}},
	}
	for _, req := range cases {
		_, err := svc.Register(context.Background(), req)
		require.True(t, apperrors.IsCode(err, CodeInvalidInput), "%+v", req)
	}
}

func TestService_LoginByEmailOrUsername(t *testing.T) {
	svc, repo := newServiceUnderTest(t)
	view := registerAlice(t, svc)

	resp, err := svc.Login(context.Background(), LoginRequest{Identifier: "a@x.com", Password: "Secret123"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Tokens.AccessToken)
	require.NotEmpty(t, resp.Tokens.RefreshToken)
	require.Equal(t, view.ID, resp.User.ID)
	require.Len(t, repo.sessions[view.ID], 1)

	_, err = svc.Login(context.Background(), LoginRequest{Username: "alice", Password: "Secret123"})
	require.NoError(t, err)
	require.Len(t, repo.sessions[view.ID], 2)

	_, err = svc.Login(context.Background(), LoginRequest{Identifier: "Alice", Password: "Secret123"})
	require.True(t, apperrors.IsCode(err, CodeInvalidCredentials))
}

func TestService_LoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _ := newServiceUnderTest(t)
	registerAlice(t, svc)

	_, wrongPassword := svc.Login(context.Background(), LoginRequest{Identifier: "alice", Password: "Wrong1234"})
	_, unknownUser := svc.Login(context.Background(), LoginRequest{Identifier: "bob", Password: "Secret123"})

	require.True(t, apperrors.IsCode(wrongPassword, CodeInvalidCredentials))
	require.True(t, apperrors.IsCode(unknownUser, CodeInvalidCredentials))
	require.Equal(t, wrongPassword.Error(), unknownUser.Error())
	require.Equal(t, "Invalid credentials", apperrors.MessageOf(wrongPassword))
}

func TestService_AuthenticateLoadsPrincipal(t *testing.T) {
	svc, repo := newServiceUnderTest(t)
	view := registerAlice(t, svc)
	resp, err := svc.Login(context.Background(), LoginRequest{Identifier: "alice", Password: "Secret123"})
	require.NoError(t, err)

	principal, err := svc.Authenticate(context.Background(), resp.Tokens.AccessToken)
	require.NoError(t, err)
	require.Equal(t, Principal{ID: view.ID, Email: "a@x.com", Username: "alice"}, principal)

	_, err = svc.Authenticate(context.Background(), resp.Tokens.RefreshToken)
	require.True(t, apperrors.IsCode(err, CodeTokenInvalid), "refresh tokens are signed with a different secret")

	delete(repo.users, view.ID)
	_, err = svc.Authenticate(context.Background(), resp.Tokens.AccessToken)
	require.True(t, apperrors.IsCode(err, CodeUserNotFound))
}

func TestService_RefreshRotatesAndRejectsReplay(t *testing.T) {
	svc, repo := newServiceUnderTest(t)
	view := registerAlice(t, svc)
	resp, err := svc.Login(context.Background(), LoginRequest{Identifier: "alice", Password: "Secret123"})
	require.NoError(t, err)

	pair, err := svc.Refresh(context.Background(), resp.Tokens.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, resp.Tokens.RefreshToken, pair.RefreshToken)
	require.NotEqual(t, resp.Tokens.AccessToken, pair.AccessToken)
	require.Len(t, repo.sessions[view.ID], 1)

	_, err = svc.Refresh(context.Background(), resp.Tokens.RefreshToken)
	require.True(t, apperrors.IsCode(err, CodeTokenInvalid))

	_, err = svc.Refresh(context.Background(), pair.RefreshToken)
	require.NoError(t, err)
}

func TestService_ConcurrentRefreshOnlyOneWins(t *testing.T) {
	svc, _ := newServiceUnderTest(t)
	registerAlice(t, svc)
	resp, err := svc.Login(context.Background(), LoginRequest{Identifier: "alice", Password: "Secret123"})
	require.NoError(t, err)

	var wins, rejected int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Refresh(context.Background(), resp.Tokens.RefreshToken)
			switch {
			case err == nil:
				atomic.AddInt32(&wins, 1)
			case apperrors.IsCode(err, CodeTokenInvalid):
				atomic.AddInt32(&rejected, 1)
			}
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), wins)
	require.Equal(t, int32(9), rejected)
}

func TestService_RefreshExpiredToken(t *testing.T) {
	repo := newMemoryRepo()
	cfg := testConfig()
	past := time.Now().Add(-8 * 24 * time.Hour)
	stale := newService(cfg, repo, repo, NewTokenService(cfg, WithClock(func() time.Time { return past })), newTestLogger())
	svc := newService(cfg, repo, repo, NewTokenService(cfg), newTestLogger())

	registerAlice(t, svc)
	resp, err := stale.Login(context.Background(), LoginRequest{Identifier: "alice", Password: "Secret123"})
	require.NoError(t, err)

	_, err = svc.Refresh(context.Background(), resp.Tokens.RefreshToken)
	require.True(t, apperrors.IsCode(err, CodeTokenExpired))

	_, err = svc.Authenticate(context.Background(), resp.Tokens.AccessToken)
	require.True(t, apperrors.IsCode(err, CodeTokenExpired))
}

func TestService_LogoutRevokesOnlyPresentedToken(t *testing.T) {
	svc, repo := newServiceUnderTest(t)
	view := registerAlice(t, svc)
	phone, err := svc.Login(context.Background(), LoginRequest{Identifier: "alice", Password: "Secret123"})
	require.NoError(t, err)
	laptop, err := svc.Login(context.Background(), LoginRequest{Identifier: "alice", Password: "Secret123"})
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), phone.Tokens.RefreshToken))
	require.Len(t, repo.sessions[view.ID], 1)

	_, err = svc.Refresh(context.Background(), phone.Tokens.RefreshToken)
	require.True(t, apperrors.IsCode(err, CodeTokenInvalid))
	_, err = svc.Refresh(context.Background(), laptop.Tokens.RefreshToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(context.Background(), "garbage"))
	require.NoError(t, svc.Logout(context.Background(), ""))
}

func TestService_LogoutAllInvalidatesEveryRefreshToken(t *testing.T) {
	svc, _ := newServiceUnderTest(t)
	view := registerAlice(t, svc)
	var refreshTokens []string
	var lastAccess string
	for i := 0; i < 3; i++ {
		resp, err := svc.Login(context.Background(), LoginRequest{Identifier: "alice", Password: "Secret123"})
		require.NoError(t, err)
		refreshTokens = append(refreshTokens, resp.Tokens.RefreshToken)
		lastAccess = resp.Tokens.AccessToken
	}

	require.NoError(t, svc.LogoutAll(context.Background(), view.ID))

	for _, token := range refreshTokens {
		valid, err := svc.sessions.IsValid(context.Background(), view.ID, token)
		require.NoError(t, err)
		require.False(t, valid)
		_, err = svc.Refresh(context.Background(), token)
		require.True(t, apperrors.IsCode(err, CodeTokenInvalid))
	}

	// access tokens stay valid until they expire
	_, err := svc.Authenticate(context.Background(), lastAccess)
	require.NoError(t, err)
}

func TestService_ChangePasswordRevokesSessions(t *testing.T) {
	svc, _ := newServiceUnderTest(t)
	view := registerAlice(t, svc)
	resp, err := svc.Login(context.Background(), LoginRequest{Identifier: "alice", Password: "Secret123"})
	require.NoError(t, err)

	err = svc.ChangePassword(context.Background(), view.ID, ChangePasswordRequest{CurrentPassword: "Wrong1234", NewPassword: "Better456"})
	require.True(t, apperrors.IsCode(err, CodeInvalidCredentials))

	err = svc.ChangePassword(context.Background(), view.ID, ChangePasswordRequest{CurrentPassword: "Secret123", NewPassword: "Secret123"})
	require.True(t, apperrors.IsCode(err, CodeInvalidInput))

	require.NoError(t, svc.ChangePassword(context.Background(), view.ID, ChangePasswordRequest{CurrentPassword: "Secret123", NewPassword: "Better456"}))

	_, err = svc.Refresh(context.Background(), resp.Tokens.RefreshToken)
	require.True(t, apperrors.IsCode(err, CodeTokenInvalid))

	_, err = svc.Login(context.Background(), LoginRequest{Identifier: "alice", Password: "Secret123"})
	require.True(t, apperrors.IsCode(err, CodeInvalidCredentials))
	_, err = svc.Login(context.Background(), LoginRequest{Identifier: "alice", Password: "Better456"})
	require.NoError(t, err)
}

func TestService_ChangePasswordKeepsOldPasswordWhenRevokeFails(t *testing.T) {
	repo := newMemoryRepo()
	cfg := testConfig()
	sessions := &failingSessions{memoryRepo: repo}
	svc := newService(cfg, repo, sessions, NewTokenService(cfg), newTestLogger())
	view := registerAlice(t, svc)
	resp, err := svc.Login(context.Background(), LoginRequest{Identifier: "alice", Password: "Secret123"})
	require.NoError(t, err)

	sessions.failRemoveAll = true
	err = svc.ChangePassword(context.Background(), view.ID, ChangePasswordRequest{CurrentPassword: "Secret123", NewPassword: "Better456"})
	require.True(t, apperrors.IsCode(err, CodeInternal))

	stored := repo.users[view.ID]
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("Secret123")))
	_, err = svc.Login(context.Background(), LoginRequest{Identifier: "alice", Password: "Better456"})
	require.True(t, apperrors.IsCode(err, CodeInvalidCredentials))

	sessions.failRemoveAll = false
	require.NoError(t, svc.ChangePassword(context.Background(), view.ID, ChangePasswordRequest{CurrentPassword: "Secret123", NewPassword: "Better456"}))
	_, err = svc.Refresh(context.Background(), resp.Tokens.RefreshToken)
	require.True(t, apperrors.IsCode(err, CodeTokenInvalid))
}

func TestService_SessionCap(t *testing.T) {
	svc, repo := newServiceUnderTest(t)
	view := registerAlice(t, svc)
	var first LoginResponse
	for i := 0; i < 7; i++ {
		resp, err := svc.Login(context.Background(), LoginRequest{Identifier: "alice", Password: "Secret123"})
		require.NoError(t, err)
		if i == 0 {
			first = resp
		}
	}
	require.Len(t, repo.sessions[view.ID], 5)
	_, err := svc.Refresh(context.Background(), first.Tokens.RefreshToken)
	require.True(t, apperrors.IsCode(err, CodeTokenInvalid))
}

func TestService_ProfileHidesSecret(t *testing.T) {
	svc, _ := newServiceUnderTest(t)
	view, err := svc.Register(context.Background(), RegisterRequest{
		Username: "bob_1",
		Email:    "bob@x.com",
		Password: "Secret123",
		Profile:  Profile{FirstName: " Bob ", FitnessLevel: "Beginner"},
	})
	require.NoError(t, err)

	profile, err := svc.Profile(context.Background(), view.ID)
	require.NoError(t, err)
	require.Equal(t, "Bob", profile.FirstName)
	require.Equal(t, "beginner", profile.FitnessLevel)

	_, err = svc.Profile(context.Background(), 999)
	require.True(t, apperrors.IsCode(err, CodeUserNotFound))
}

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(io.Discard, nil)
	return slog.New(handler)
}

type memoryRepo struct {
	mu       sync.Mutex
	users    map[int64]User
	sessions map[int64][]string
	seq      int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[int64]User), sessions: make(map[int64][]string)}
}

func (m *memoryRepo) Create(_ context.Context, in NewUser) (User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == in.Email {
			return User{}, ErrEmailExists
		}
		if strings.EqualFold(user.Username, in.Username) {
			return User{}, ErrUsernameExists
		}
	}
	m.seq++
	user := User{
		ID:           m.seq,
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		FirstName:    in.Profile.FirstName,
		FitnessLevel: in.Profile.FitnessLevel,
		CreatedAt:    time.Now(),
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *memoryRepo) GetByID(_ context.Context, id int64) (User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	user.PasswordHash = ""
	return user, ok, nil
}

func (m *memoryRepo) GetByEmail(_ context.Context, email string) (User, bool, error) {
	return m.find(func(u User) bool { return u.Email == email }, false)
}

func (m *memoryRepo) GetByUsername(_ context.Context, username string) (User, bool, error) {
	return m.find(func(u User) bool { return u.Username == username }, false)
}

func (m *memoryRepo) FindCredentials(_ context.Context, lookup CredentialLookup) (User, bool, error) {
	return m.find(func(u User) bool {
		switch {
		case lookup.Email != "":
			return u.Email == lookup.Email
		case lookup.Username != "":
			return u.Username == lookup.Username
		default:
			return u.ID == lookup.ID
		}
	}, true)
}

func (m *memoryRepo) UpdatePasswordHash(_ context.Context, id int64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.PasswordHash = passwordHash
	m.users[id] = user
	return nil
}

func (m *memoryRepo) find(match func(User) bool, withSecret bool) (User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if match(user) {
			if !withSecret {
				user.PasswordHash = ""
			}
			return user, true, nil
		}
	}
	return User{}, false, nil
}

func (m *memoryRepo) AddSession(_ context.Context, userID int64, digest string, limit int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID] = AppendSession(m.sessions[userID], digest, limit)
	return nil
}

func (m *memoryRepo) RotateSession(_ context.Context, userID int64, oldDigest, newDigest string, limit int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	remaining, found := RemoveSessionDigest(m.sessions[userID], oldDigest)
	if !found {
		return false, nil
	}
	m.sessions[userID] = AppendSession(remaining, newDigest, limit)
	return true, nil
}

func (m *memoryRepo) RemoveSession(_ context.Context, userID int64, digest string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[userID], _ = RemoveSessionDigest(m.sessions[userID], digest)
	return nil
}

func (m *memoryRepo) RemoveAllSessions(_ context.Context, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, userID)
	return nil
}

func (m *memoryRepo) HasSession(_ context.Context, userID int64, digest string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.sessions[userID] {
		if existing == digest {
			return true, nil
		}
	}
	return false, nil
}

type failingSessions struct {
	*memoryRepo
	failRemoveAll bool
}

func (f *failingSessions) RemoveAllSessions(ctx context.Context, userID int64) error {
	if f.failRemoveAll {
		return errors.New("session store down")
	}
	return f.memoryRepo.RemoveAllSessions(ctx, userID)
}
