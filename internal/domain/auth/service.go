package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	apperrors "github.com/yanqian/fittrack/pkg/errors"
)

// Service exposes authentication workflows.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (UserView, error)
	Login(ctx context.Context, req LoginRequest) (LoginResponse, error)
	Authenticate(ctx context.Context, accessToken string) (Principal, error)
	Refresh(ctx context.Context, refreshToken string) (TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	LogoutAll(ctx context.Context, userID int64) error
	ChangePassword(ctx context.Context, userID int64, req ChangePasswordRequest) error
	Profile(ctx context.Context, userID int64) (UserView, error)
}

type service struct {
	cfg      Config
	repo     Repository
	tokens   *TokenService
	sessions *SessionRegistry
	logger   *slog.Logger

	dummyOnce sync.Once
	dummyHash []byte
}

const (
	defaultPasswordCost = 12
	maxPasswordBytes    = 72
	maxNameLength       = 50
)

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{3,30}$`)

// NewService constructs a Service instance.
func NewService(cfg Config, repo Repository, sessions SessionStore, logger *slog.Logger) Service {
	return newService(cfg, repo, sessions, NewTokenService(cfg), logger)
}

func newService(cfg Config, repo Repository, sessions SessionStore, tokens *TokenService, logger *slog.Logger) *service {
	if cfg.PasswordCost == 0 {
		cfg.PasswordCost = defaultPasswordCost
	}
	return &service{
		cfg:      cfg,
		repo:     repo,
		tokens:   tokens,
		sessions: NewSessionRegistry(sessions, cfg.MaxSessions),
		logger:   logger.With("component", "auth.service"),
	}
}

func (s *service) Register(ctx context.Context, req RegisterRequest) (UserView, error) {
	username, err := normalizeUsername(req.Username)
	if err != nil {
		return UserView{}, apperrors.Wrap(CodeInvalidInput, err.Error(), nil)
	}
	email, err := normalizeEmail(req.Email)
	if err != nil {
		return UserView{}, apperrors.Wrap(CodeInvalidInput, "invalid email address", err)
	}
	if err := validatePassword(req.Password); err != nil {
		return UserView{}, apperrors.Wrap(CodeInvalidInput, err.Error(), nil)
	}
	profile, err := normalizeProfile(req.Profile)
	if err != nil {
		return UserView{}, apperrors.Wrap(CodeInvalidInput, err.Error(), nil)
	}

	if _, exists, err := s.repo.GetByEmail(ctx, email); err != nil {
		return UserView{}, apperrors.Wrap(CodeInternal, "failed to check user", err)
	} else if exists {
		return UserView{}, apperrors.Wrap(CodeConflict, "User with this email already exists", nil)
	}
	if _, exists, err := s.repo.GetByUsername(ctx, username); err != nil {
		return UserView{}, apperrors.Wrap(CodeInternal, "failed to check user", err)
	} else if exists {
		return UserView{}, apperrors.Wrap(CodeConflict, "Username is already taken", nil)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cfg.PasswordCost)
	if err != nil {
		return UserView{}, apperrors.Wrap(CodeInternal, "failed to hash password", err)
	}
	user, err := s.repo.Create(ctx, NewUser{
		Username:     username,
		Email:        email,
		PasswordHash: string(hashed),
		Profile:      profile,
	})
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailExists):
			return UserView{}, apperrors.Wrap(CodeConflict, "User with this email already exists", err)
		case errors.Is(err, ErrUsernameExists):
			return UserView{}, apperrors.Wrap(CodeConflict, "Username is already taken", err)
		}
		return UserView{}, apperrors.Wrap(CodeInternal, "failed to create user", err)
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return toView(user), nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (LoginResponse, error) {
	identifier := firstNonEmpty(req.Identifier, req.Email, req.Username)
	if identifier == "" || req.Password == "" {
		return LoginResponse{}, apperrors.Wrap(CodeInvalidInput, "identifier and password are required", nil)
	}
	user, err := s.verifyCredentials(ctx, identifier, req.Password)
	if err != nil {
		return LoginResponse{}, err
	}
	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return LoginResponse{}, err
	}
	if err := s.sessions.Register(ctx, user.ID, pair.RefreshToken); err != nil {
		return LoginResponse{}, apperrors.Wrap(CodeInternal, "failed to register session", err)
	}
	s.logger.Info("user logged in", "user_id", user.ID)
	return LoginResponse{User: toView(user), Tokens: pair}, nil
}

func (s *service) Authenticate(ctx context.Context, accessToken string) (Principal, error) {
	claims, err := s.tokens.Verify(accessToken, TokenAccess)
	if err != nil {
		return Principal{}, err
	}
	user, found, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		return Principal{}, apperrors.Wrap(CodeInternal, "failed to load user", err)
	}
	if !found {
		return Principal{}, apperrors.Wrap(CodeUserNotFound, "User not found", nil)
	}
	return Principal{ID: user.ID, Email: user.Email, Username: user.Username}, nil
}

func (s *service) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.tokens.Verify(refreshToken, TokenRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	user, found, err := s.repo.GetByID(ctx, claims.UserID)
	if err != nil {
		return TokenPair{}, apperrors.Wrap(CodeInternal, "failed to load user", err)
	}
	if !found {
		return TokenPair{}, apperrors.Wrap(CodeUserNotFound, "User not found", nil)
	}
	valid, err := s.sessions.IsValid(ctx, user.ID, refreshToken)
	if err != nil {
		return TokenPair{}, apperrors.Wrap(CodeInternal, "failed to check session", err)
	}
	if !valid {
		s.logger.Warn("refresh token not registered", "user_id", user.ID)
		return TokenPair{}, apperrors.Wrap(CodeTokenInvalid, "refresh token revoked", nil)
	}
	pair, err := s.tokens.IssuePair(user)
	if err != nil {
		return TokenPair{}, err
	}
	rotated, err := s.sessions.Rotate(ctx, user.ID, refreshToken, pair.RefreshToken)
	if err != nil {
		return TokenPair{}, apperrors.Wrap(CodeInternal, "failed to rotate session", err)
	}
	if !rotated {
		// a concurrent refresh consumed the same token first
		s.logger.Warn("refresh token rotated concurrently", "user_id", user.ID)
		return TokenPair{}, apperrors.Wrap(CodeTokenInvalid, "refresh token revoked", nil)
	}
	return pair, nil
}

func (s *service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	claims, err := s.tokens.VerifyIgnoringExpiry(refreshToken, TokenRefresh)
	if err != nil {
		s.logger.Debug("logout with unverifiable refresh token", "error", err)
		return nil
	}
	if err := s.sessions.RevokeOne(ctx, claims.UserID, refreshToken); err != nil {
		return apperrors.Wrap(CodeInternal, "failed to revoke session", err)
	}
	return nil
}

func (s *service) LogoutAll(ctx context.Context, userID int64) error {
	if err := s.sessions.RevokeAll(ctx, userID); err != nil {
		return apperrors.Wrap(CodeInternal, "failed to revoke sessions", err)
	}
	s.logger.Info("all sessions revoked", "user_id", userID)
	return nil
}

func (s *service) ChangePassword(ctx context.Context, userID int64, req ChangePasswordRequest) error {
	if req.CurrentPassword == "" {
		return apperrors.Wrap(CodeInvalidInput, "current password is required", nil)
	}
	if err := validatePassword(req.NewPassword); err != nil {
		return apperrors.Wrap(CodeInvalidInput, err.Error(), nil)
	}
	if req.NewPassword == req.CurrentPassword {
		return apperrors.Wrap(CodeInvalidInput, "new password must differ from the current password", nil)
	}
	user, found, err := s.repo.FindCredentials(ctx, CredentialLookup{ID: userID})
	if err != nil {
		return apperrors.Wrap(CodeInternal, "failed to load user", err)
	}
	if !found {
		return apperrors.Wrap(CodeUserNotFound, "User not found", nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		return apperrors.Wrap(CodeInvalidCredentials, "Current password is incorrect", nil)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), s.cfg.PasswordCost)
	if err != nil {
		return apperrors.Wrap(CodeInternal, "failed to hash password", err)
	}
	// Sessions go first: a failed revoke leaves the old password in place, a failed update
	// only signs the user out.
	if err := s.sessions.RevokeAll(ctx, userID); err != nil {
		return apperrors.Wrap(CodeInternal, "failed to revoke sessions", err)
	}
	if err := s.repo.UpdatePasswordHash(ctx, userID, string(hashed)); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return apperrors.Wrap(CodeUserNotFound, "User not found", err)
		}
		return apperrors.Wrap(CodeInternal, "failed to update password", err)
	}
	s.logger.Info("password changed", "user_id", userID)
	return nil
}

func (s *service) Profile(ctx context.Context, userID int64) (UserView, error) {
	user, found, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return UserView{}, apperrors.Wrap(CodeInternal, "failed to load profile", err)
	}
	if !found {
		return UserView{}, apperrors.Wrap(CodeUserNotFound, "User not found", nil)
	}
	return toView(user), nil
}

// verifyCredentials never reveals which half of the pair was wrong.
func (s *service) verifyCredentials(ctx context.Context, identifier, password string) (User, error) {
	lookup := CredentialLookup{Username: strings.TrimSpace(identifier)}
	if strings.Contains(identifier, "@") {
		lookup = CredentialLookup{Email: strings.ToLower(strings.TrimSpace(identifier))}
	}
	user, found, err := s.repo.FindCredentials(ctx, lookup)
	if err != nil {
		return User{}, apperrors.Wrap(CodeInternal, "failed to fetch user", err)
	}
	if !found {
		// keep timing close to the found path
		_ = bcrypt.CompareHashAndPassword(s.dummyPasswordHash(), []byte(password))
		return User{}, apperrors.Wrap(CodeInvalidCredentials, invalidCredentialsMessage, nil)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, apperrors.Wrap(CodeInvalidCredentials, invalidCredentialsMessage, nil)
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *service) dummyPasswordHash() []byte {
	s.dummyOnce.Do(func() {
		hash, err := bcrypt.GenerateFromPassword([]byte("fittrack-placeholder-secret"), s.cfg.PasswordCost)
		if err != nil {
			s.logger.Error("failed to build placeholder hash", "error", err)
			return
		}
		s.dummyHash = hash
	})
	return s.dummyHash
}

func toView(user User) UserView {
	return UserView{
		ID:           user.ID,
		Username:     user.Username,
		Email:        user.Email,
		FirstName:    user.FirstName,
		LastName:     user.LastName,
		DateOfBirth:  user.DateOfBirth,
		Gender:       user.Gender,
		HeightCm:     user.HeightCm,
		WeightKg:     user.WeightKg,
		FitnessLevel: user.FitnessLevel,
		CreatedAt:    user.CreatedAt,
	}
}

func normalizeEmail(raw string) (string, error) {
	email := strings.TrimSpace(strings.ToLower(raw))
	if email == "" {
		return "", errors.New("email cannot be empty")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return "", err
	}
	if addr.Address != email {
		return "", errors.New("email must be a bare address")
	}
	return email, nil
}

func normalizeUsername(raw string) (string, error) {
	username := strings.TrimSpace(raw)
	if !usernamePattern.MatchString(username) {
		return "", errors.New("username must be 3-30 characters of letters, digits or underscores")
	}
	return username, nil
}

func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("password cannot exceed %d bytes", maxPasswordBytes)
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return fmt.Errorf("password must contain at least one letter and one digit")
	}
	return nil
}

func normalizeProfile(p Profile) (Profile, error) {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if len([]rune(p.FirstName)) > maxNameLength || len([]rune(p.LastName)) > maxNameLength {
		return Profile{}, fmt.Errorf("names cannot exceed %d characters", maxNameLength)
	}
	p.Gender = strings.ToLower(strings.TrimSpace(p.Gender))
	switch p.Gender {
	case "", "male", "female", "other":
	default:
		return Profile{}, errors.New("gender must be male, female or other")
	}
	p.FitnessLevel = strings.ToLower(strings.TrimSpace(p.FitnessLevel))
	switch p.FitnessLevel {
	case "", "beginner", "intermediate", "advanced":
	default:
		return Profile{}, errors.New("fitness level must be beginner, intermediate or advanced")
	}
	if p.HeightCm < 0 || p.WeightKg < 0 {
		return Profile{}, errors.New("height and weight cannot be negative")
	}
	return p, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
