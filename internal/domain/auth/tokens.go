package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	apperrors "github.com/yanqian/fittrack/pkg/errors"
	"github.com/yanqian/fittrack/pkg/util"
)

// TokenService signs and verifies access and refresh tokens. Each kind has its own secret.
type TokenService struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// TokenOption customizes a TokenService.
type TokenOption func(*TokenService)

// WithClock overrides the time source used for issuing and validating tokens.
func WithClock(now func() time.Time) TokenOption {
	return func(s *TokenService) {
		if now != nil {
			s.now = now
		}
	}
}

// NewTokenService constructs a TokenService from the auth config.
func NewTokenService(cfg Config, opts ...TokenOption) *TokenService {
	s := &TokenService{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		accessTTL:     cfg.AccessTokenTTL,
		refreshTTL:    cfg.RefreshTokenTTL,
		now:           util.NowUTC,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type tokenClaims struct {
	jwt.RegisteredClaims
	UserID   int64     `json:"id"`
	Email    string    `json:"email"`
	Username string    `json:"username"`
	Kind     TokenKind `json:"type"`
}

// IssuePair signs a fresh access/refresh pair for the user.
func (s *TokenService) IssuePair(user User) (TokenPair, error) {
	now := s.now()
	access, accessExp, err := s.sign(user, TokenAccess, now)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, refreshExp, err := s.sign(user, TokenRefresh, now)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify checks signature, expiry and kind. Expired tokens yield CodeTokenExpired,
// everything else CodeTokenInvalid.
func (s *TokenService) Verify(token string, kind TokenKind) (Claims, error) {
	claims, err := s.parse(token, kind, false)
	if err != nil {
		return Claims{}, err
	}
	return claims, nil
}

// VerifyIgnoringExpiry checks signature and kind only. Logout uses it so an expired
// refresh token can still be removed from the registry.
func (s *TokenService) VerifyIgnoringExpiry(token string, kind TokenKind) (Claims, error) {
	return s.parse(token, kind, true)
}

// AccessTTL reports the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL reports the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

func (s *TokenService) sign(user User, kind TokenKind, now time.Time) (string, time.Time, error) {
	ttl := s.accessTTL
	if kind == TokenRefresh {
		ttl = s.refreshTTL
	}
	expiresAt := now.Add(ttl)
	claims := tokenClaims{
		UserID:   user.ID,
		Email:    user.Email,
		Username: user.Username,
		Kind:     kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(user.ID, 10),
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret(kind))
	if err != nil {
		return "", time.Time{}, apperrors.Wrap(CodeInternal, "failed to sign token", err)
	}
	return signed, expiresAt, nil
}

func (s *TokenService) parse(token string, kind TokenKind, ignoreExpiry bool) (Claims, error) {
	if token == "" {
		return Claims{}, apperrors.Wrap(CodeTokenInvalid, "token missing", nil)
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	}
	if ignoreExpiry {
		opts = append(opts, jwt.WithoutClaimsValidation())
	} else {
		opts = append(opts, jwt.WithExpirationRequired())
	}
	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %s", t.Method.Alg())
		}
		return s.secret(kind), nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, apperrors.Wrap(CodeTokenExpired, "token expired", err)
		}
		return Claims{}, apperrors.Wrap(CodeTokenInvalid, "token validation failed", err)
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid {
		return Claims{}, apperrors.Wrap(CodeTokenInvalid, "token invalid", nil)
	}
	if claims.Kind != kind {
		return Claims{}, apperrors.Wrap(CodeTokenInvalid, "token type mismatch", nil)
	}
	if claims.UserID <= 0 {
		return Claims{}, apperrors.Wrap(CodeTokenInvalid, "token missing subject", nil)
	}
	out := Claims{
		UserID:   claims.UserID,
		Email:    claims.Email,
		Username: claims.Username,
		Kind:     claims.Kind,
		TokenID:  claims.ID,
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}

func (s *TokenService) secret(kind TokenKind) []byte {
	if kind == TokenRefresh {
		return s.refreshSecret
	}
	return s.accessSecret
}
