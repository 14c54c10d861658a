package auth

import "time"

// Config drives authentication behavior.
type Config struct {
	AccessSecret    string
	RefreshSecret   string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	// PasswordCost is the bcrypt cost used for new hashes.
	PasswordCost int
	// MaxSessions caps the registry per user; the oldest entries are evicted first.
	MaxSessions int
}

// User represents a persisted account.
type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	FirstName    string     `json:"firstName,omitempty"`
	LastName     string     `json:"lastName,omitempty"`
	DateOfBirth  *time.Time `json:"dateOfBirth,omitempty"`
	Gender       string     `json:"gender,omitempty"`
	HeightCm     float64    `json:"heightCm,omitempty"`
	WeightKg     float64    `json:"weightKg,omitempty"`
	FitnessLevel string     `json:"fitnessLevel,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// Profile holds the optional demographic attributes stored alongside the account.
type Profile struct {
	FirstName    string     `json:"firstName"`
	LastName     string     `json:"lastName"`
	DateOfBirth  *time.Time `json:"dateOfBirth"`
	Gender       string     `json:"gender"`
	HeightCm     float64    `json:"heightCm"`
	WeightKg     float64    `json:"weightKg"`
	FitnessLevel string     `json:"fitnessLevel"`
}

// NewUser is the validated input handed to the repository on registration.
type NewUser struct {
	Username     string
	Email        string
	PasswordHash string
	Profile      Profile
}

// CredentialLookup selects the account whose secret should be loaded. Exactly one field is set.
type CredentialLookup struct {
	ID       int64
	Email    string
	Username string
}

// Principal is the verified identity attached to a request.
type Principal struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
}

// RegisterRequest captures the registration payload.
type RegisterRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Profile
}

// LoginRequest captures login details. Identifier may be an email or a username.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// ChangePasswordRequest carries the current and replacement secrets.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// LoginResponse is returned by a successful login.
type LoginResponse struct {
	User   UserView  `json:"user"`
	Tokens TokenPair `json:"-"`
}

// TokenPair bundles the signed tokens issued together.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// UserView trims sensitive fields.
type UserView struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	FirstName    string     `json:"firstName,omitempty"`
	LastName     string     `json:"lastName,omitempty"`
	DateOfBirth  *time.Time `json:"dateOfBirth,omitempty"`
	Gender       string     `json:"gender,omitempty"`
	HeightCm     float64    `json:"heightCm,omitempty"`
	WeightKg     float64    `json:"weightKg,omitempty"`
	FitnessLevel string     `json:"fitnessLevel,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// TokenKind distinguishes the two signing domains.
type TokenKind string

const (
	TokenAccess  TokenKind = "access"
	TokenRefresh TokenKind = "refresh"
)

// Claims are extracted from a verified JWT.
type Claims struct {
	UserID    int64
	Email     string
	Username  string
	Kind      TokenKind
	TokenID   string
	ExpiresAt time.Time
}

// Principal returns the request identity carried by the claims.
func (c Claims) Principal() Principal {
	return Principal{ID: c.UserID, Email: c.Email, Username: c.Username}
}
