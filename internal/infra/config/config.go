package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the service.
type Config struct {
	App          AppConfig          `yaml:"app"`
	HTTP         HTTPConfig         `yaml:"http"`
	Auth         AuthConfig         `yaml:"auth"`
	Database     DatabaseConfig     `yaml:"database"`
	SessionStore SessionStoreConfig `yaml:"sessionStore"`
}

// AppConfig holds process wide settings.
type AppConfig struct {
	Env string `yaml:"env"`
}

// IsProduction reports whether cookies must be Secure and 5xx details hidden.
func (a AppConfig) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

// IsDevelopment reports whether internal error details may reach clients.
func (a AppConfig) IsDevelopment() bool {
	return strings.EqualFold(a.Env, "development")
}

// HTTPConfig controls server level behavior.
type HTTPConfig struct {
	Address         string          `yaml:"address"`
	ReadTimeout     time.Duration   `yaml:"readTimeout"`
	WriteTimeout    time.Duration   `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration   `yaml:"shutdownTimeout"`
	AllowedOrigins  []string        `yaml:"allowedOrigins"`
	RateLimit       RateLimitConfig `yaml:"rateLimit"`
	AuthRateLimit   RateLimitConfig `yaml:"authRateLimit"`
	Retry           RetryConfig     `yaml:"retry"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requestsPerMinute"`
	Burst             int  `yaml:"burst"`
}

// RetryConfig configures best-effort retries for idempotent reads.
type RetryConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxAttempts int           `yaml:"maxAttempts"`
	BaseBackoff time.Duration `yaml:"baseBackoff"`
	Exclude     []string      `yaml:"exclude"`
}

// AuthConfig holds token, password and cookie settings.
type AuthConfig struct {
	AccessSecret       string       `yaml:"accessSecret"`
	RefreshSecret      string       `yaml:"refreshSecret"`
	AccessTokenExpiry  string       `yaml:"accessTokenExpiry"`
	RefreshTokenExpiry string       `yaml:"refreshTokenExpiry"`
	BcryptCost         int          `yaml:"bcryptCost"`
	MaxSessions        int          `yaml:"maxSessions"`
	Cookie             CookieConfig `yaml:"cookie"`
}

// AccessTokenTTL parses AccessTokenExpiry.
func (a AuthConfig) AccessTokenTTL() (time.Duration, error) {
	return ParseExpiry(a.AccessTokenExpiry)
}

// RefreshTokenTTL parses RefreshTokenExpiry.
func (a AuthConfig) RefreshTokenTTL() (time.Duration, error) {
	return ParseExpiry(a.RefreshTokenExpiry)
}

// CookieConfig controls how token cookies are written.
type CookieConfig struct {
	Secret   string `yaml:"secret"`
	Secure   bool   `yaml:"secure"`
	SameSite string `yaml:"sameSite"`
	Domain   string `yaml:"domain"`
}

// DatabaseConfig contains DSN and pooling settings.
type DatabaseConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"maxConns"`
	MinConns int32  `yaml:"minConns"`
	Migrate  bool   `yaml:"migrate"`
}

// SessionStoreConfig selects where refresh-token registries live.
type SessionStoreConfig struct {
	Backend    string `yaml:"backend"`
	ValkeyAddr string `yaml:"valkeyAddr"`
	Prefix     string `yaml:"prefix"`
}

const (
	SessionBackendUser   = "user"
	SessionBackendValkey = "valkey"

	minBcryptCost = 12
)

// Load reads configuration from a YAML file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("APP_ENV"); v != "" {
		cfg.App.Env = v
	}
	if v := os.Getenv("HTTP_ADDRESS"); v != "" {
		cfg.HTTP.Address = v
	} else if v := os.Getenv("PORT"); v != "" {
		cfg.HTTP.Address = ":" + v
	}
	if v := os.Getenv("HTTP_ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_ENABLED"); v != "" {
		cfg.HTTP.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RATE_LIMIT_BURST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.RateLimit.Burst = parsed
		}
	}
	if v := os.Getenv("HTTP_AUTH_RATE_LIMIT_RPM"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.AuthRateLimit.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("HTTP_RETRY_ENABLED"); v != "" {
		cfg.HTTP.Retry.Enabled = parseBool(v)
	}
	if v := os.Getenv("HTTP_RETRY_MAX_ATTEMPTS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Retry.MaxAttempts = parsed
		}
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.AccessSecret = v
	}
	if v := os.Getenv("JWT_REFRESH_SECRET"); v != "" {
		cfg.Auth.RefreshSecret = v
	}
	if v := os.Getenv("JWT_EXPIRE"); v != "" {
		cfg.Auth.AccessTokenExpiry = v
	}
	if v := os.Getenv("JWT_REFRESH_EXPIRE"); v != "" {
		cfg.Auth.RefreshTokenExpiry = v
	}
	if v := os.Getenv("AUTH_BCRYPT_COST"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Auth.BcryptCost = parsed
		}
	}
	if v := os.Getenv("AUTH_MAX_SESSIONS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Auth.MaxSessions = parsed
		}
	}
	if v := os.Getenv("COOKIE_SECRET"); v != "" {
		cfg.Auth.Cookie.Secret = v
	}
	if v := os.Getenv("AUTH_COOKIE_SECURE"); v != "" {
		cfg.Auth.Cookie.Secure = parseBool(v)
	}
	if v := os.Getenv("AUTH_COOKIE_SAMESITE"); v != "" {
		cfg.Auth.Cookie.SameSite = strings.ToLower(v)
	}
	if v := os.Getenv("AUTH_COOKIE_DOMAIN"); v != "" {
		cfg.Auth.Cookie.Domain = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("DATABASE_MAX_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Database.MaxConns = int32(parsed)
		}
	}
	if v := os.Getenv("DATABASE_MIN_CONNS"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			cfg.Database.MinConns = int32(parsed)
		}
	}
	if v := os.Getenv("DATABASE_MIGRATE"); v != "" {
		cfg.Database.Migrate = parseBool(v)
	}
	if v := os.Getenv("SESSION_STORE"); v != "" {
		cfg.SessionStore.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("VALKEY_ADDR"); v != "" {
		cfg.SessionStore.ValkeyAddr = v
	}
	if v := os.Getenv("SESSION_STORE_PREFIX"); v != "" {
		cfg.SessionStore.Prefix = v
	}
}

func defaultConfig() *Config {
	return &Config{
		App: AppConfig{Env: "development"},
		HTTP: HTTPConfig{
			Address:         ":8080",
			ReadTimeout:     5 * time.Second,
			WriteTimeout:    10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 120,
				Burst:             40,
			},
			AuthRateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 10,
				Burst:             5,
			},
			Retry: RetryConfig{
				Enabled:     true,
				MaxAttempts: 2,
				BaseBackoff: 100 * time.Millisecond,
			},
		},
		Auth: AuthConfig{
			AccessTokenExpiry:  "15m",
			RefreshTokenExpiry: "7d",
			BcryptCost:         minBcryptCost,
			MaxSessions:        10,
			Cookie: CookieConfig{
				SameSite: "strict",
			},
		},
		Database: DatabaseConfig{
			MaxConns: 4,
			MinConns: 0,
			Migrate:  true,
		},
		SessionStore: SessionStoreConfig{
			Backend: SessionBackendUser,
			Prefix:  "fittrack",
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if c.HTTP.Address == "" {
		return errors.New("http.address cannot be empty")
	}
	if strings.TrimSpace(c.Auth.AccessSecret) == "" {
		return errors.New("auth.accessSecret (JWT_SECRET) cannot be empty")
	}
	if strings.TrimSpace(c.Auth.RefreshSecret) == "" {
		return errors.New("auth.refreshSecret (JWT_REFRESH_SECRET) cannot be empty")
	}
	if c.Auth.AccessSecret == c.Auth.RefreshSecret {
		return errors.New("auth.accessSecret and auth.refreshSecret must differ")
	}
	accessTTL, err := c.Auth.AccessTokenTTL()
	if err != nil {
		return fmt.Errorf("auth.accessTokenExpiry: %w", err)
	}
	refreshTTL, err := c.Auth.RefreshTokenTTL()
	if err != nil {
		return fmt.Errorf("auth.refreshTokenExpiry: %w", err)
	}
	if refreshTTL <= accessTTL {
		return errors.New("auth.refreshTokenExpiry must exceed auth.accessTokenExpiry")
	}
	if c.Auth.BcryptCost < minBcryptCost || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("auth.bcryptCost must be between %d and 31", minBcryptCost)
	}
	if c.Auth.MaxSessions < 0 {
		return errors.New("auth.maxSessions cannot be negative")
	}
	switch c.Auth.Cookie.SameSite {
	case "", "strict", "lax", "none":
	default:
		return errors.New("auth.cookie.sameSite must be strict, lax or none")
	}
	switch c.SessionStore.Backend {
	case SessionBackendUser:
	case SessionBackendValkey:
		if strings.TrimSpace(c.SessionStore.ValkeyAddr) == "" {
			return errors.New("sessionStore.valkeyAddr cannot be empty when backend is valkey")
		}
	default:
		return fmt.Errorf("sessionStore.backend %q is not supported", c.SessionStore.Backend)
	}
	if c.Database.MaxConns < 0 || c.Database.MinConns < 0 {
		return errors.New("database pool sizes cannot be negative")
	}
	for _, limit := range []RateLimitConfig{c.HTTP.RateLimit, c.HTTP.AuthRateLimit} {
		if !limit.Enabled {
			continue
		}
		if limit.RequestsPerMinute <= 0 {
			return errors.New("http rate limit requestsPerMinute must be positive")
		}
		if limit.Burst <= 0 {
			return errors.New("http rate limit burst must be positive")
		}
	}
	if c.HTTP.Retry.Enabled {
		if c.HTTP.Retry.MaxAttempts <= 0 {
			return errors.New("http.retry.maxAttempts must be positive")
		}
		if c.HTTP.Retry.BaseBackoff <= 0 {
			return errors.New("http.retry.baseBackoff must be positive")
		}
	}
	return nil
}

var expiryUnits = map[string]time.Duration{
	"ms": time.Millisecond,
	"s":  time.Second,
	"m":  time.Minute,
	"h":  time.Hour,
	"d":  24 * time.Hour,
	"w":  7 * 24 * time.Hour,
}

// ParseExpiry accepts "<n><unit>" with unit one of ms, s, m, h, d, w ("15m", "7d").
// A bare number is read as seconds.
func ParseExpiry(raw string) (time.Duration, error) {
	value := strings.TrimSpace(strings.ToLower(raw))
	if value == "" {
		return 0, errors.New("expiry cannot be empty")
	}
	idx := strings.IndexFunc(value, func(r rune) bool { return r < '0' || r > '9' })
	digits, unit := value, "s"
	if idx >= 0 {
		digits, unit = value[:idx], strings.TrimSpace(value[idx:])
	}
	if digits == "" {
		return 0, fmt.Errorf("expiry %q has no amount", raw)
	}
	n, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("expiry %q: %w", raw, err)
	}
	scale, ok := expiryUnits[unit]
	if !ok {
		return 0, fmt.Errorf("expiry %q has unknown unit %q", raw, unit)
	}
	if n <= 0 {
		return 0, fmt.Errorf("expiry %q must be positive", raw)
	}
	return time.Duration(n) * scale, nil
}

func parseBool(v string) bool {
	return v == "1" || strings.EqualFold(v, "true")
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
