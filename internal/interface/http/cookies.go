package http

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/fittrack/internal/domain/auth"
	"github.com/yanqian/fittrack/internal/infra/config"
	"github.com/yanqian/fittrack/pkg/util"
)

const (
	accessTokenCookie  = "accessToken"
	refreshTokenCookie = "refreshToken"

	signedCookiePrefix = "s:"
)

// cookieJar writes and reads the token cookies. With a secret configured, values are
// signed as "s:<value>.<base64url(hmac)>" and anything else reads back as absent.
type cookieJar struct {
	secret   []byte
	secure   bool
	sameSite http.SameSite
	domain   string
	now      func() time.Time
}

func newCookieJar(app config.AppConfig, cfg config.CookieConfig) *cookieJar {
	jar := &cookieJar{
		secure:   cfg.Secure || app.IsProduction(),
		sameSite: parseSameSite(cfg.SameSite),
		domain:   cfg.Domain,
		now:      util.NowUTC,
	}
	if cfg.Secret != "" {
		jar.secret = []byte(cfg.Secret)
	}
	return jar
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(value) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}

func (j *cookieJar) setTokens(c *gin.Context, pair auth.TokenPair) {
	now := j.now()
	j.set(c, accessTokenCookie, pair.AccessToken, util.MaxAgeSeconds(now, pair.AccessExpiresAt))
	j.set(c, refreshTokenCookie, pair.RefreshToken, util.MaxAgeSeconds(now, pair.RefreshExpiresAt))
}

func (j *cookieJar) clearTokens(c *gin.Context) {
	j.set(c, accessTokenCookie, "", -1)
	j.set(c, refreshTokenCookie, "", -1)
}

func (j *cookieJar) read(c *gin.Context, name string) (string, bool) {
	raw, err := c.Cookie(name)
	if err != nil || raw == "" {
		return "", false
	}
	if j.secret == nil {
		return raw, true
	}
	return j.unsign(raw)
}

func (j *cookieJar) set(c *gin.Context, name, value string, maxAge int) {
	if value != "" && j.secret != nil {
		value = j.sign(value)
	}
	c.SetSameSite(j.sameSite)
	c.SetCookie(name, value, maxAge, "/", j.domain, j.secure, true)
}

func (j *cookieJar) sign(value string) string {
	return signedCookiePrefix + value + "." + j.mac(value)
}

func (j *cookieJar) unsign(raw string) (string, bool) {
	if !strings.HasPrefix(raw, signedCookiePrefix) {
		return "", false
	}
	body := strings.TrimPrefix(raw, signedCookiePrefix)
	idx := strings.LastIndexByte(body, '.')
	if idx <= 0 {
		return "", false
	}
	value, sig := body[:idx], body[idx+1:]
	if !hmac.Equal([]byte(sig), []byte(j.mac(value))) {
		return "", false
	}
	return value, true
}

func (j *cookieJar) mac(value string) string {
	h := hmac.New(sha256.New, j.secret)
	h.Write([]byte(value))
	return base64.RawURLEncoding.EncodeToString(h.Sum(nil))
}
