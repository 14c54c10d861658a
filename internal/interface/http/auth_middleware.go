package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/fittrack/internal/domain/auth"
	apperrors "github.com/yanqian/fittrack/pkg/errors"
)

// Authenticator resolves an access token into a principal.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (auth.Principal, error)
}

// requireAuth halts with 401 unless a valid access token for an existing user is presented.
func requireAuth(authn Authenticator, jar *cookieJar) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractAccessToken(c, jar)
		if !ok {
			abortWithError(c, NewHTTPError(http.StatusUnauthorized, "NO_TOKEN", "Access denied. No token provided.", nil))
			return
		}
		principal, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, middlewareError(err))
			return
		}
		setPrincipal(c, principal)
		c.Next()
	}
}

// optionalAuth attaches a principal when one can be resolved and otherwise continues anonymously.
func optionalAuth(authn Authenticator, jar *cookieJar, logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := extractAccessToken(c, jar)
		if !ok {
			c.Next()
			return
		}
		principal, err := authn.Authenticate(c.Request.Context(), token)
		if err != nil {
			if apperrors.IsCode(err, auth.CodeInternal) {
				logger.Warn("optional auth lookup failed", "path", c.Request.URL.Path, "error", err)
			}
			c.Next()
			return
		}
		setPrincipal(c, principal)
		c.Next()
	}
}

func middlewareError(err error) *HTTPError {
	switch apperrors.CodeOf(err) {
	case auth.CodeTokenExpired:
		return NewHTTPError(http.StatusUnauthorized, "TOKEN_EXPIRED", "Token expired", err)
	case auth.CodeTokenInvalid:
		return NewHTTPError(http.StatusUnauthorized, "INVALID_TOKEN", "Invalid token", err)
	case auth.CodeUserNotFound:
		return NewHTTPError(http.StatusUnauthorized, "USER_NOT_FOUND", "User not found", err)
	default:
		return NewHTTPError(http.StatusInternalServerError, "INTERNAL_ERROR", internalErrorMessage, err)
	}
}

// extractAccessToken prefers the bearer header over the cookie.
func extractAccessToken(c *gin.Context, jar *cookieJar) (string, bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			if token := strings.TrimSpace(parts[1]); token != "" {
				return token, true
			}
		}
	}
	return jar.read(c, accessTokenCookie)
}
