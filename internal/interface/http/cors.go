package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const wildcardOrigin = "*"

// corsMiddleware echoes explicitly allowed origins with credentials enabled so browsers send
// the token cookies. A "*" entry answers with a bare wildcard, which browsers never pair with
// credentials; an empty allow list sends no CORS origin headers at all.
func corsMiddleware(allowed []string) gin.HandlerFunc {
	return func(c *gin.Context) {
		headers := c.Writer.Header()
		switch origin := resolveOrigin(c.GetHeader("Origin"), allowed); origin {
		case "":
		case wildcardOrigin:
			headers.Set("Access-Control-Allow-Origin", wildcardOrigin)
		default:
			headers.Set("Access-Control-Allow-Origin", origin)
			headers.Set("Access-Control-Allow-Credentials", "true")
			headers.Add("Vary", "Origin")
		}
		headers.Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
		headers.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// resolveOrigin returns the origin to echo, "*" for a wildcard-only match, or "" when the
// request origin is not allowed.
func resolveOrigin(requestOrigin string, allowed []string) string {
	if requestOrigin == "" {
		return ""
	}
	wildcard := false
	for _, candidate := range allowed {
		if candidate == wildcardOrigin {
			wildcard = true
			continue
		}
		if strings.EqualFold(candidate, requestOrigin) {
			return requestOrigin
		}
	}
	if wildcard {
		return wildcardOrigin
	}
	return ""
}
