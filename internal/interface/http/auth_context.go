package http

import (
	"github.com/gin-gonic/gin"

	"github.com/yanqian/fittrack/internal/domain/auth"
)

const principalKey = "auth_principal"

func setPrincipal(c *gin.Context, principal auth.Principal) {
	c.Set(principalKey, principal)
}

// principalFrom returns the principal attached by requireAuth or optionalAuth.
func principalFrom(c *gin.Context) (auth.Principal, bool) {
	value, ok := c.Get(principalKey)
	if !ok {
		return auth.Principal{}, false
	}
	principal, ok := value.(auth.Principal)
	return principal, ok
}
