package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/yoockh/casecoach/internal/models"
	"github.com/yoockh/casecoach/internal/utils"
)

// RequireRole lets the request through when the "role" set by JWTAuth is one
// of allowed. Comparison ignores case.
func RequireRole(allowed ...models.UserRole) gin.HandlerFunc {
	allow := make(map[models.UserRole]bool, len(allowed))
	for _, a := range allowed {
		allow[normalizeRole(string(a))] = true
	}

	return func(c *gin.Context) {
		role, _ := c.Get("role")
		s, _ := role.(string)
		if !allow[normalizeRole(s)] {
			deny(c, http.StatusForbidden, utils.CodeForbidden, "forbidden")
			return
		}
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc { return RequireRole(models.RoleAdmin) }

func normalizeRole(s string) models.UserRole {
	return models.UserRole(strings.ToLower(strings.TrimSpace(s)))
}
