package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/yoockh/yoocv/internal/models"
	"github.com/yoockh/yoocv/internal/utils"
)

// RequireRole admits principals holding one of the roles. It must run after JWTAuth.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		const op = "middleware.RequireRole"

		v, _ := c.Get(PrincipalKey)
		p, ok := v.(models.Principal)
		if !ok || p.UserID == "" {
			AbortWithError(c, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil))
			return
		}
		for _, r := range roles {
			if p.Role == r {
				c.Next()
				return
			}
		}
		AbortWithError(c, utils.E(utils.CodeForbidden, op, "forbidden", nil))
	}
}

func RequireAdmin() gin.HandlerFunc { return RequireRole(models.RoleAdmin) }
