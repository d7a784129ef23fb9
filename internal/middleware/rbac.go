package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sns-grievance-api/internal/models"
	appErrors "github.com/noah-isme/sns-grievance-api/pkg/errors"
	"github.com/noah-isme/sns-grievance-api/pkg/response"
)

// RequireRoles enforces role-based access control for routes.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		claims := CurrentClaims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireStaff admits every municipal staff role.
func RequireStaff() gin.HandlerFunc {
	return RequireRoles(models.StaffRoles...)
}
