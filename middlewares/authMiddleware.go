package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/montron/pm_backend/utils"
)

// AuthMiddleware requires a bearer JWT and stores its company and user in the
// request context. Every workday route is scoped to that company.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := strings.TrimSpace(c.Request.Header.Get("Authorization"))
		if len(auth) < 7 || !strings.EqualFold(auth[:7], "bearer ") {
			unauthorized(c)
			return
		}
		token := strings.TrimSpace(auth[7:])

		validate, err := utils.JwtValidate(token)
		if err != nil || !validate.Valid {
			unauthorized(c)
			return
		}
		claim, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok || claim.CompanyId == "" || claim.UserId == "" {
			unauthorized(c)
			return
		}

		ctx := utils.SetCompanyIdInContext(c.Request.Context(), claim.CompanyId)
		ctx = utils.SetUserIdInContext(ctx, claim.UserId)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	c.Abort()
}
