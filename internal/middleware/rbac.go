package middleware

import (
	"net/http"

	"feeledger/internal/common"

	"github.com/labstack/echo/v4"
)

// RequireRole admits callers whose token role is one of roles. super_admin is
// always admitted.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles)+1)
	for _, r := range roles {
		allowed[r] = true
	}
	allowed[RoleSuperAdmin] = true

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(roleContextKey).(string)
			if role == "" {
				return common.SendUnauthorizedError(c, "User not authenticated")
			}
			if !allowed[role] {
				return c.JSON(http.StatusForbidden, common.CreateErrorResponse("FORBIDDEN", "Insufficient permissions", nil))
			}
			return next(c)
		}
	}
}
