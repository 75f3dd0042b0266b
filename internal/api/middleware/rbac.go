package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/bankstream/auth-core/internal/core/domain"
)

// RequireRoles enforces role-based access control over the closed role enum.
// The role claim was injected by Auth; anything outside allowedRoles, or a
// value that is not a known role at all, is rejected.
func RequireRoles(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw, _ := c.Get("role").(string)
			role := domain.Role(raw)
			if !role.Valid() {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			if _, ok := allowed[role]; !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}
