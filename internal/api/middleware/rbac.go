package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/acim-association/members-dashboard/internal/core/domain"
)

// RBAC enforces role-based access control on the member role placed in the
// context by SessionGuard.
func RBAC(allowedRoles ...domain.MemberRole) echo.MiddlewareFunc {
	allowed := make(map[string]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[string(r)] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get(CtxRole).(string)
			if _, ok := allowed[role]; !ok {
				return c.JSON(http.StatusForbidden, map[string]string{"error": "forbidden"})
			}
			return next(c)
		}
	}
}

// Noop passes every request through. It stands in for RBAC when roles are
// not enforced.
func Noop() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc { return next }
}
