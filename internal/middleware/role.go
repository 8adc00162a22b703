package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RequireRole aborts with 403 unless the authenticated principal has one
// of roles.  It must run after JWTAuth; an anonymous request gets 401.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	allowed := make(map[string]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			p, ok := PrincipalFrom(c)
			if !ok {
				return deny(c, http.StatusUnauthorized, "unauthorized", "authentication required")
			}
			if !allowed[p.Role] {
				return deny(c, http.StatusForbidden, "forbidden", "role not permitted")
			}
			return next(c)
		}
	}
}
