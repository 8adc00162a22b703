package middleware

// identity.go holds the helpers shared by the auth, rate-limit and cache
// middleware: where the authenticated principal lives on the echo context
// and how error bodies are shaped before a handler ever runs.

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

const principalKey = "principal"

// SetPrincipal stores p on the request context.  JWTAuth calls it after a
// token verifies; tests use it to skip token minting.
func SetPrincipal(c echo.Context, p model.Principal) {
	c.Set(principalKey, p)
}

// PrincipalFrom returns the authenticated caller, if any.
func PrincipalFrom(c echo.Context) (model.Principal, bool) {
	p, ok := c.Get(principalKey).(model.Principal)
	if !ok || p.UserID == "" {
		return model.Principal{}, false
	}
	return p, true
}

// userID returns the caller's ID for use in rate-limit keys, or "anon".
func userID(c echo.Context) string {
	if p, ok := PrincipalFrom(c); ok {
		return p.UserID
	}
	return "anon"
}

func deny(c echo.Context, status int, code, msg string) error {
	return c.JSON(status, echo.Map{"success": false, "error": code, "message": msg})
}
