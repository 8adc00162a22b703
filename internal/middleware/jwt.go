package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// Claims is the token payload issued by the identity provider.  Subject
// carries the user ID.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuth validates a Bearer HS256 token and stores the caller as a
// model.Principal on the context (see PrincipalFrom).  When issuer is not
// empty the "iss" claim must match it.
func JWTAuth(secret, issuer string) echo.MiddlewareFunc {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired()}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	parser := jwt.NewParser(opts...)
	key := []byte(secret)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get(echo.HeaderAuthorization)
			if !strings.HasPrefix(auth, "Bearer ") {
				return deny(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			}
			raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

			var claims Claims
			tok, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
				return key, nil
			})
			if err != nil || !tok.Valid {
				return deny(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			}
			if claims.Subject == "" {
				return deny(c, http.StatusUnauthorized, "unauthorized", "token has no subject")
			}

			SetPrincipal(c, model.Principal{
				UserID: claims.Subject,
				Role:   strings.ToUpper(claims.Role),
				Email:  claims.Email,
				Name:   claims.Name,
			})
			return next(c)
		}
	}
}
