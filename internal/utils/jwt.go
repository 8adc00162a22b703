package utils // package utils provides helpers for minting identity tokens

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/iliyamo/hotel-reservation/internal/model"
)

// AccessToken is a signed HS256 JWT and its expiry.
type AccessToken struct {
	Token string
	Exp   time.Time
}

// NewAccessToken signs a token for p in the shape the identity provider
// issues: sub, role, email, name, iat and exp, plus iss when issuer is set.
// The server never issues tokens itself; this is used by cmd/devtoken and
// by tests.
func NewAccessToken(secret, issuer string, p model.Principal, ttl time.Duration) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	claims := jwt.MapClaims{
		"sub":  p.UserID,
		"role": p.Role,
		"iat":  now.Unix(),
		"exp":  exp.Unix(),
	}
	if p.Email != "" {
		claims["email"] = p.Email
	}
	if p.Name != "" {
		claims["name"] = p.Name
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
