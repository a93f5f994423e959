package auth

import (
	"time"

	"github.com/dgrijalva/jwt-go"
)

// tokenTimes reads the iat and exp claims of a JWT without verifying its
// signature; the server stays the authority on validity. Tokens that are
// not JWTs report issuedAt = fallback and no expiry.
func tokenTimes(token string, fallback time.Time) (issuedAt, expiry time.Time) {
	claims := &jwt.StandardClaims{}
	if _, _, err := new(jwt.Parser).ParseUnverified(token, claims); err != nil {
		return fallback, time.Time{}
	}

	issuedAt = fallback
	if claims.IssuedAt > 0 {
		issuedAt = time.Unix(claims.IssuedAt, 0)
	}
	if claims.ExpiresAt > 0 {
		expiry = time.Unix(claims.ExpiresAt, 0)
	}
	return issuedAt, expiry
}
