package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// CredentialExpiry recovers the expiry timestamp from a bearer credential
// when the backend omits token_expires. The credential is opaque to the
// client and never verified locally; the claims are only read, so an
// unverified parse is enough. Returns nil when the credential is not a JWT
// or carries no exp claim.
func CredentialExpiry(credential string) *time.Time {
	if credential == "" {
		return nil
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(credential, claims); err != nil {
		return nil
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}

	t := exp.Time
	return &t
}
