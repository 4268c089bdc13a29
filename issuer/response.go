package issuer

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Grant represents a successful response from the issuer's login, signup or
// refresh endpoints. The field names follow the identity-toolkit style wire
// format the issuer speaks.
type Grant struct {
	// Kind is a response-type discriminator set by the issuer.
	// Example: "identitytoolkit#VerifyPasswordResponse"
	// Display-only; nothing in this library branches on it.
	Kind string `json:"kind,omitempty"`

	// LocalID is the issuer's opaque identifier for the authenticated user.
	LocalID string `json:"localId"`

	// Email is the address the account is registered under.
	Email string `json:"email"`

	// DisplayName is an optional human-readable name for the account.
	DisplayName string `json:"displayName,omitempty"`

	// IDToken is the bearer credential for protected endpoints.
	// Usage: "Authorization: Bearer <idToken>"
	// Lifespan: short-lived, see ExpiresIn.
	IDToken string `json:"idToken"`

	// RefreshToken obtains a new grant once IDToken expires.
	// Lifespan: long-lived. Empty when the issuer does not support refresh.
	RefreshToken string `json:"refreshToken,omitempty"`

	// Registered reports whether the account already existed (login) rather
	// than being created by this call (signup).
	Registered bool `json:"registered,omitempty"`

	// ExpiresIn is the lifetime of IDToken in seconds.
	// Note: a hint; when zero the authoritative expiry is the token's own
	// "exp" claim, see ExpiryFrom.
	ExpiresIn int `json:"expiresIn"`
}

// ExpiryFrom resolves the grant's absolute access-token expiry relative to
// now. ExpiresIn wins when present; otherwise the "exp" claim of the ID token
// is read with an unverified parse (the client never validates signatures,
// that is the resource server's job). A grant with neither is already expired.
func (g *Grant) ExpiryFrom(now time.Time) time.Time {
	if g.ExpiresIn > 0 {
		return now.Add(time.Duration(g.ExpiresIn) * time.Second)
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(g.IDToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	return now
}
