// Package session owns the authenticated identity of the client: login,
// signup, logout, persistence across restarts, expiry timers and the
// single-flight refresh protocol every other component leans on.
package session

import "time"

// Session is one authenticated principal together with its credential
// material. Values handed out by the Manager are snapshots; mutating them has
// no effect on the live state.
type Session struct {
	Email             string    `json:"email"`
	UserID            string    `json:"userId"`
	AccessToken       string    `json:"accessToken"`
	AccessTokenExpiry time.Time `json:"accessTokenExpiry"`
	RefreshToken      string    `json:"refreshToken,omitempty"`
}

// Expired reports whether the access token may no longer be attached to
// outgoing requests. A token whose expiry equals now is already expired.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.AccessTokenExpiry)
}

// TTL returns the remaining access-token lifetime, negative once expired.
func (s *Session) TTL(now time.Time) time.Duration {
	return s.AccessTokenExpiry.Sub(now)
}

func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
