// Package issuer implements the HTTP client for the remote credential issuer:
// the service that authenticates users and mints access/refresh token pairs.
// The session manager is its only intended consumer.
package issuer

import "context"

// API is the credential issuer surface the session manager depends on.
// Client is the production implementation; issuerfake provides a scriptable
// in-memory one for tests.
type API interface {
	// Login exchanges an email/password pair for a token grant.
	Login(ctx context.Context, email, password string) (*Grant, error)

	// Signup registers a new account and returns its first token grant.
	Signup(ctx context.Context, email, password string) (*Grant, error)

	// Refresh exchanges a refresh token for a new token grant. The refresh
	// token is single-use from the caller's point of view: the returned grant
	// carries the token to use next time.
	Refresh(ctx context.Context, refreshToken string) (*Grant, error)
}
