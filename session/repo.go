package session

import "context"

// Store is the persistent session store: a single durable record that
// survives process restarts. The Manager is its only writer; it is read once
// at startup to attempt auto-login. Implementations must be safe for
// concurrent use.
type Store interface {
	// Save replaces the stored record with sess.
	Save(ctx context.Context, sess *Session) error

	// Load returns the stored record, or NotFoundErr when none exists.
	Load(ctx context.Context) (*Session, error)

	// Delete removes the stored record. Deleting an absent record is not an
	// error.
	Delete(ctx context.Context) error
}
