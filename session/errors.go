package session

import "errors"

var (
	InvalidCredentialsErr = errors.New("invalid credentials")
	EmailExistsErr        = errors.New("email already registered")
	RefreshRejectedErr    = errors.New("session refresh rejected")
	NoRefreshTokenErr     = errors.New("no refresh token available")
	NoSessionErr          = errors.New("no active session")
	NotFoundErr           = errors.New("session record not found")
	ManagerClosedErr      = errors.New("session manager closed")
)

// UserMessage translates an error from the Manager into the message shown to
// the person at the keyboard.
func UserMessage(err error) string {
	switch {
	case errors.Is(err, EmailExistsErr):
		return "This email exists already"
	case errors.Is(err, InvalidCredentialsErr):
		return "The email or password is not correct."
	case errors.Is(err, RefreshRejectedErr), errors.Is(err, NoRefreshTokenErr), errors.Is(err, NoSessionErr):
		return "Your session has expired. Please log in again."
	}
	return "An unknown error occurred!"
}
