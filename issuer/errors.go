package issuer

import "errors"

var (
	EmailNotFoundErr   = errors.New("email not found")
	InvalidPasswordErr = errors.New("invalid password")
	EmailExistsErr     = errors.New("email already registered")
	RefreshInvalidErr  = errors.New("refresh token invalid or expired")
	UnexpectedErr      = errors.New("unexpected issuer response")
)

// Wire-level error codes the issuer returns in the body of a failed call.
const (
	codeEmailNotFound   = "EMAIL_NOT_FOUND"
	codeInvalidPassword = "INVALID_PASSWORD"
	codeEmailExists     = "EMAIL_EXISTS"
	codeRefreshInvalid  = "INVALID_REFRESH_TOKEN"
)

// codeError maps a wire error code onto the package's sentinel errors.
// Unknown codes collapse into UnexpectedErr.
func codeError(code string) error {
	switch code {
	case codeEmailNotFound:
		return EmailNotFoundErr
	case codeInvalidPassword:
		return InvalidPasswordErr
	case codeEmailExists:
		return EmailExistsErr
	case codeRefreshInvalid:
		return RefreshInvalidErr
	}
	return UnexpectedErr
}
