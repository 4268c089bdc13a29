// Package issuerfake provides an in-memory credential issuer for tests.
package issuerfake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jrsteele09/go-auth-client/issuer"
)

var _ issuer.API = (*FakeIssuer)(nil)

type fakeUser struct {
	id       string
	password string
}

type identity struct {
	email  string
	userID string
}

// FakeIssuer implements issuer.API against an in-memory user table. Every
// grant carries a freshly numbered access token so tests can tell renewals
// apart, and refresh tokens are tracked so only tokens the fake actually
// issued are honoured. RefreshDelay holds refresh calls open, letting tests
// pile up concurrent callers behind one in-flight refresh.
type FakeIssuer struct {
	lock          sync.Mutex
	users         map[string]fakeUser
	refreshTokens map[string]identity

	grants       int
	loginCalls   int
	signupCalls  int
	refreshCalls int

	// ExpiresIn is the lifetime reported on every grant. Defaults to 3600.
	ExpiresIn int

	// OmitRefreshToken issues grants without refresh tokens, imitating an
	// issuer that does not support refresh.
	OmitRefreshToken bool

	// RefreshDelay is slept inside Refresh while no locks are held.
	RefreshDelay time.Duration

	// FailLogin, FailSignup and FailRefresh, when set, are returned instead
	// of a grant.
	FailLogin   error
	FailSignup  error
	FailRefresh error
}

func NewFakeIssuer() *FakeIssuer {
	return &FakeIssuer{
		users:         make(map[string]fakeUser),
		refreshTokens: make(map[string]identity),
		ExpiresIn:     3600,
	}
}

// AddUser registers an account the fake will accept credentials for.
func (f *FakeIssuer) AddUser(email, password string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.users[email] = fakeUser{id: uuid.New().String(), password: password}
}

func (f *FakeIssuer) Login(_ context.Context, email, password string) (*issuer.Grant, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.loginCalls++
	if f.FailLogin != nil {
		return nil, f.FailLogin
	}

	user, ok := f.users[email]
	if !ok {
		return nil, issuer.EmailNotFoundErr
	}
	if user.password != password {
		return nil, issuer.InvalidPasswordErr
	}
	return f.grantLocked(identity{email: email, userID: user.id}), nil
}

func (f *FakeIssuer) Signup(_ context.Context, email, password string) (*issuer.Grant, error) {
	f.lock.Lock()
	defer f.lock.Unlock()

	f.signupCalls++
	if f.FailSignup != nil {
		return nil, f.FailSignup
	}

	if _, ok := f.users[email]; ok {
		return nil, issuer.EmailExistsErr
	}
	user := fakeUser{id: uuid.New().String(), password: password}
	f.users[email] = user
	return f.grantLocked(identity{email: email, userID: user.id}), nil
}

func (f *FakeIssuer) Refresh(_ context.Context, refreshToken string) (*issuer.Grant, error) {
	f.lock.Lock()
	f.refreshCalls++
	fail := f.FailRefresh
	delay := f.RefreshDelay
	f.lock.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if fail != nil {
		return nil, fail
	}

	f.lock.Lock()
	defer f.lock.Unlock()
	who, ok := f.refreshTokens[refreshToken]
	if !ok {
		return nil, issuer.RefreshInvalidErr
	}
	delete(f.refreshTokens, refreshToken)
	return f.grantLocked(who), nil
}

// RefreshCalls reports how many refresh calls reached the issuer.
func (f *FakeIssuer) RefreshCalls() int {
	f.lock.Lock()
	defer f.lock.Unlock()
	return f.refreshCalls
}

func (f *FakeIssuer) grantLocked(who identity) *issuer.Grant {
	f.grants++
	var refreshToken string
	if !f.OmitRefreshToken {
		refreshToken = fmt.Sprintf("refresh-token-%d", f.grants)
		f.refreshTokens[refreshToken] = who
	}
	return &issuer.Grant{
		Kind:         "identitytoolkit#VerifyPasswordResponse",
		LocalID:      who.userID,
		Email:        who.email,
		IDToken:      fmt.Sprintf("access-token-%d", f.grants),
		RefreshToken: refreshToken,
		Registered:   true,
		ExpiresIn:    f.ExpiresIn,
	}
}
