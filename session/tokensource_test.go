package session_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-auth-client/issuer/issuerfake"
	"github.com/jrsteele09/go-auth-client/session"
	"github.com/jrsteele09/go-auth-client/session/repofakes"
)

// shiftClock is an adjustable now-time for expiry tests.
type shiftClock struct {
	lock sync.Mutex
	now  time.Time
}

func (c *shiftClock) Now() time.Time {
	c.lock.Lock()
	defer c.lock.Unlock()
	return c.now
}

func (c *shiftClock) Advance(d time.Duration) {
	c.lock.Lock()
	defer c.lock.Unlock()
	c.now = c.now.Add(d)
}

func TestTokenSource(t *testing.T) {
	t.Run("returns the current bearer token", func(t *testing.T) {
		f := setupTestFixture(t)

		sess, err := f.manager.Login(context.Background(), testUserEmail, testUserPassword)
		require.NoError(t, err)

		token, err := f.manager.TokenSource(context.Background()).Token()
		require.NoError(t, err)
		require.Equal(t, sess.AccessToken, token.AccessToken)
		require.Equal(t, "Bearer", token.TokenType)
		require.True(t, sess.AccessTokenExpiry.Equal(token.Expiry))
	})

	t.Run("fails while logged out", func(t *testing.T) {
		f := setupTestFixture(t)

		_, err := f.manager.TokenSource(context.Background()).Token()
		require.ErrorIs(t, err, session.NoSessionErr)
	})

	t.Run("refreshes an expired session", func(t *testing.T) {
		clock := &shiftClock{now: time.Now()}

		fi := issuerfake.NewFakeIssuer()
		fi.AddUser(testUserEmail, testUserPassword)
		fs := repofakes.NewFakeStore()
		manager, err := session.NewManager(fi, fs, session.WithNowTime(clock.Now))
		require.NoError(t, err)
		defer manager.Close()

		first, err := manager.Login(context.Background(), testUserEmail, testUserPassword)
		require.NoError(t, err)

		clock.Advance(2 * time.Hour)

		token, err := manager.TokenSource(context.Background()).Token()
		require.NoError(t, err)
		require.NotEqual(t, first.AccessToken, token.AccessToken)
		require.Equal(t, 1, fi.RefreshCalls())
	})
}
