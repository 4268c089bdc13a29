package session

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-auth-client/issuer"
)

const (
	defaultRefreshMargin  = 60 * time.Second
	defaultRefreshTimeout = 15 * time.Second
	storeTimeout          = 5 * time.Second
)

// Observer receives every state transition: the new Session snapshot, or nil
// when the state became logged-out. Observers run on the Manager's notifier
// goroutine and must not block for long.
type Observer func(*Session)

// refreshFlight is the single in-flight refresh call. Late callers park on
// done and read the shared outcome.
type refreshFlight struct {
	done chan struct{}
	sess *Session
	err  error
}

type notice struct {
	sess *Session
	only int // subscriber id, or allSubscribers
}

const allSubscribers = -1

// Manager owns the current Session and every transition it can make:
// login/signup installs one, logout and unrecoverable refresh failures clear
// it, refresh replaces it. All access goes through the Manager; callers only
// ever see snapshots. Concurrent Refresh calls collapse into one issuer call
// whose outcome every caller shares.
type Manager struct {
	issuer issuer.API
	store  Store
	logger zerolog.Logger

	nowTime        func() time.Time
	refreshMargin  time.Duration
	refreshTimeout time.Duration

	mu           sync.Mutex
	cond         *sync.Cond
	sess         *Session
	flight       *refreshFlight
	logoutTimer  *time.Timer
	refreshTimer *time.Timer
	subs         map[int]Observer
	nextSubID    int
	queue        []notice
	closed       bool
}

// ManagerOption defines a function type to modify the Manager instance.
type ManagerOption func(*Manager)

// WithNowTime sets the now time function (primarily for testing).
func WithNowTime(nowFunc func() time.Time) ManagerOption {
	return func(m *Manager) {
		m.nowTime = nowFunc
	}
}

// WithRefreshMargin sets how long before access-token expiry the proactive
// refresh fires.
func WithRefreshMargin(margin time.Duration) ManagerOption {
	return func(m *Manager) {
		m.refreshMargin = margin
	}
}

// WithRefreshTimeout bounds the issuer call made by a refresh. A timed-out
// refresh counts as a rejected one.
func WithRefreshTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.refreshTimeout = timeout
	}
}

// WithLogger sets the structured logger. Defaults to a no-op logger.
func WithLogger(logger zerolog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// NewManager initializes a Manager with required dependencies. Optional
// configuration can be provided via options.
func NewManager(api issuer.API, store Store, options ...ManagerOption) (*Manager, error) {
	if api == nil {
		return nil, errors.New("[NewManager] issuer is required")
	}
	if store == nil {
		return nil, errors.New("[NewManager] store is required")
	}

	m := &Manager{
		issuer:         api,
		store:          store,
		logger:         zerolog.Nop(),
		nowTime:        time.Now,
		refreshMargin:  defaultRefreshMargin,
		refreshTimeout: defaultRefreshTimeout,
		subs:           make(map[int]Observer),
	}
	m.cond = sync.NewCond(&m.mu)

	for _, opt := range options {
		opt(m)
	}

	go m.notify()
	return m, nil
}

// Login exchanges credentials for a Session and installs it as current. On
// failure the state is unchanged and the error is one of
// InvalidCredentialsErr or the untranslated transport failure.
func (m *Manager) Login(ctx context.Context, email, password string) (*Session, error) {
	grant, err := m.issuer.Login(ctx, email, password)
	if err != nil {
		return nil, translateLogin(err, "[Manager.Login]")
	}
	m.logger.Info().Str("email", grant.Email).Msg("logged in")
	return m.install(grant), nil
}

// Signup registers a new account; the contract is Login's with EmailExistsErr
// as the credential failure.
func (m *Manager) Signup(ctx context.Context, email, password string) (*Session, error) {
	grant, err := m.issuer.Signup(ctx, email, password)
	if err != nil {
		return nil, translateLogin(err, "[Manager.Signup]")
	}
	m.logger.Info().Str("email", grant.Email).Msg("signed up")
	return m.install(grant), nil
}

// Logout clears the current Session, cancels both timers, deletes the
// persisted record and notifies subscribers. Logging out twice is a no-op the
// second time. A refresh already in flight is left to resolve; its completion
// is discarded against the logged-out state.
func (m *Manager) Logout() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked()
}

// Current returns a snapshot of the current Session, nil when logged out.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess.clone()
}

// Subscribe registers an observer for every subsequent state transition, in
// transition order, starting with an immediate push of the current state. The
// returned function cancels the subscription.
func (m *Manager) Subscribe(fn Observer) (cancel func()) {
	m.mu.Lock()
	id := m.nextSubID
	m.nextSubID++
	m.subs[id] = fn
	m.enqueueLocked(notice{sess: m.sess.clone(), only: id})
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// Restore attempts auto-login from the persistent store. An absent record
// leaves the Manager logged out with a nil error. A stored Session that has
// already expired is not discarded: when it still carries a refresh token it
// is installed and refreshed immediately.
func (m *Manager) Restore(ctx context.Context) (*Session, error) {
	stored, err := m.store.Load(ctx)
	if err != nil {
		if errors.Is(err, NotFoundErr) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "[Manager.Restore] store.Load")
	}

	now := m.nowTime()
	if stored.Expired(now) && stored.RefreshToken == "" {
		m.deleteStored()
		return nil, nil
	}

	m.mu.Lock()
	m.sess = stored.clone()
	if !stored.Expired(now) {
		m.armTimersLocked(m.sess)
	}
	m.enqueueLocked(notice{sess: m.sess.clone(), only: allSubscribers})
	m.mu.Unlock()

	m.logger.Info().Str("email", stored.Email).Bool("expired", stored.Expired(now)).Msg("session restored")

	if stored.Expired(now) {
		sess, err := m.Refresh(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "[Manager.Restore] refresh of expired session")
		}
		return sess, nil
	}
	return stored.clone(), nil
}

// Refresh renews the current Session using its refresh token. It is safe to
// call concurrently: while a refresh is in flight every additional caller
// parks until that one resolves and shares its outcome, so any number of
// concurrent demands produce exactly one issuer call. On failure of any kind
// the state becomes logged-out; refresh is never retried automatically.
// Called while logged out it fails immediately without contacting the issuer.
func (m *Manager) Refresh(ctx context.Context) (*Session, error) {
	m.mu.Lock()

	if m.closed {
		m.mu.Unlock()
		return nil, errors.Wrap(ManagerClosedErr, "[Manager.Refresh]")
	}

	if fl := m.flight; fl != nil {
		m.mu.Unlock()
		select {
		case <-fl.done:
			return fl.sess.clone(), fl.err
		case <-ctx.Done():
			return nil, errors.Wrap(ctx.Err(), "[Manager.Refresh] wait for in-flight refresh")
		}
	}

	if m.sess == nil {
		m.mu.Unlock()
		return nil, errors.Wrap(NoSessionErr, "[Manager.Refresh]")
	}

	refreshToken := m.sess.RefreshToken
	fl := &refreshFlight{done: make(chan struct{})}
	m.flight = fl
	m.mu.Unlock()

	fl.sess, fl.err = m.runRefresh(refreshToken)
	close(fl.done)
	return fl.sess.clone(), fl.err
}

// runRefresh performs the one issuer call of a flight and applies its outcome
// to the state machine. Exactly one goroutine runs it per flight.
func (m *Manager) runRefresh(refreshToken string) (*Session, error) {
	var (
		grant *issuer.Grant
		err   error
	)
	if refreshToken == "" {
		err = NoRefreshTokenErr
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), m.refreshTimeout)
		defer cancel()
		grant, err = m.issuer.Refresh(ctx, refreshToken)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.flight = nil

	if m.sess == nil {
		// Logged out while the refresh was in flight: last transition wins,
		// the outcome is discarded.
		m.logger.Debug().Msg("refresh resolved after logout, discarded")
		return nil, errors.Wrap(NoSessionErr, "[Manager.Refresh] logged out mid-flight")
	}
	if m.sess.RefreshToken != refreshToken {
		// A fresh login replaced the session mid-flight. The newer session
		// wins; the stale outcome is discarded without touching it.
		m.logger.Debug().Msg("refresh resolved against replaced session, discarded")
		return m.sess.clone(), nil
	}

	if err != nil {
		// A session that cannot be renewed is worthless. Transport failures
		// count the same as rejections: retrying against an unreachable
		// issuer inside a request path is not acceptable.
		m.logger.Warn().Err(err).Msg("session refresh failed, logging out")
		m.clearLocked()
		if errors.Is(err, NoRefreshTokenErr) {
			return nil, errors.Wrap(NoRefreshTokenErr, "[Manager.Refresh]")
		}
		return nil, errors.Wrap(RefreshRejectedErr, err.Error())
	}

	sess := m.sessionFromGrant(grant)
	m.sess = sess
	m.armTimersLocked(sess)
	m.persistLocked(sess)
	m.enqueueLocked(notice{sess: sess.clone(), only: allSubscribers})
	m.logger.Info().Time("expiry", sess.AccessTokenExpiry).Msg("session refreshed")
	return sess.clone(), nil
}

// Close cancels timers and stops the notifier goroutine. The Manager must not
// be used afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopTimersLocked()
	m.closed = true
	m.cond.Broadcast()
}

func (m *Manager) install(grant *issuer.Grant) *Session {
	sess := m.sessionFromGrant(grant)

	m.mu.Lock()
	m.sess = sess
	m.armTimersLocked(sess)
	m.persistLocked(sess)
	m.enqueueLocked(notice{sess: sess.clone(), only: allSubscribers})
	m.mu.Unlock()

	return sess.clone()
}

func (m *Manager) sessionFromGrant(grant *issuer.Grant) *Session {
	now := m.nowTime()
	return &Session{
		Email:             grant.Email,
		UserID:            grant.LocalID,
		AccessToken:       grant.IDToken,
		AccessTokenExpiry: grant.ExpiryFrom(now),
		RefreshToken:      grant.RefreshToken,
	}
}

// clearLocked is the one LoggedOut transition. Idempotent: with no session
// present it does nothing, so no duplicate notifications are ever published.
func (m *Manager) clearLocked() {
	if m.sess == nil {
		return
	}
	m.sess = nil
	m.stopTimersLocked()
	m.deleteStored()
	m.enqueueLocked(notice{sess: nil, only: allSubscribers})
	m.logger.Info().Msg("logged out")
}

// armTimersLocked replaces both timers for sess. Replaces, never stacks: at
// most one auto-logout and one proactive-refresh timer is ever pending.
func (m *Manager) armTimersLocked(sess *Session) {
	m.stopTimersLocked()

	until := sess.TTL(m.nowTime())
	if until < 0 {
		until = 0
	}

	expiry := sess.AccessTokenExpiry
	m.logoutTimer = time.AfterFunc(until, func() { m.expire(expiry) })

	if sess.RefreshToken != "" {
		lead := until - m.refreshMargin
		if lead < 0 {
			lead = 0
		}
		m.refreshTimer = time.AfterFunc(lead, m.proactiveRefresh)
	}
}

func (m *Manager) stopTimersLocked() {
	if m.logoutTimer != nil {
		m.logoutTimer.Stop()
		m.logoutTimer = nil
	}
	if m.refreshTimer != nil {
		m.refreshTimer.Stop()
		m.refreshTimer = nil
	}
}

// expire is the auto-logout timer callback. The expiry guard drops fires that
// lost a race with a renewal: a refreshed Session carries a later expiry and
// its own timer.
func (m *Manager) expire(expiry time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil || !m.sess.AccessTokenExpiry.Equal(expiry) {
		return
	}
	m.logger.Info().Msg("access token expired")
	m.clearLocked()
}

// proactiveRefresh is the refresh timer callback. Nobody waits on it; a
// failure has already routed through logout inside Refresh.
func (m *Manager) proactiveRefresh() {
	if _, err := m.Refresh(context.Background()); err != nil {
		m.logger.Warn().Err(err).Msg("proactive refresh failed")
	}
}

// persistLocked writes sess to the store. Persistence failures are logged and
// swallowed: a session that cannot be saved still works for this process.
func (m *Manager) persistLocked(sess *Session) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := m.store.Save(ctx, sess); err != nil {
		m.logger.Error().Err(err).Msg("failed to persist session")
	}
}

func (m *Manager) deleteStored() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	if err := m.store.Delete(ctx); err != nil && !errors.Is(err, NotFoundErr) {
		m.logger.Error().Err(err).Msg("failed to delete persisted session")
	}
}

func (m *Manager) enqueueLocked(n notice) {
	if m.closed {
		return
	}
	m.queue = append(m.queue, n)
	m.cond.Signal()
}

// notify delivers queued notices to subscribers, one at a time and in queue
// order, without holding the state lock during delivery.
func (m *Manager) notify() {
	m.mu.Lock()
	for {
		for len(m.queue) == 0 && !m.closed {
			m.cond.Wait()
		}
		if len(m.queue) == 0 && m.closed {
			m.mu.Unlock()
			return
		}

		n := m.queue[0]
		m.queue = m.queue[1:]

		targets := make([]Observer, 0, len(m.subs))
		for id, fn := range m.subs {
			if n.only == allSubscribers || n.only == id {
				targets = append(targets, fn)
			}
		}
		m.mu.Unlock()

		for _, fn := range targets {
			fn(n.sess)
		}
		m.mu.Lock()
	}
}

// translateLogin maps issuer failures onto the package error taxonomy.
// Transport errors pass through untranslated for the caller to inspect.
func translateLogin(err error, caller string) error {
	switch {
	case errors.Is(err, issuer.EmailNotFoundErr), errors.Is(err, issuer.InvalidPasswordErr):
		return errors.Wrap(InvalidCredentialsErr, caller)
	case errors.Is(err, issuer.EmailExistsErr):
		return errors.Wrap(EmailExistsErr, caller)
	}
	return errors.Wrap(err, caller)
}
