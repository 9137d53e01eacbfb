// Package session implements the login state machine shared by the user and
// admin surfaces. A session moves LoggedOut -> LoggingIn -> LoggedIn and back
// through explicit logout or expiry. The manager persists the session record
// and an activity timestamp in the durable local store, refreshes the
// timestamp on tracked activity and on a periodic timer, and expires the
// session locally when the timestamp falls outside the configured window,
// without waiting for backend confirmation.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"raharpa/internal/localstore"
	"raharpa/internal/models"
	"raharpa/internal/pkg/logger"
)

// State is the position in the login state machine.
type State int

const (
	StateLoggedOut State = iota
	StateLoggingIn
	StateLoggedIn
	StateLoggingOut
)

var (
	// ErrLoginInFlight is returned when a login is submitted while another
	// login request is still running.
	ErrLoginInFlight = errors.New("session: login already in flight")
	// ErrNotLoggedIn is returned by Logout without an active session.
	ErrNotLoggedIn = errors.New("session: not logged in")
)

const (
	// refreshInterval keeps the timestamp fresh even when activity tracking
	// does not fire reliably.
	refreshInterval = 10 * time.Minute
	// checkInterval is how often the expiry check runs.
	checkInterval = 5 * time.Minute
)

// LoginFunc performs the backend login call for a concrete resource
// (user login by name, admin login by credentials).
type LoginFunc func(ctx context.Context) (*models.Session, error)

// LogoutFunc performs the best-effort backend logout call.
type LogoutFunc func(ctx context.Context, subjectID string) error

// Manager drives one session (user or admin) through the state machine.
type Manager struct {
	store  localstore.Storage
	key    string
	window time.Duration
	log    *logger.Logger

	mu            sync.Mutex
	state         State
	sess          *models.Session
	loginInFlight bool
	onExpire      func()
	backendLogout LogoutFunc

	stopOnce sync.Once
	stop     chan struct{}
}

// NewManager creates a session manager persisting under the given storage
// key ("userData" or "adminData") with the given expiry window.
func NewManager(store localstore.Storage, key string, window time.Duration, l *logger.Logger) *Manager {
	return &Manager{
		store:  store,
		key:    key,
		window: window,
		log:    l,
		stop:   make(chan struct{}),
	}
}

// SetExpiryHandler registers the callback fired when the periodic check
// expires the session. Views use it to fall back to the login surface.
func (m *Manager) SetExpiryHandler(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onExpire = fn
}

// SetBackendLogout registers the backend logout call attempted on explicit
// logout. Its failure never blocks local logout.
func (m *Manager) SetBackendLogout(fn LogoutFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.backendLogout = fn
}

// Resume restores a persisted session if its timestamp is still inside the
// window. A stale or unreadable record is cleaned up and ignored.
func (m *Manager) Resume() (*models.Session, bool) {
	sess, err := m.store.GetSession(m.key)
	if err != nil {
		return nil, false
	}

	ts, err := m.store.GetTimestamp()
	if err != nil || time.Since(ts) > m.window {
		m.clearLocal()
		return nil, false
	}

	m.mu.Lock()
	m.state = StateLoggedIn
	m.sess = sess
	m.mu.Unlock()

	if err := m.store.PutTimestamp(time.Now()); err != nil {
		m.log.Sugar().Warnf("Failed to refresh session timestamp: %s", err)
	}
	return sess, true
}

// Login runs the backend login call, allowing only a single in-flight
// request. The LoggedIn transition and the persisted timestamp happen only
// on an explicit success.
func (m *Manager) Login(ctx context.Context, fn LoginFunc) (*models.Session, error) {
	m.mu.Lock()
	if m.loginInFlight {
		m.mu.Unlock()
		return nil, ErrLoginInFlight
	}
	m.loginInFlight = true
	m.state = StateLoggingIn
	m.mu.Unlock()

	sess, err := fn(ctx)

	m.mu.Lock()
	m.loginInFlight = false
	if err != nil {
		m.state = StateLoggedOut
		m.mu.Unlock()
		return nil, err
	}
	m.state = StateLoggedIn
	m.sess = sess
	m.mu.Unlock()

	if err := m.store.PutSession(m.key, sess); err != nil {
		// The in-memory session stays valid; only resumption after a
		// restart is lost.
		m.log.Sugar().Warnf("Failed to persist session: %s", err)
	}
	return sess, nil
}

// Logout leaves the session. Local storage is always cleared and the state
// machine always lands in LoggedOut, whatever the backend call does; the
// backend error is returned for user-visible messaging only.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateLoggedIn || m.sess == nil {
		m.mu.Unlock()
		return ErrNotLoggedIn
	}
	m.state = StateLoggingOut
	sess := m.sess
	backendLogout := m.backendLogout
	m.mu.Unlock()

	defer m.clearLocal()

	if backendLogout != nil {
		if err := backendLogout(ctx, sess.SubjectID); err != nil {
			m.log.Sugar().Warnf("Backend logout failed, clearing local session anyway: %s", err)
			return err
		}
	}
	return nil
}

// Touch refreshes the activity timestamp. Tracked user activity (clicks,
// keypresses, scrolls) funnels into this.
func (m *Manager) Touch() {
	m.mu.Lock()
	loggedIn := m.state == StateLoggedIn
	m.mu.Unlock()
	if !loggedIn {
		return
	}
	if err := m.store.PutTimestamp(time.Now()); err != nil {
		m.log.Sugar().Warnf("Failed to refresh session timestamp: %s", err)
	}
}

// Start runs the periodic refresh and expiry timers until Stop is called.
func (m *Manager) Start() {
	go m.run()
}

// Stop halts the periodic timers. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
}

// State returns the current machine state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Current returns the active session, or nil when logged out.
func (m *Manager) Current() *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sess
}

func (m *Manager) run() {
	refresh := time.NewTicker(refreshInterval)
	check := time.NewTicker(checkInterval)
	defer refresh.Stop()
	defer check.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-refresh.C:
			m.Touch()
		case <-check.C:
			m.checkExpiry()
		}
	}
}

// checkExpiry expires the session when the stored timestamp is older than
// the window. This is a purely local transition: no backend call is needed
// to effect it.
func (m *Manager) checkExpiry() {
	m.mu.Lock()
	loggedIn := m.state == StateLoggedIn
	m.mu.Unlock()
	if !loggedIn {
		return
	}

	ts, err := m.store.GetTimestamp()
	if err == nil && time.Since(ts) <= m.window {
		return
	}

	m.log.Info("session expired, clearing local state")
	m.clearLocal()

	m.mu.Lock()
	onExpire := m.onExpire
	m.mu.Unlock()
	if onExpire != nil {
		onExpire()
	}
}

func (m *Manager) clearLocal() {
	if err := m.store.DeleteSession(m.key); err != nil {
		m.log.Sugar().Warnf("Failed to delete session record: %s", err)
	}
	if err := m.store.DeleteTimestamp(); err != nil {
		m.log.Sugar().Warnf("Failed to delete session timestamp: %s", err)
	}

	m.mu.Lock()
	m.state = StateLoggedOut
	m.sess = nil
	m.mu.Unlock()
}
