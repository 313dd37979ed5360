// Package session owns the client's authentication state: the access/refresh
// token pair, its durable copy, and the refresh that keeps it usable.
//
// A Manager starts Unauthenticated. Init restores a persisted session, Login
// and Signup establish a new one, Logout and any failed refresh drop it.
// AuthHeader hands out a bearer header and refreshes the access token first
// when it is within the safety margin of expiring. Concurrent refreshes of the
// same refresh token share a single backend call.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/partfinder/partfinder/internal/client/authapi"
	"github.com/partfinder/partfinder/internal/common"
	"github.com/partfinder/partfinder/internal/logging"
)

// AuthAPI is the part of the auth backend the manager calls.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*authapi.TokenResponse, error)
	Register(ctx context.Context, username, email, password string) (*authapi.TokenResponse, error)
	Refresh(ctx context.Context, refreshToken string) (*authapi.TokenResponse, error)
	SendResetCode(ctx context.Context, email string) (string, error)
	VerifyResetCode(ctx context.Context, email, code string) (*authapi.VerifyResult, error)
	ResetPassword(ctx context.Context, email, code, newPassword string) (string, error)
}

// Storage is the durable slot the session is persisted in. Get returns
// (nil, nil) when nothing is stored.
type Storage interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Manager is safe for concurrent use.
type Manager struct {
	api   AuthAPI
	store Storage
	log   logging.Logger
	now   func() time.Time

	margin    time.Duration
	retries   uint64
	retryBase time.Duration
	key       string
	listeners []func(State)

	flights singleflight.Group

	// storeMu orders writes to the durable copy; it is taken before mu.
	storeMu sync.Mutex

	mu         sync.Mutex
	session    *Session
	restoring  bool
	refreshing int
	loading    int
	lastErr    error
	disposed   bool
	notified   State
}

// New returns an Unauthenticated manager. Call Init to restore a persisted
// session.
func New(api AuthAPI, store Storage, opts ...Option) *Manager {
	m := &Manager{
		api:       api,
		store:     store,
		log:       logging.Nop(),
		now:       time.Now,
		margin:    DefaultSafetyMargin,
		retryBase: DefaultRetryBase,
		key:       DefaultStorageKey,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = m.log.With("module", "session")
	return m
}

// Init restores the persisted session. A stored session whose refresh token
// has expired is purged; one whose access token has expired is refreshed
// before Init returns. Restore failures leave the manager Unauthenticated and
// are reported through LastError, not the returned error.
func (m *Manager) Init(ctx context.Context) error {
	if err := m.beginOp(); err != nil {
		return err
	}
	defer m.endOp(nil)

	if m.restore(ctx) {
		if _, err := m.refresh(ctx, true); err != nil {
			m.log.Info(ctx, "stored session could not be refreshed", "error", err)
		}
	}
	m.log.Info(ctx, "session initialized", "state", m.State())
	return nil
}

// restore loads the stored session into memory and reports whether its access
// token needs refreshing.
func (m *Manager) restore(ctx context.Context) bool {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	m.update(func() { m.restoring = true })
	defer m.update(func() { m.restoring = false })

	m.mu.Lock()
	held := m.session != nil
	m.mu.Unlock()
	if held {
		return false
	}

	data, err := m.store.Get(ctx, m.key)
	if err != nil {
		m.log.Warn(ctx, "read stored session", "error", err)
		m.recordErr(fmt.Errorf("restore session: %w", err))
		m.deleteStored(ctx)
		return false
	}
	if data == nil {
		return false
	}

	now := m.now()
	ss, err := DecodeStored(data, now)
	if err != nil {
		m.log.Warn(ctx, "discarding unreadable stored session", "error", err)
		m.recordErr(fmt.Errorf("restore session: %w", err))
		m.deleteStored(ctx)
		return false
	}
	if !ss.Session.CanRefresh(now) {
		m.log.Info(ctx, "stored session expired")
		m.deleteStored(ctx)
		return false
	}

	s := ss.Session
	m.update(func() {
		if m.session == nil && !m.disposed {
			m.session = &s
			m.restoring = false
		}
	})
	return !s.AccessValid(now)
}

// Login authenticates against the backend and installs the new session,
// replacing any current one. On failure the current session is untouched.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	if err := m.beginOp(); err != nil {
		return err
	}
	err := m.establish(ctx, func(ctx context.Context) (*authapi.TokenResponse, error) {
		return m.api.Login(ctx, email, password)
	})
	m.endOp(err)
	if err == nil {
		m.log.Info(ctx, "logged in")
	}
	return err
}

// Signup registers a new account and installs its session.
func (m *Manager) Signup(ctx context.Context, username, email, password string) error {
	if err := m.beginOp(); err != nil {
		return err
	}
	err := m.establish(ctx, func(ctx context.Context) (*authapi.TokenResponse, error) {
		return m.api.Register(ctx, username, email, password)
	})
	m.endOp(err)
	if err == nil {
		m.log.Info(ctx, "signed up")
	}
	return err
}

func (m *Manager) establish(ctx context.Context, call func(context.Context) (*authapi.TokenResponse, error)) error {
	tr, err := call(ctx)
	if err != nil {
		return err
	}
	if tr == nil || tr.AccessToken == "" || tr.RefreshToken == "" || tr.RefreshExpiresIn <= 0 {
		return fmt.Errorf("%w: incomplete token pair", authapi.ErrMalformedResponse)
	}
	receivedAt := m.now()
	s := FromTokenResponse(tr, receivedAt)

	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	if err := m.persist(ctx, StoredSession{Session: s, ReceivedAt: receivedAt}); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	m.update(func() {
		if !m.disposed {
			m.session = &s
		}
	})
	return nil
}

// Logout drops the session from memory and storage. Storage errors are logged
// and otherwise ignored.
func (m *Manager) Logout(ctx context.Context) {
	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	m.mu.Lock()
	disposed := m.disposed
	m.mu.Unlock()
	if disposed {
		return
	}

	m.update(func() { m.session = nil })
	m.deleteStored(ctx)
	m.log.Info(ctx, "logged out")
}

// AuthHeader returns the Authorization header for an authenticated request,
// refreshing the access token first when it is stale. The header is empty
// when no valid token can be obtained.
func (m *Manager) AuthHeader(ctx context.Context) Header {
	if m.isDisposed() {
		return Header{}
	}
	if tok, ok := m.freshToken(); ok {
		return bearer(tok)
	}
	tok, err := m.refresh(ctx, false)
	if err != nil {
		m.log.Debug(ctx, "no auth header", "error", err)
		return Header{}
	}
	return bearer(tok)
}

// RefreshAccessToken exchanges the refresh token for a new access token
// regardless of how fresh the current one is. A concurrent refresh of the
// same token that already reached the backend satisfies the call.
func (m *Manager) RefreshAccessToken(ctx context.Context) (string, error) {
	if m.isDisposed() {
		return "", ErrDisposed
	}
	return m.refresh(ctx, true)
}

func (m *Manager) refresh(ctx context.Context, force bool) (string, error) {
	cur, ok := m.Session()
	if !ok {
		return "", ErrSessionExpired
	}
	if !cur.CanRefresh(m.now()) {
		m.storeMu.Lock()
		m.dropIfCurrent(ctx, cur.RefreshToken, nil)
		m.storeMu.Unlock()
		m.log.Info(ctx, "refresh token expired")
		return "", ErrSessionExpired
	}

	used := cur.RefreshToken
	detached := context.WithoutCancel(ctx)
	// A forced caller that joined a flight which skipped the backend call
	// starts its own flight for the same token.
	for attempt := 0; ; attempt++ {
		ch := m.flights.DoChan(used, func() (any, error) {
			return m.runRefresh(detached, used, force)
		})

		var res singleflight.Result
		select {
		case res = <-ch:
		case <-ctx.Done():
			return "", ctx.Err()
		}
		if res.Err != nil {
			return "", res.Err
		}
		out := res.Val.(refreshResult)
		if !force || out.exchanged || attempt == maxForcedRejoins {
			return out.token, nil
		}
	}
}

const maxForcedRejoins = 2

// refreshResult is what a refresh flight hands to every caller sharing it.
// exchanged is false when the flight returned the held token without
// calling the backend.
type refreshResult struct {
	token     string
	exchanged bool
}

func (m *Manager) runRefresh(ctx context.Context, used string, force bool) (refreshResult, error) {
	m.update(func() { m.refreshing++ })
	defer m.update(func() { m.refreshing-- })

	cur, ok := m.Session()
	if !ok {
		return refreshResult{}, ErrSessionExpired
	}
	// The token was rotated or replaced after the caller read it.
	if cur.RefreshToken != used {
		if cur.AccessValid(m.now()) {
			return refreshResult{token: cur.AccessToken, exchanged: true}, nil
		}
		return refreshResult{}, ErrSessionExpired
	}
	// A caller that queued behind a finished refresh finds a fresh token.
	if !force && cur.AccessValid(m.now().Add(m.margin)) {
		return refreshResult{token: cur.AccessToken}, nil
	}

	tr, err := m.callRefresh(ctx, used)
	if err != nil {
		m.storeMu.Lock()
		dropped := m.dropIfCurrent(ctx, used, err)
		m.storeMu.Unlock()
		if dropped {
			m.log.Warn(ctx, "refresh failed, session dropped", "error", err)
		}
		return refreshResult{}, fmt.Errorf("refresh session: %w", err)
	}

	receivedAt := m.now()

	m.storeMu.Lock()
	defer m.storeMu.Unlock()

	var next Session
	applied := false
	m.update(func() {
		if m.session == nil || m.session.RefreshToken != used {
			return
		}
		next = m.session.Refreshed(tr, receivedAt)
		m.session = &next
		applied = true
	})

	if !applied {
		m.log.Debug(ctx, "refresh result superseded")
		if s, ok := m.Session(); ok && s.AccessValid(m.now()) {
			return refreshResult{token: s.AccessToken, exchanged: true}, nil
		}
		return refreshResult{}, ErrSessionExpired
	}

	if err := m.persist(ctx, StoredSession{Session: next, ReceivedAt: receivedAt}); err != nil {
		m.log.Warn(ctx, "persist refreshed session", "error", err)
	}
	m.log.Debug(ctx, "access token refreshed", "expires_at", next.AccessTokenExpiresAt)
	return refreshResult{token: next.AccessToken, exchanged: true}, nil
}

// callRefresh retries only while the backend is unreachable.
func (m *Manager) callRefresh(ctx context.Context, token string) (*authapi.TokenResponse, error) {
	if m.retries == 0 {
		return m.api.Refresh(ctx, token)
	}

	var tr *authapi.TokenResponse
	b := retry.WithMaxRetries(m.retries, retry.NewExponential(m.retryBase))
	err := retry.Do(ctx, b, func(ctx context.Context) error {
		var err error
		tr, err = m.api.Refresh(ctx, token)
		if errors.Is(err, authapi.ErrUnavailable) {
			m.log.Debug(ctx, "refresh unavailable, retrying", "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return tr, nil
}

// SendResetCode asks the backend to deliver a reset code to email and
// returns the backend's confirmation message.
func (m *Manager) SendResetCode(ctx context.Context, email string) (string, error) {
	if err := m.beginOp(); err != nil {
		return "", err
	}
	msg, err := m.api.SendResetCode(ctx, email)
	m.endOp(err)
	return msg, err
}

// VerifyResetCode checks code against the backend. A code the backend
// rejects yields a *CodeRejectedError.
func (m *Manager) VerifyResetCode(ctx context.Context, email, code string) error {
	if err := m.beginOp(); err != nil {
		return err
	}
	res, err := m.api.VerifyResetCode(ctx, email, code)
	if err == nil && !res.Valid {
		err = &CodeRejectedError{Message: res.Message}
	}
	m.endOp(err)
	return err
}

// ResetPassword sets a new password using a verified code. It does not
// change the current session.
func (m *Manager) ResetPassword(ctx context.Context, email, code, newPassword string) (string, error) {
	if err := m.beginOp(); err != nil {
		return "", err
	}
	msg, err := m.api.ResetPassword(ctx, email, code, newPassword)
	m.endOp(err)
	return msg, err
}

// Dispose drops the in-memory session and stops the manager. The stored
// session is kept so a later Init can restore it.
func (m *Manager) Dispose() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disposed = true
	m.session = nil
}

// ClearError resets the error returned by LastError.
func (m *Manager) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = nil
}

// LastError returns the error of the most recent failed operation, including
// failures absorbed by Init and background refreshes.
func (m *Manager) LastError() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

func (m *Manager) IsAuthenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session != nil
}

// IsLoading reports whether a user-initiated operation or the restore is in
// progress.
func (m *Manager) IsLoading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loading > 0 || m.restoring
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

// Session returns a copy of the current session.
func (m *Manager) Session() (Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return Session{}, false
	}
	return *m.session, true
}

func (m *Manager) stateLocked() State {
	switch {
	case m.restoring:
		return Restoring
	case m.session == nil:
		return Unauthenticated
	case m.refreshing > 0:
		return Refreshing
	default:
		return Authenticated
	}
}

// update applies fn under the lock and notifies listeners if the state moved.
func (m *Manager) update(fn func()) {
	m.mu.Lock()
	fn()
	st := m.stateLocked()
	changed := st != m.notified && !m.disposed
	m.notified = st
	listeners := m.listeners
	m.mu.Unlock()

	if changed {
		for _, l := range listeners {
			l(st)
		}
	}
}

func (m *Manager) beginOp() error {
	var err error
	m.update(func() {
		if m.disposed {
			err = ErrDisposed
			return
		}
		m.loading++
		m.lastErr = nil
	})
	return err
}

func (m *Manager) endOp(err error) {
	m.update(func() {
		m.loading--
		if err != nil {
			m.lastErr = err
		}
	})
}

func (m *Manager) recordErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastErr = err
}

func (m *Manager) isDisposed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disposed
}

func (m *Manager) freshToken() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session != nil && m.session.AccessValid(m.now().Add(m.margin)) {
		return m.session.AccessToken, true
	}
	return "", false
}

// dropIfCurrent clears the session if it still holds refreshToken. The caller
// holds storeMu.
func (m *Manager) dropIfCurrent(ctx context.Context, refreshToken string, cause error) bool {
	dropped := false
	m.update(func() {
		if m.session == nil || m.session.RefreshToken != refreshToken {
			return
		}
		m.session = nil
		dropped = true
		if cause != nil {
			m.lastErr = cause
		}
	})
	if dropped {
		m.deleteStored(ctx)
	}
	return dropped
}

func (m *Manager) persist(ctx context.Context, ss StoredSession) error {
	data, err := EncodeStored(ss)
	if err != nil {
		return err
	}
	return m.store.Set(ctx, m.key, data)
}

func (m *Manager) deleteStored(ctx context.Context) {
	if err := m.store.Delete(ctx, m.key); err != nil {
		m.log.Warn(ctx, "delete stored session", "error", err)
	}
}

func bearer(token string) Header {
	return Header{common.AuthorizationHeader: common.BearerPrefix + token}
}
