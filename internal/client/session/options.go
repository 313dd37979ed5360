package session

import (
	"time"

	"github.com/partfinder/partfinder/internal/logging"
)

const (
	DefaultSafetyMargin = 5 * time.Second
	DefaultStorageKey   = "auth.session"
	DefaultRetryBase    = 500 * time.Millisecond
)

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

func WithLogger(l logging.Logger) Option {
	return func(m *Manager) { m.log = l }
}

// WithSafetyMargin sets how long before expiry an access token is treated
// as stale.
func WithSafetyMargin(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.margin = d
		}
	}
}

// WithRefreshRetry retries a refresh that failed because the backend was
// unreachable, up to retries times with exponential backoff starting at base.
func WithRefreshRetry(retries uint64, base time.Duration) Option {
	return func(m *Manager) {
		m.retries = retries
		if base > 0 {
			m.retryBase = base
		}
	}
}

func WithStorageKey(key string) Option {
	return func(m *Manager) {
		if key != "" {
			m.key = key
		}
	}
}

// WithListener registers fn to be called after every state change. Calls
// happen outside the manager's lock and stop once the manager is disposed.
// fn must not call back into the Manager.
func WithListener(fn func(State)) Option {
	return func(m *Manager) {
		if fn != nil {
			m.listeners = append(m.listeners, fn)
		}
	}
}
