package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partfinder/partfinder/internal/client/authapi"
	"github.com/partfinder/partfinder/internal/client/storage"
)

// ---- fakes ----

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{t: t0} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// fakeAPI implements AuthAPI. Refresh results are consumed from RefreshQueue
// first, then RefreshRet/RefreshErr.
type fakeAPI struct {
	mu sync.Mutex

	LoginRet    *authapi.TokenResponse
	LoginErr    error
	RegisterRet *authapi.TokenResponse
	RegisterErr error

	RefreshRet   *authapi.TokenResponse
	RefreshErr   error
	RefreshQueue []error
	// RefreshGate, when set, blocks Refresh until closed.
	RefreshGate    chan struct{}
	RefreshStarted chan struct{}

	SendCodeRet  string
	SendCodeErr  error
	VerifyRet    *authapi.VerifyResult
	VerifyErr    error
	ResetRet     string
	ResetErr     error
	LoginGate    chan struct{}
	LoginStarted chan struct{}

	RefreshCalls     int
	LastRefreshToken string
	LastLoginEmail   string
	LastRegisterUser string
}

func (f *fakeAPI) Login(ctx context.Context, email, password string) (*authapi.TokenResponse, error) {
	if f.LoginStarted != nil {
		f.LoginStarted <- struct{}{}
	}
	if f.LoginGate != nil {
		<-f.LoginGate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastLoginEmail = email
	return f.LoginRet, f.LoginErr
}

func (f *fakeAPI) Register(ctx context.Context, username, email, password string) (*authapi.TokenResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LastRegisterUser = username
	return f.RegisterRet, f.RegisterErr
}

func (f *fakeAPI) Refresh(ctx context.Context, refreshToken string) (*authapi.TokenResponse, error) {
	f.mu.Lock()
	f.RefreshCalls++
	f.LastRefreshToken = refreshToken
	started, gate := f.RefreshStarted, f.RefreshGate
	var queued error
	fromQueue := len(f.RefreshQueue) > 0
	if fromQueue {
		queued, f.RefreshQueue = f.RefreshQueue[0], f.RefreshQueue[1:]
	}
	ret, err := f.RefreshRet, f.RefreshErr
	f.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		<-gate
	}
	if fromQueue && queued != nil {
		return nil, queued
	}
	return ret, err
}

func (f *fakeAPI) SendResetCode(ctx context.Context, email string) (string, error) {
	return f.SendCodeRet, f.SendCodeErr
}

func (f *fakeAPI) VerifyResetCode(ctx context.Context, email, code string) (*authapi.VerifyResult, error) {
	return f.VerifyRet, f.VerifyErr
}

func (f *fakeAPI) ResetPassword(ctx context.Context, email, code, newPassword string) (string, error) {
	return f.ResetRet, f.ResetErr
}

func (f *fakeAPI) refreshCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.RefreshCalls
}

// faultyStore wraps a MemoryStore with injectable errors.
type faultyStore struct {
	*storage.MemoryStore
	GetErr error
	SetErr error
}

func (s *faultyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *faultyStore) Set(ctx context.Context, key string, value []byte) error {
	if s.SetErr != nil {
		return s.SetErr
	}
	return s.MemoryStore.Set(ctx, key, value)
}

// ---- helpers ----

func tokens(access, refresh string, expiresIn, refreshExpiresIn int64) *authapi.TokenResponse {
	return &authapi.TokenResponse{
		AccessToken: access, TokenType: "bearer", ExpiresIn: expiresIn,
		RefreshToken: refresh, RefreshExpiresIn: refreshExpiresIn,
	}
}

func newManager(api AuthAPI, store Storage, clock *fakeClock, opts ...Option) *Manager {
	return New(api, store, append([]Option{WithClock(clock.Now)}, opts...)...)
}

func storedSession(t *testing.T, store Storage, now time.Time) (StoredSession, bool) {
	t.Helper()
	data, err := store.Get(context.Background(), DefaultStorageKey)
	require.NoError(t, err)
	if data == nil {
		return StoredSession{}, false
	}
	ss, err := DecodeStored(data, now)
	require.NoError(t, err)
	return ss, true
}

func loggedIn(t *testing.T, api *fakeAPI, store Storage, clock *fakeClock, opts ...Option) *Manager {
	t.Helper()
	m := newManager(api, store, clock, opts...)
	require.NoError(t, m.Init(context.Background()))
	require.NoError(t, m.Login(context.Background(), "demo@partfinder.com", "Password123"))
	return m
}

// ---- TESTS ----

func TestLogin_HeaderWithoutNetwork(t *testing.T) {
	api := &fakeAPI{LoginRet: tokens("A1", "R1", 900, 604800)}
	store := storage.NewMemoryStore()
	clock := newFakeClock()

	m := loggedIn(t, api, store, clock)

	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, Authenticated, m.State())
	assert.Equal(t, Header{"Authorization": "Bearer A1"}, m.AuthHeader(context.Background()))
	assert.Equal(t, 0, api.refreshCalls())

	ss, ok := storedSession(t, store, clock.Now())
	require.True(t, ok)
	assert.Equal(t, "A1", ss.Session.AccessToken)
	assert.Equal(t, clock.Now().UnixMilli()+900_000, ss.Session.AccessTokenExpiresAt.UnixMilli())
	assert.True(t, ss.ReceivedAt.Equal(clock.Now()))
}

func TestDemoLogin_RefreshAfterAccessExpiry(t *testing.T) {
	var (
		mu             sync.Mutex
		refreshBodies  []map[string]string
		refreshedCount int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/v1/users/login":
			var in map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			if in["email"] != "demo@partfinder.com" || in["password"] != "Password123" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"detail":"Invalid email or password."}`))
				return
			}
			_ = json.NewEncoder(w).Encode(tokens("A1", "R1", 900, 604800))
		case "/api/v1/users/refresh":
			var in map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			mu.Lock()
			refreshBodies = append(refreshBodies, in)
			refreshedCount++
			mu.Unlock()
			_ = json.NewEncoder(w).Encode(tokens("A2", "R2", 900, 604800))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	api, err := authapi.NewHTTPClient(srv.URL, time.Second)
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	clock := newFakeClock()
	m := newManager(api, store, clock)
	require.NoError(t, m.Init(context.Background()))

	loginAt := clock.Now()
	require.NoError(t, m.Login(context.Background(), "demo@partfinder.com", "Password123"))

	ss, ok := storedSession(t, store, clock.Now())
	require.True(t, ok)
	assert.Equal(t, loginAt.UnixMilli()+900_000, ss.Session.AccessTokenExpiresAt.UnixMilli())

	clock.Advance(900_001 * time.Millisecond)

	h := m.AuthHeader(context.Background())
	assert.Equal(t, Header{"Authorization": "Bearer A2"}, h)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, refreshedCount)
	assert.Equal(t, "R1", refreshBodies[0]["refresh_token"])

	ss, ok = storedSession(t, store, clock.Now())
	require.True(t, ok)
	assert.Equal(t, "A2", ss.Session.AccessToken)
	assert.Equal(t, "R2", ss.Session.RefreshToken)
}

func TestSendResetCode_UnknownEmail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"No account found for this email."}`))
	}))
	defer srv.Close()

	api, err := authapi.NewHTTPClient(srv.URL, time.Second)
	require.NoError(t, err)

	store := storage.NewMemoryStore()
	clock := newFakeClock()
	m := newManager(api, store, clock)
	require.NoError(t, m.Init(context.Background()))
	before := m.State()

	_, err = m.SendResetCode(context.Background(), "nobody@x.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No account found for this email.")
	assert.ErrorIs(t, err, authapi.ErrNotFound)
	assert.Equal(t, err, m.LastError())

	assert.Equal(t, before, m.State())
	assert.False(t, m.IsAuthenticated())
	_, ok := storedSession(t, store, clock.Now())
	assert.False(t, ok)
}

func TestAuthHeader_RefreshesInsideSafetyMargin(t *testing.T) {
	api := &fakeAPI{
		LoginRet:   tokens("A1", "R1", 10, 3600),
		RefreshRet: tokens("A2", "", 10, 0),
	}
	clock := newFakeClock()
	m := loggedIn(t, api, storage.NewMemoryStore(), clock)

	clock.Advance(4 * time.Second)
	assert.Equal(t, Header{"Authorization": "Bearer A1"}, m.AuthHeader(context.Background()))
	assert.Equal(t, 0, api.refreshCalls())

	clock.Advance(2 * time.Second)
	assert.Equal(t, Header{"Authorization": "Bearer A2"}, m.AuthHeader(context.Background()))
	assert.Equal(t, 1, api.refreshCalls())

	s, ok := m.Session()
	require.True(t, ok)
	assert.Equal(t, "R1", s.RefreshToken, "refresh token kept when not rotated")
}

func TestAuthHeader_ExpiredRefreshTokenLogsOut(t *testing.T) {
	api := &fakeAPI{LoginRet: tokens("A1", "R1", 30, 60)}
	store := storage.NewMemoryStore()
	clock := newFakeClock()
	m := loggedIn(t, api, store, clock)

	clock.Advance(61 * time.Second)

	assert.Empty(t, m.AuthHeader(context.Background()))
	assert.False(t, m.IsAuthenticated())
	assert.Equal(t, 0, api.refreshCalls())
	assert.NoError(t, m.LastError())
	_, ok := storedSession(t, store, clock.Now())
	assert.False(t, ok)
}

func TestRefreshAccessToken_NoSession(t *testing.T) {
	m := newManager(&fakeAPI{}, storage.NewMemoryStore(), newFakeClock())

	_, err := m.RefreshAccessToken(context.Background())
	require.ErrorIs(t, err, ErrSessionExpired)
	assert.Empty(t, m.AuthHeader(context.Background()))
}

func TestRefreshAccessToken_Forced(t *testing.T) {
	api := &fakeAPI{
		LoginRet:   tokens("A1", "R1", 900, 3600),
		RefreshRet: tokens("A2", "R2", 900, 7200),
	}
	store := storage.NewMemoryStore()
	clock := newFakeClock()
	m := loggedIn(t, api, store, clock)

	tok, err := m.RefreshAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A2", tok)
	assert.Equal(t, "R1", api.LastRefreshToken)

	ss, ok := storedSession(t, store, clock.Now())
	require.True(t, ok)
	assert.Equal(t, "R2", ss.Session.RefreshToken)
	assert.Equal(t, clock.Now().Add(2*time.Hour).UnixMilli(), ss.Session.RefreshTokenExpiresAt.UnixMilli())
}

func TestRefresh_FailureDropsSession(t *testing.T) {
	rejected := &authapi.APIError{StatusCode: http.StatusUnauthorized, Message: "Refresh token expired. Please log in again."}
	api := &fakeAPI{LoginRet: tokens("A1", "R1", 900, 3600), RefreshErr: rejected}
	store := storage.NewMemoryStore()
	clock := newFakeClock()
	m := loggedIn(t, api, store, clock)

	_, err := m.RefreshAccessToken(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, authapi.ErrUnauthorized)

	assert.False(t, m.IsAuthenticated())
	assert.Equal(t, Unauthenticated, m.State())
	assert.Equal(t, rejected, m.LastError())
	_, ok := storedSession(t, store, clock.Now())
	assert.False(t, ok)

	m.ClearError()
	assert.NoError(t, m.LastError())
}

func TestRefresh_RetriesOnlyTransportErrors(t *testing.T) {
	unavailable := &authapi.TransportError{Message: authapi.MsgRefreshExpired, Err: errors.New("dial tcp: refused")}

	api := &fakeAPI{
		LoginRet:     tokens("A1", "R1", 900, 3600),
		RefreshRet:   tokens("A2", "R1", 900, 3600),
		RefreshQueue: []error{unavailable, unavailable},
	}
	m := loggedIn(t, api, storage.NewMemoryStore(), newFakeClock(), WithRefreshRetry(3, time.Millisecond))

	tok, err := m.RefreshAccessToken(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "A2", tok)
	assert.Equal(t, 3, api.refreshCalls())

	api2 := &fakeAPI{
		LoginRet:   tokens("A1", "R1", 900, 3600),
		RefreshErr: &authapi.APIError{StatusCode: http.StatusUnauthorized, Message: "nope"},
	}
	m2 := loggedIn(t, api2, storage.NewMemoryStore(), newFakeClock(), WithRefreshRetry(3, time.Millisecond))

	_, err = m2.RefreshAccessToken(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, api2.refreshCalls())
}

func TestRefresh_RetriesExhausted(t *testing.T) {
	unavailable := &authapi.TransportError{Message: authapi.MsgRefreshExpired, Err: errors.New("timeout")}
	api := &fakeAPI{LoginRet: tokens("A1", "R1", 900, 3600), RefreshErr: unavailable}
	m := loggedIn(t, api, storage.NewMemoryStore(), newFakeClock(), WithRefreshRetry(2, time.Millisecond))

	_, err := m.RefreshAccessToken(context.Background())
	require.ErrorIs(t, err, authapi.ErrUnavailable)
	assert.Equal(t, 3, api.refreshCalls())
	assert.False(t, m.IsAuthenticated())
}

func TestAuthHeader_ConcurrentCallersShareOneRefresh(t *testing.T) {
	api := &fakeAPI{
		LoginRet:       tokens("A1", "R1", 900, 3600),
		RefreshRet:     tokens("A2", "R2", 900, 3600),
		RefreshGate:    make(chan struct{}),
		RefreshStarted: make(chan struct{}, 16),
	}
	clock := newFakeClock()
	m := loggedIn(t, api, storage.NewMemoryStore(), clock)
	clock.Advance(901 * time.Second)

	const n = 10
	headers := make([]Header, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			headers[i] = m.AuthHeader(context.Background())
		}(i)
	}

	<-api.RefreshStarted
	assert.Equal(t, Refreshing, m.State())
	time.Sleep(20 * time.Millisecond)
	close(api.RefreshGate)
	wg.Wait()

	assert.Equal(t, 1, api.refreshCalls())
	for _, h := range headers {
		assert.Equal(t, Header{"Authorization": "Bearer A2"}, h)
	}
	assert.Equal(t, Authenticated, m.State())
}

func TestRefreshAccessToken_ForcedDoesNotSettleForSkippedFlight(t *testing.T) {
	api := &fakeAPI{
		LoginRet:   tokens("A1", "R1", 900, 3600),
		RefreshRet: tokens("A2", "R2", 900, 3600),
	}
	m := loggedIn(t, api, storage.NewMemoryStore(), newFakeClock())

	// A flight for R1 that hands back the held token without a backend call.
	gate := make(chan struct{})
	skipped := m.flights.DoChan("R1", func() (any, error) {
		<-gate
		return refreshResult{token: "A1"}, nil
	})

	var tok string
	var err error
	done := make(chan struct{})
	go func() {
		defer close(done)
		tok, err = m.RefreshAccessToken(context.Background())
	}()

	time.Sleep(20 * time.Millisecond)
	close(gate)
	<-skipped
	<-done

	require.NoError(t, err)
	assert.Equal(t, "A2", tok)
	assert.Equal(t, 1, api.refreshCalls())
	assert.Equal(t, "R1", api.LastRefreshToken)
}

func TestRefresh_CallerCancellationDoesNotAbortRefresh(t *testing.T) {
	api := &fakeAPI{
		LoginRet:       tokens("A1", "R1", 900, 3600),
		RefreshRet:     tokens("A2", "R2", 900, 3600),
		RefreshGate:    make(chan struct{}),
		RefreshStarted: make(chan struct{}, 1),
	}
	m := loggedIn(t, api, storage.NewMemoryStore(), newFakeClock())

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() {
		_, err := m.RefreshAccessToken(ctx)
		errc <- err
	}()

	<-api.RefreshStarted
	cancel()
	require.ErrorIs(t, <-errc, context.Canceled)

	close(api.RefreshGate)
	require.Eventually(t, func() bool {
		s, ok := m.Session()
		return ok && s.AccessToken == "A2"
	}, time.Second, 5*time.Millisecond)
}

func TestRefresh_LogoutDuringRefreshWins(t *testing.T) {
	api := &fakeAPI{
		LoginRet:       tokens("A1", "R1", 900, 3600),
		RefreshRet:     tokens("A2", "R2", 900, 3600),
		RefreshGate:    make(chan struct{}),
		RefreshStarted: make(chan struct{}, 1),
	}
	store := storage.NewMemoryStore()
	clock := newFakeClock()
	m := loggedIn(t, api, store, clock)

	errc := make(chan error, 1)
	go func() {
		_, err := m.RefreshAccessToken(context.Background())
		errc <- err
	}()

	<-api.RefreshStarted
	m.Logout(context.Background())
	close(api.RefreshGate)

	require.ErrorIs(t, <-errc, ErrSessionExpired)
	assert.False(t, m.IsAuthenticated())
	_, ok := storedSession(t, store, clock.Now())
	assert.False(t, ok)
}

func TestLogout_Idempotent(t *testing.T) {
	api := &fakeAPI{LoginRet: tokens("A1", "R1", 900, 3600)}
	store := storage.NewMemoryStore()
	clock := newFakeClock()
	m := loggedIn(t, api, store, clock)

	m.Logout(context.Background())
	m.Logout(context.Background())

	assert.Equal(t, Unauthenticated, m.State())
	assert.False(t, m.IsAuthenticated())
	_, ok := storedSession(t, store, clock.Now())
	assert.False(t, ok)
}

func TestLogin_FailureKeepsPriorSession(t *testing.T) {
	api := &fakeAPI{LoginRet: tokens("A1", "R1", 900, 3600)}
	store := storage.NewMemoryStore()
	m := loggedIn(t, api, store, newFakeClock())

	rejected := &authapi.APIError{StatusCode: http.StatusUnauthorized, Message: "Invalid email or password."}
	api.LoginErr = rejected
	err := m.Login(context.Background(), "demo@partfinder.com", "wrong")
	require.Equal(t, rejected, err)
	assert.Equal(t, "Invalid email or password.", m.LastError().Error())

	s, ok := m.Session()
	require.True(t, ok)
	assert.Equal(t, "A1", s.AccessToken)
}

func TestLogin_PersistFailureInstallsNothing(t *testing.T) {
	store := &faultyStore{MemoryStore: storage.NewMemoryStore(), SetErr: errors.New("disk full")}
	api := &fakeAPI{LoginRet: tokens("A1", "R1", 900, 3600)}
	m := newManager(api, store, newFakeClock())

	err := m.Login(context.Background(), "demo@partfinder.com", "Password123")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "persist session")
	assert.False(t, m.IsAuthenticated())
}

func TestLogin_IncompleteTokenPairInstallsNothing(t *testing.T) {
	tests := []struct {
		name string
		ret  *authapi.TokenResponse
	}{
		{"no refresh token", tokens("B1", "", 900, 3600)},
		{"no refresh lifetime", tokens("B1", "S1", 900, 0)},
		{"no access token", tokens("", "S1", 900, 3600)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			api := &fakeAPI{LoginRet: tokens("A1", "R1", 900, 3600)}
			store := storage.NewMemoryStore()
			clock := newFakeClock()
			m := loggedIn(t, api, store, clock)

			api.LoginRet = tt.ret
			err := m.Login(context.Background(), "other@partfinder.com", "pw")
			require.ErrorIs(t, err, authapi.ErrMalformedResponse)
			assert.Equal(t, err, m.LastError())

			s, ok := m.Session()
			require.True(t, ok)
			assert.Equal(t, "A1", s.AccessToken)
			assert.Equal(t, "R1", s.RefreshToken)

			ss, ok := storedSession(t, store, clock.Now())
			require.True(t, ok)
			assert.Equal(t, "R1", ss.Session.RefreshToken)
		})
	}
}

func TestSignup_IncompleteTokenPairStoresNothing(t *testing.T) {
	api := &fakeAPI{RegisterRet: tokens("A1", "", 900, 0)}
	store := storage.NewMemoryStore()
	clock := newFakeClock()
	m := newManager(api, store, clock)
	require.NoError(t, m.Init(context.Background()))

	err := m.Signup(context.Background(), "bob", "bob@x.io", "Password123")
	require.ErrorIs(t, err, authapi.ErrMalformedResponse)
	assert.False(t, m.IsAuthenticated())

	_, ok := storedSession(t, store, clock.Now())
	assert.False(t, ok)
}

func TestLogin_ReplacesSession(t *testing.T) {
	api := &fakeAPI{LoginRet: tokens("A1", "R1", 900, 3600)}
	m := loggedIn(t, api, storage.NewMemoryStore(), newFakeClock())

	api.LoginRet = tokens("B1", "S1", 900, 3600)
	require.NoError(t, m.Login(context.Background(), "other@partfinder.com", "pw"))

	s, ok := m.Session()
	require.True(t, ok)
	assert.Equal(t, "B1", s.AccessToken)
	assert.Equal(t, "S1", s.RefreshToken)
}

func TestSignup_EstablishesSession(t *testing.T) {
	api := &fakeAPI{RegisterRet: tokens("A1", "R1", 900, 3600)}
	store := storage.NewMemoryStore()
	clock := newFakeClock()
	m := newManager(api, store, clock)

	require.NoError(t, m.Signup(context.Background(), "bob", "bob@x.io", "Password123"))
	assert.Equal(t, "bob", api.LastRegisterUser)
	assert.True(t, m.IsAuthenticated())

	_, ok := storedSession(t, store, clock.Now())
	assert.True(t, ok)

	api.RegisterErr = &authapi.APIError{StatusCode: http.StatusConflict, Message: "An account with this email already exists."}
	err := m.Signup(context.Background(), "bob", "bob@x.io", "Password123")
	require.Error(t, err)
	assert.Equal(t, "An account with this email already exists.", m.LastError().Error())
	assert.True(t, m.IsAuthenticated())
}

func TestInit_RestoreRoundTrip(t *testing.T) {
	api := &fakeAPI{
		LoginRet:   tokens("A1", "R1", 900, 604800),
		RefreshRet: tokens("A2", "R2", 900, 604800),
	}
	store := storage.NewMemoryStore()
	clock := newFakeClock()
	first := loggedIn(t, api, store, clock)
	first.Dispose()

	clock.Advance(10 * time.Minute)
	second := newManager(api, store, clock)
	require.NoError(t, second.Init(context.Background()))
	assert.True(t, second.IsAuthenticated())
	assert.Equal(t, 0, api.refreshCalls())
	assert.Equal(t, Header{"Authorization": "Bearer A1"}, second.AuthHeader(context.Background()))
	second.Dispose()

	clock.Advance(10 * time.Minute)
	third := newManager(api, store, clock)
	require.NoError(t, third.Init(context.Background()))
	assert.True(t, third.IsAuthenticated())
	assert.Equal(t, 1, api.refreshCalls())
	assert.Equal(t, "R1", api.LastRefreshToken)

	s, ok := third.Session()
	require.True(t, ok)
	assert.Equal(t, "A2", s.AccessToken)
}

func TestInit_ExpiredRefreshTokenPurges(t *testing.T) {
	api := &fakeAPI{LoginRet: tokens("A1", "R1", 900, 1800)}
	store := storage.NewMemoryStore()
	clock := newFakeClock()
	loggedIn(t, api, store, clock).Dispose()

	clock.Advance(time.Hour)
	m := newManager(api, store, clock)
	require.NoError(t, m.Init(context.Background()))

	assert.False(t, m.IsAuthenticated())
	assert.Equal(t, 0, api.refreshCalls())
	_, ok := storedSession(t, store, clock.Now())
	assert.False(t, ok)
}

func TestInit_RefreshFailureAtRestore(t *testing.T) {
	api := &fakeAPI{LoginRet: tokens("A1", "R1", 900, 604800)}
	store := storage.NewMemoryStore()
	clock := newFakeClock()
	loggedIn(t, api, store, clock).Dispose()

	api.RefreshErr = &authapi.APIError{StatusCode: http.StatusUnauthorized, Message: "Refresh token expired. Please log in again."}
	clock.Advance(time.Hour)
	m := newManager(api, store, clock)
	require.NoError(t, m.Init(context.Background()))

	assert.False(t, m.IsAuthenticated())
	assert.Equal(t, 1, api.refreshCalls())
	require.Error(t, m.LastError())
	assert.Equal(t, "Refresh token expired. Please log in again.", m.LastError().Error())
	_, ok := storedSession(t, store, clock.Now())
	assert.False(t, ok)
}

func TestInit_MalformedRecordPurged(t *testing.T) {
	store := storage.NewMemoryStore()
	require.NoError(t, store.Set(context.Background(), DefaultStorageKey, []byte("{not json")))

	m := newManager(&fakeAPI{}, store, newFakeClock())
	require.NoError(t, m.Init(context.Background()))

	assert.False(t, m.IsAuthenticated())
	assert.ErrorIs(t, m.LastError(), ErrMalformedSession)
	data, err := store.Get(context.Background(), DefaultStorageKey)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestInit_StorageReadError(t *testing.T) {
	store := &faultyStore{MemoryStore: storage.NewMemoryStore(), GetErr: errors.New("locked")}
	m := newManager(&fakeAPI{}, store, newFakeClock())

	require.NoError(t, m.Init(context.Background()))
	assert.False(t, m.IsAuthenticated())
	require.Error(t, m.LastError())
	assert.Contains(t, m.LastError().Error(), "locked")
}

func TestInit_LegacyRecord(t *testing.T) {
	clock := newFakeClock()
	store := storage.NewMemoryStore()
	legacy := `{"session":{"access_token":"A1","token_type":"bearer","expires_in":900,"refresh_token":"R1","refresh_expires_in":604800},"receivedAt":` +
		i64(clock.Now().Add(-time.Minute).UnixMilli()) + `}`
	require.NoError(t, store.Set(context.Background(), DefaultStorageKey, []byte(legacy)))

	api := &fakeAPI{}
	m := newManager(api, store, clock)
	require.NoError(t, m.Init(context.Background()))

	assert.True(t, m.IsAuthenticated())
	assert.Equal(t, 0, api.refreshCalls())
	assert.Equal(t, Header{"Authorization": "Bearer A1"}, m.AuthHeader(context.Background()))
}

func TestVerifyResetCode(t *testing.T) {
	api := &fakeAPI{VerifyRet: &authapi.VerifyResult{Valid: true, Message: "Code verified."}}
	m := newManager(api, storage.NewMemoryStore(), newFakeClock())

	require.NoError(t, m.VerifyResetCode(context.Background(), "demo@partfinder.com", "123456"))

	api.VerifyRet = &authapi.VerifyResult{Valid: false, Message: "Invalid or expired reset code."}
	err := m.VerifyResetCode(context.Background(), "demo@partfinder.com", "000000")
	require.ErrorIs(t, err, ErrInvalidResetCode)
	assert.Equal(t, "Invalid or expired reset code.", err.Error())
	assert.Equal(t, err, m.LastError())

	api.VerifyRet = &authapi.VerifyResult{Valid: false}
	err = m.VerifyResetCode(context.Background(), "demo@partfinder.com", "000000")
	assert.Equal(t, "Invalid verification code.", err.Error())
}

func TestResetFlow_DoesNotTouchSession(t *testing.T) {
	api := &fakeAPI{
		LoginRet:    tokens("A1", "R1", 900, 3600),
		SendCodeRet: "Reset code sent.",
		ResetRet:    "Password updated.",
	}
	m := loggedIn(t, api, storage.NewMemoryStore(), newFakeClock())

	msg, err := m.SendResetCode(context.Background(), "demo@partfinder.com")
	require.NoError(t, err)
	assert.Equal(t, "Reset code sent.", msg)

	msg, err = m.ResetPassword(context.Background(), "demo@partfinder.com", "123456", "NewPassword1")
	require.NoError(t, err)
	assert.Equal(t, "Password updated.", msg)

	api.ResetErr = &authapi.APIError{StatusCode: http.StatusBadRequest, Message: "Invalid or expired reset code."}
	_, err = m.ResetPassword(context.Background(), "demo@partfinder.com", "111111", "NewPassword1")
	require.Error(t, err)

	s, ok := m.Session()
	require.True(t, ok)
	assert.Equal(t, "A1", s.AccessToken)
}

func TestOperationClearsPreviousError(t *testing.T) {
	api := &fakeAPI{SendCodeErr: errors.New("boom")}
	m := newManager(api, storage.NewMemoryStore(), newFakeClock())

	_, err := m.SendResetCode(context.Background(), "a@b.c")
	require.Error(t, err)
	require.Error(t, m.LastError())

	api.SendCodeErr = nil
	_, err = m.SendResetCode(context.Background(), "a@b.c")
	require.NoError(t, err)
	assert.NoError(t, m.LastError())
}

func TestIsLoading_DuringLogin(t *testing.T) {
	api := &fakeAPI{
		LoginRet:     tokens("A1", "R1", 900, 3600),
		LoginGate:    make(chan struct{}),
		LoginStarted: make(chan struct{}, 1),
	}
	m := newManager(api, storage.NewMemoryStore(), newFakeClock())
	assert.False(t, m.IsLoading())

	errc := make(chan error, 1)
	go func() { errc <- m.Login(context.Background(), "a@b.c", "pw") }()

	<-api.LoginStarted
	assert.True(t, m.IsLoading())
	close(api.LoginGate)
	require.NoError(t, <-errc)
	assert.False(t, m.IsLoading())
}

func TestDispose(t *testing.T) {
	api := &fakeAPI{LoginRet: tokens("A1", "R1", 900, 3600)}
	store := storage.NewMemoryStore()
	clock := newFakeClock()
	m := loggedIn(t, api, store, clock)

	m.Dispose()
	assert.False(t, m.IsAuthenticated())
	assert.Empty(t, m.AuthHeader(context.Background()))
	require.ErrorIs(t, m.Login(context.Background(), "a@b.c", "pw"), ErrDisposed)
	require.ErrorIs(t, m.Init(context.Background()), ErrDisposed)
	_, err := m.RefreshAccessToken(context.Background())
	require.ErrorIs(t, err, ErrDisposed)

	m.Logout(context.Background())
	_, ok := storedSession(t, store, clock.Now())
	assert.True(t, ok, "dispose and a later logout keep the stored session")
}

func TestListener_ObservesTransitions(t *testing.T) {
	var (
		mu     sync.Mutex
		states []State
	)
	listener := func(s State) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	}

	api := &fakeAPI{
		LoginRet:   tokens("A1", "R1", 900, 3600),
		RefreshRet: tokens("A2", "R1", 900, 3600),
	}
	m := newManager(api, storage.NewMemoryStore(), newFakeClock(), WithListener(listener))

	require.NoError(t, m.Init(context.Background()))
	require.NoError(t, m.Login(context.Background(), "a@b.c", "pw"))
	_, err := m.RefreshAccessToken(context.Background())
	require.NoError(t, err)
	m.Logout(context.Background())
	m.Dispose()
	require.ErrorIs(t, m.Init(context.Background()), ErrDisposed)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []State{
		Restoring, Unauthenticated,
		Authenticated,
		Refreshing, Authenticated,
		Unauthenticated,
	}, states)
}
