package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoroute/ecoroute-go/internal/api"
	"github.com/ecoroute/ecoroute-go/internal/credstore"
)

// fakeAuth scripts the auth endpoints and counts refresh calls. A non-nil
// refreshGate blocks the exchange until the channel is closed, letting
// tests pile up concurrent callers against one in-flight refresh.
type fakeAuth struct {
	mu sync.Mutex

	loginResult *api.LoginResult
	loginErr    error

	refreshCalls atomic.Int32
	refreshGate  chan struct{}
	refreshErr   error
	nextToken    string

	meUser     *api.User
	meErr      error
	meFailOnce bool

	logoutCalls atomic.Int32
	logoutErr   error
}

func (f *fakeAuth) Login(_ context.Context, _, _ string) (*api.LoginResult, error) {
	if f.loginErr != nil {
		return nil, f.loginErr
	}

	return f.loginResult, nil
}

func (f *fakeAuth) Refresh(_ context.Context, _ string) (string, error) {
	f.refreshCalls.Add(1)

	if f.refreshGate != nil {
		<-f.refreshGate
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.refreshErr != nil {
		return "", f.refreshErr
	}

	return f.nextToken, nil
}

func (f *fakeAuth) Logout(_ context.Context, _ string) error {
	f.logoutCalls.Add(1)
	return f.logoutErr
}

func (f *fakeAuth) Me(_ context.Context, _ string) (*api.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.meFailOnce {
		f.meFailOnce = false
		return nil, errors.New("token expired")
	}

	if f.meErr != nil {
		return nil, f.meErr
	}

	return f.meUser, nil
}

func adminLogin() *api.LoginResult {
	return &api.LoginResult{
		User: api.User{
			ID:    "u1",
			Name:  "Ada",
			Email: "ada@example.com",
			Role:  "admin",
		},
		Credentials: api.Credentials{
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
		},
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discard{}, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type discard struct{}

func (discard) Write(p []byte) (int, error) { return len(p), nil }

func newTestManager(t *testing.T, auth *fakeAuth, cfg Config) (*Manager, *credstore.Memory) {
	t.Helper()

	store := credstore.NewMemory()
	m := NewManager(auth, store, cfg, quietLogger())
	t.Cleanup(m.Close)

	return m, store
}

func TestLogin_InstallsAndPersistsSession(t *testing.T) {
	auth := &fakeAuth{loginResult: adminLogin()}
	m, store := newTestManager(t, auth, Config{Clock: clockwork.NewFakeClock()})

	require.NoError(t, m.Login(context.Background(), "ada@example.com", "hunter2"))
	assert.Equal(t, StateAuthenticated, m.State())

	sess := m.Current()
	require.NotNil(t, sess)
	assert.Equal(t, "access-1", sess.AccessToken)
	assert.Equal(t, api.RoleAdmin, sess.Role)

	ctx := context.Background()

	for key, want := range map[string]string{
		credstore.KeyToken:        "access-1",
		credstore.KeyRefreshToken: "refresh-1",
		credstore.KeyRole:         "ADMIN",
		credstore.KeyUserID:       "u1",
	} {
		got, err := store.Get(ctx, key)
		require.NoError(t, err, key)
		assert.Equal(t, want, got, key)
	}
}

func TestLogin_FailureLeavesSessionUntouched(t *testing.T) {
	auth := &fakeAuth{loginResult: adminLogin()}
	m, _ := newTestManager(t, auth, Config{Clock: clockwork.NewFakeClock()})

	require.NoError(t, m.Login(context.Background(), "ada@example.com", "hunter2"))

	auth.loginErr = fmt.Errorf("login: %w", api.ErrInvalidCredentials)

	err := m.Login(context.Background(), "ada@example.com", "wrong")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrInvalidCredentials)

	// Prior session survives the failed attempt.
	assert.Equal(t, StateAuthenticated, m.State())
	require.NotNil(t, m.Current())
	assert.Equal(t, "access-1", m.Current().AccessToken)
}

func TestLogin_ServerErrorClassifiesAsNetwork(t *testing.T) {
	auth := &fakeAuth{
		loginErr: &api.APIError{StatusCode: 500, Err: api.ErrServer},
	}
	m, _ := newTestManager(t, auth, Config{Clock: clockwork.NewFakeClock()})

	err := m.Login(context.Background(), "ada@example.com", "hunter2")
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrNetwork)
	assert.NotErrorIs(t, err, api.ErrInvalidCredentials)
}

func TestEnsureValid_ReturnsCachedTokenWithoutRefresh(t *testing.T) {
	auth := &fakeAuth{loginResult: adminLogin()}
	m, _ := newTestManager(t, auth, Config{Clock: clockwork.NewFakeClock()})

	require.NoError(t, m.Login(context.Background(), "ada@example.com", "hunter2"))

	token, err := m.EnsureValid(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "access-1", token)
	assert.Equal(t, int32(0), auth.refreshCalls.Load())
}

func TestEnsureValid_AnonymousIsUnauthorized(t *testing.T) {
	m, _ := newTestManager(t, &fakeAuth{}, Config{Clock: clockwork.NewFakeClock()})

	_, err := m.EnsureValid(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrUnauthorized)
}

func TestEnsureValid_ConcurrentCallersShareOneRefresh(t *testing.T) {
	gate := make(chan struct{})
	auth := &fakeAuth{
		loginResult: adminLogin(),
		refreshGate: gate,
		nextToken:   "access-2",
	}

	// A tiny token lifetime makes every installed token immediately
	// stale, forcing EnsureValid onto the refresh path.
	m, _ := newTestManager(t, auth, Config{
		TokenLifetime: time.Millisecond,
		Clock:         clockwork.NewFakeClock(),
	})

	require.NoError(t, m.Login(context.Background(), "ada@example.com", "hunter2"))

	const callers = 16

	var wg sync.WaitGroup

	tokens := make([]string, callers)
	errs := make([]error, callers)

	for i := range callers {
		wg.Add(1)

		go func() {
			defer wg.Done()
			tokens[i], errs[i] = m.EnsureValid(context.Background())
		}()
	}

	// Let every caller reach the in-flight refresh before releasing it.
	time.Sleep(50 * time.Millisecond)
	close(gate)
	wg.Wait()

	for i := range callers {
		require.NoError(t, errs[i])
		assert.Equal(t, "access-2", tokens[i])
	}

	assert.Equal(t, int32(1), auth.refreshCalls.Load(),
		"concurrent callers must coalesce into one refresh call")
}

func TestScheduler_CoalescesWithDemandRefresh(t *testing.T) {
	fc := clockwork.NewFakeClock()
	gate := make(chan struct{})
	auth := &fakeAuth{
		loginResult: adminLogin(),
		refreshGate: gate,
		nextToken:   "access-2",
	}

	m, _ := newTestManager(t, auth, Config{
		TokenLifetime:   time.Hour,
		RefreshInterval: 14 * time.Minute,
		Clock:           fc,
	})

	require.NoError(t, m.Login(context.Background(), "ada@example.com", "hunter2"))

	// Demand-driven refresh enters and blocks on the gate.
	demandDone := make(chan string, 1)
	go func() {
		token, err := m.Refresh(context.Background())
		require.NoError(t, err)
		demandDone <- token
	}()

	// Fire the scheduled refresh in the same window; it joins the
	// in-flight attempt instead of issuing a second call.
	fc.BlockUntil(1)
	fc.Advance(14 * time.Minute)
	time.Sleep(50 * time.Millisecond)

	close(gate)

	token := <-demandDone
	assert.Equal(t, "access-2", token)

	// Give the scheduler's joined call time to finish, then check the
	// count did not move.
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), auth.refreshCalls.Load())

	sess := m.Current()
	require.NotNil(t, sess)
	assert.Equal(t, "access-2", sess.AccessToken)
}

func TestRefresh_FailureDestroysSessionAndStorage(t *testing.T) {
	auth := &fakeAuth{loginResult: adminLogin()}
	m, store := newTestManager(t, auth, Config{Clock: clockwork.NewFakeClock()})

	require.NoError(t, m.Login(context.Background(), "ada@example.com", "hunter2"))

	auth.refreshErr = &api.APIError{StatusCode: 401, Err: api.ErrUnauthorized}

	_, err := m.Refresh(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrUnauthorized)

	assert.Equal(t, StateAnonymous, m.State())
	assert.Nil(t, m.Current())
	assert.Equal(t, 0, store.Len(), "durable storage must be cleared")
}

func TestInit_StaleTokenRestoredViaRefresh(t *testing.T) {
	auth := &fakeAuth{
		nextToken:  "access-2",
		meUser:     &api.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: "driver"},
		meFailOnce: true, // stored token fails validation once
	}

	store := credstore.NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, credstore.KeyToken, "stale-access"))
	require.NoError(t, store.Set(ctx, credstore.KeyRefreshToken, "refresh-1"))
	require.NoError(t, store.Set(ctx, credstore.KeyRole, "DRIVER"))
	require.NoError(t, store.Set(ctx, credstore.KeyUserID, "u1"))

	m := NewManager(auth, store, Config{Clock: clockwork.NewFakeClock()}, quietLogger())
	defer m.Close()

	require.NoError(t, m.Init(ctx))

	assert.Equal(t, int32(1), auth.refreshCalls.Load())
	assert.Equal(t, StateAuthenticated, m.State())

	sess := m.Current()
	require.NotNil(t, sess)
	assert.Equal(t, "access-2", sess.AccessToken)
	assert.Equal(t, "u1", sess.UserID)
	assert.Equal(t, api.RoleDriver, sess.Role)
}

func TestInit_ValidStoredTokenAuthenticates(t *testing.T) {
	auth := &fakeAuth{
		meUser: &api.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Role: "admin"},
	}

	store := credstore.NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, credstore.KeyToken, "access-1"))
	require.NoError(t, store.Set(ctx, credstore.KeyRefreshToken, "refresh-1"))
	require.NoError(t, store.Set(ctx, credstore.KeyRole, "ADMIN"))
	require.NoError(t, store.Set(ctx, credstore.KeyUserID, "u1"))

	m := NewManager(auth, store, Config{Clock: clockwork.NewFakeClock()}, quietLogger())
	defer m.Close()

	require.NoError(t, m.Init(ctx))
	assert.Equal(t, StateAuthenticated, m.State())
	assert.Equal(t, int32(0), auth.refreshCalls.Load())

	sess := m.Current()
	require.NotNil(t, sess)
	assert.Equal(t, "access-1", sess.AccessToken)
}

func TestInit_EmptyStorageIsAnonymous(t *testing.T) {
	m, _ := newTestManager(t, &fakeAuth{}, Config{Clock: clockwork.NewFakeClock()})

	require.NoError(t, m.Init(context.Background()))
	assert.Equal(t, StateAnonymous, m.State())
}

func TestInit_BothValidationAndRefreshFailDestroys(t *testing.T) {
	auth := &fakeAuth{
		meErr:      errors.New("token expired"),
		refreshErr: &api.APIError{StatusCode: 401, Err: api.ErrUnauthorized},
	}

	store := credstore.NewMemory()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, credstore.KeyToken, "stale"))
	require.NoError(t, store.Set(ctx, credstore.KeyRefreshToken, "spent"))
	require.NoError(t, store.Set(ctx, credstore.KeyRole, "ADMIN"))
	require.NoError(t, store.Set(ctx, credstore.KeyUserID, "u1"))

	m := NewManager(auth, store, Config{Clock: clockwork.NewFakeClock()}, quietLogger())
	defer m.Close()

	require.NoError(t, m.Init(ctx))
	assert.Equal(t, StateAnonymous, m.State())
	assert.Equal(t, 0, store.Len())
}

func TestLogout_AlwaysSucceedsLocally(t *testing.T) {
	auth := &fakeAuth{
		loginResult: adminLogin(),
		logoutErr:   errors.New("server unreachable"),
	}
	m, store := newTestManager(t, auth, Config{Clock: clockwork.NewFakeClock()})

	require.NoError(t, m.Login(context.Background(), "ada@example.com", "hunter2"))

	m.Logout(context.Background())

	assert.Equal(t, int32(1), auth.logoutCalls.Load())
	assert.Equal(t, StateAnonymous, m.State())
	assert.Nil(t, m.Current())
	assert.Equal(t, 0, store.Len())
}

func TestScheduler_NoRefreshAfterLogout(t *testing.T) {
	fc := clockwork.NewFakeClock()
	auth := &fakeAuth{loginResult: adminLogin(), nextToken: "access-2"}

	m, _ := newTestManager(t, auth, Config{
		TokenLifetime:   time.Hour,
		RefreshInterval: 14 * time.Minute,
		Clock:           fc,
	})

	require.NoError(t, m.Login(context.Background(), "ada@example.com", "hunter2"))

	// Wait until the scheduler is parked on its timer, then log out.
	fc.BlockUntil(1)
	m.Logout(context.Background())

	fc.Advance(time.Hour)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, int32(0), auth.refreshCalls.Load(),
		"no refresh may fire after logout")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "uninitialized", StateUninitialized.String())
	assert.Equal(t, "initializing", StateInitializing.String())
	assert.Equal(t, "authenticated", StateAuthenticated.String())
	assert.Equal(t, "anonymous", StateAnonymous.String())
}
