package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/singleflight"

	"github.com/ecoroute/ecoroute-go/internal/api"
	"github.com/ecoroute/ecoroute-go/internal/credstore"
)

// Default renewal policy: the backend mints 15-minute access tokens, and
// the scheduler renews at roughly 93% of lifetime so a token never expires
// under an in-flight request.
const (
	DefaultTokenLifetime   = 15 * time.Minute
	DefaultRefreshInterval = 14 * time.Minute

	// expirySkew is subtracted from the expiry estimate when deciding
	// whether the cached token is still usable.
	expirySkew = 30 * time.Second
)

// refreshKey is the singleflight key: all renewal attempts, scheduled or
// demand-driven, coalesce into one in-flight exchange.
const refreshKey = "refresh"

// AuthAPI is the slice of the auth endpoints the manager needs. Satisfied
// by *api.AuthClient; tests provide fakes.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*api.LoginResult, error)
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string) error
	Me(ctx context.Context, accessToken string) (*api.User, error)
}

// Config tunes the renewal policy. Zero values select the defaults.
type Config struct {
	TokenLifetime   time.Duration
	RefreshInterval time.Duration
	Clock           clockwork.Clock // fake clock in tests
}

// Manager owns the session lifecycle. It is the only writer of the
// credential store and serializes all renewal attempts through a single
// in-flight exchange, so concurrent callers never trigger duplicate
// refresh calls (duplicates risk the backend revoking the refresh token).
//
// Manager implements api.TokenSource: Token is EnsureValid and
// ForceRefresh is Refresh.
type Manager struct {
	auth   AuthAPI
	store  credstore.Store
	clock  clockwork.Clock
	logger *slog.Logger

	tokenLifetime   time.Duration
	refreshInterval time.Duration

	sf singleflight.Group

	mu          sync.Mutex
	state       State
	sess        *Session
	schedCancel context.CancelFunc
	schedDone   chan struct{}
}

// NewManager creates a Manager in the Uninitialized state. Call Init to
// restore a persisted session before serving dependents.
func NewManager(auth AuthAPI, store credstore.Store, cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.TokenLifetime == 0 {
		cfg.TokenLifetime = DefaultTokenLifetime
	}

	if cfg.RefreshInterval == 0 {
		cfg.RefreshInterval = DefaultRefreshInterval
	}

	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}

	return &Manager{
		auth:            auth,
		store:           store,
		clock:           cfg.Clock,
		logger:          logger,
		tokenLifetime:   cfg.TokenLifetime,
		refreshInterval: cfg.RefreshInterval,
		state:           StateUninitialized,
	}
}

// State returns the current lifecycle phase.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Current returns a copy of the active session, or nil when anonymous.
func (m *Manager) Current() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return nil
	}

	s := *m.sess

	return &s
}

// Init restores the session persisted in the credential store: it
// validates the stored token by fetching the current-user profile, falls
// back to one refresh attempt, and destroys the session when both fail.
// It always resolves to Authenticated or Anonymous in bounded time —
// dependents may proceed as soon as it returns.
func (m *Manager) Init(ctx context.Context) error {
	m.mu.Lock()
	m.state = StateInitializing
	m.mu.Unlock()

	token, tokErr := m.store.Get(ctx, credstore.KeyToken)
	refreshToken, refErr := m.store.Get(ctx, credstore.KeyRefreshToken)
	role, roleErr := m.store.Get(ctx, credstore.KeyRole)
	userID, idErr := m.store.Get(ctx, credstore.KeyUserID)

	if tokErr != nil || roleErr != nil || idErr != nil {
		m.logger.Info("no persisted session, starting anonymous")
		m.setAnonymous()

		return nil
	}

	driverID, _ := m.store.Get(ctx, credstore.KeyDriverID)

	user, err := m.auth.Me(ctx, token)
	if err == nil {
		m.logger.Info("persisted session validated", slog.String("user_id", user.ID))
		m.install(&Session{
			AccessToken:  token,
			RefreshToken: refreshToken,
			UserID:       user.ID,
			Name:         user.Name,
			Email:        user.Email,
			Role:         normalizeRole(role),
			DriverID:     driverID,
			ExpiresAt:    m.clock.Now().Add(m.tokenLifetime),
		})

		return nil
	}

	m.logger.Warn("persisted token invalid, attempting refresh",
		slog.String("error", err.Error()),
	)

	if refErr != nil {
		m.destroy(ctx)
		return nil
	}

	// Seed a provisional session from storage so the refresh path has a
	// refresh token and bootstrap identity to work with.
	m.mu.Lock()
	m.sess = &Session{
		AccessToken:  token,
		RefreshToken: refreshToken,
		Role:         normalizeRole(role),
		DriverID:     driverID,
		ExpiresAt:    m.clock.Now(), // already suspect, force the refresh
	}
	m.mu.Unlock()

	if _, err := m.Refresh(ctx); err != nil {
		m.logger.Warn("startup refresh failed, starting anonymous",
			slog.String("error", err.Error()),
		)

		return nil // destroy already ran inside Refresh
	}

	// Identity after a cold reload: Refresh fetches the profile when it is
	// missing; fall back to the stored id when that fetch failed. Promote
	// the provisional session through install so the renewal scheduler runs.
	m.mu.Lock()
	if m.sess != nil && m.sess.UserID == "" {
		m.sess.UserID = userID
	}
	restored := m.sess
	m.mu.Unlock()

	if restored != nil {
		m.install(restored)
		m.logger.Info("session restored via refresh", slog.String("user_id", restored.UserID))
	}

	return nil
}

// Login authenticates with email and password. On success the new session
// atomically replaces any prior one and is persisted; on failure the
// existing session is left untouched and the error classifies as
// ErrInvalidCredentials or ErrNetwork.
func (m *Manager) Login(ctx context.Context, email, password string) error {
	result, err := m.auth.Login(ctx, email, password)
	if err != nil {
		// Two outcomes at this boundary: the credentials were rejected, or
		// the backend could not be reached in a usable state. A 5xx is the
		// latter from the caller's point of view.
		if errors.Is(err, api.ErrInvalidCredentials) || errors.Is(err, api.ErrNetwork) {
			return fmt.Errorf("session: login: %w", err)
		}

		return fmt.Errorf("session: login: %w: %w", api.ErrNetwork, err)
	}

	sess := &Session{
		AccessToken:  result.Credentials.AccessToken,
		RefreshToken: result.Credentials.RefreshToken,
		UserID:       result.User.ID,
		Name:         result.User.Name,
		Email:        result.User.Email,
		Role:         normalizeRole(result.User.Role),
		DriverID:     result.User.DriverID,
		ExpiresAt:    m.clock.Now().Add(m.tokenLifetime),
	}

	m.install(sess)
	m.persist(ctx, sess)

	m.logger.Info("session established",
		slog.String("user_id", sess.UserID),
		slog.String("role", string(sess.Role)),
	)

	return nil
}

// Logout revokes the refresh token server-side (best effort — failures are
// swallowed so logout always succeeds locally), then destroys the session
// and clears durable storage.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	var refreshToken string
	if m.sess != nil {
		refreshToken = m.sess.RefreshToken
	}
	m.mu.Unlock()

	if refreshToken != "" {
		if err := m.auth.Logout(ctx, refreshToken); err != nil {
			m.logger.Warn("server-side logout failed, clearing local session anyway",
				slog.String("error", err.Error()),
			)
		}
	}

	m.destroy(ctx)
	m.logger.Info("logged out")
}

// EnsureValid returns the current access token if it is believed valid,
// otherwise joins or triggers a refresh and waits for its result. Safe to
// call from any number of concurrent requests.
func (m *Manager) EnsureValid(ctx context.Context) (string, error) {
	m.mu.Lock()

	if m.state != StateAuthenticated || m.sess == nil {
		m.mu.Unlock()
		return "", fmt.Errorf("session: no active session: %w", api.ErrUnauthorized)
	}

	if m.clock.Now().Before(m.sess.ExpiresAt.Add(-expirySkew)) {
		token := m.sess.AccessToken
		m.mu.Unlock()

		return token, nil
	}

	m.mu.Unlock()

	return m.Refresh(ctx)
}

// Refresh exchanges the refresh token for a new access token. At most one
// exchange is in flight at a time: concurrent callers — including the
// background scheduler — join the same attempt and observe the same
// resulting token. On failure the session is destroyed; re-authentication
// is required. Raw transport errors never escape unclassified.
func (m *Manager) Refresh(ctx context.Context) (string, error) {
	token, err, _ := m.sf.Do(refreshKey, func() (any, error) {
		return m.doRefresh(ctx)
	})
	if err != nil {
		return "", err
	}

	return token.(string), nil
}

// doRefresh performs the actual exchange. Runs inside the singleflight
// group, so there is exactly one execution per coalesced wave of callers.
func (m *Manager) doRefresh(ctx context.Context) (string, error) {
	m.mu.Lock()
	if m.sess == nil || m.sess.RefreshToken == "" {
		m.mu.Unlock()
		return "", fmt.Errorf("session: no refresh token: %w", api.ErrUnauthorized)
	}

	refreshToken := m.sess.RefreshToken
	m.mu.Unlock()

	newToken, err := m.auth.Refresh(ctx, refreshToken)
	if err != nil {
		m.logger.Warn("refresh failed, destroying session",
			slog.String("error", err.Error()),
		)
		m.destroy(ctx)

		if errors.Is(err, api.ErrNetwork) {
			return "", fmt.Errorf("session: refresh: %w", err)
		}

		return "", fmt.Errorf("session: refresh rejected: %w", api.ErrUnauthorized)
	}

	m.mu.Lock()
	if m.sess == nil {
		// Logged out while the exchange was in flight — do not resurrect.
		m.mu.Unlock()
		return "", fmt.Errorf("session: destroyed during refresh: %w", api.ErrUnauthorized)
	}

	m.sess.AccessToken = newToken
	m.sess.ExpiresAt = m.clock.Now().Add(m.tokenLifetime)
	missingIdentity := m.sess.UserID == ""
	m.mu.Unlock()

	if err := m.store.Set(ctx, credstore.KeyToken, newToken); err != nil {
		m.logger.Warn("failed to persist refreshed token", slog.String("error", err.Error()))
	}

	if missingIdentity {
		m.recoverIdentity(ctx, newToken)
	}

	m.logger.Debug("access token renewed")

	return newToken, nil
}

// recoverIdentity fetches the current-user profile after a cold reload
// left the session without identity claims. Best effort: the session stays
// usable on failure, identity is retried on the next refresh.
func (m *Manager) recoverIdentity(ctx context.Context, token string) {
	user, err := m.auth.Me(ctx, token)
	if err != nil {
		m.logger.Warn("failed to fetch profile after refresh",
			slog.String("error", err.Error()),
		)

		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.sess == nil {
		return
	}

	m.sess.UserID = user.ID
	m.sess.Name = user.Name
	m.sess.Email = user.Email
}

// Token implements api.TokenSource.
func (m *Manager) Token(ctx context.Context) (string, error) {
	return m.EnsureValid(ctx)
}

// ForceRefresh implements api.TokenSource. Called by the gateway after the
// backend rejects a token that local bookkeeping still considered valid.
func (m *Manager) ForceRefresh(ctx context.Context) (string, error) {
	return m.Refresh(ctx)
}

// Close stops the background scheduler without touching durable storage.
// The persisted session will be restored by the next Init.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopSchedulerLocked()
}

// install atomically replaces the session and (re)starts the renewal
// scheduler.
func (m *Manager) install(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopSchedulerLocked()

	m.sess = sess
	m.state = StateAuthenticated

	ctx, cancel := context.WithCancel(context.Background())
	m.schedCancel = cancel
	m.schedDone = make(chan struct{})

	go m.runScheduler(ctx, m.schedDone)
}

// runScheduler renews the token once per interval while the session lives.
// Renewal goes through Refresh, so a scheduled tick and a demand-driven
// call in the same window coalesce into one exchange. Canceled by destroy;
// no refresh fires after logout.
func (m *Manager) runScheduler(ctx context.Context, done chan struct{}) {
	defer close(done)

	m.logger.Debug("refresh scheduler started",
		slog.Duration("interval", m.refreshInterval),
	)

	for {
		select {
		case <-ctx.Done():
			m.logger.Debug("refresh scheduler stopped")
			return
		case <-m.clock.After(m.refreshInterval):
			if _, err := m.Refresh(ctx); err != nil {
				// Refresh already destroyed the session; destroy cancels
				// this scheduler, so the next select exits.
				m.logger.Warn("scheduled refresh failed",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// persist writes the session's durable keys. Storage failures are logged,
// not fatal: the in-memory session remains authoritative for this run.
func (m *Manager) persist(ctx context.Context, sess *Session) {
	pairs := map[string]string{
		credstore.KeyToken:        sess.AccessToken,
		credstore.KeyRefreshToken: sess.RefreshToken,
		credstore.KeyRole:         string(sess.Role),
		credstore.KeyUserID:       sess.UserID,
	}

	if sess.DriverID != "" {
		pairs[credstore.KeyDriverID] = sess.DriverID
	}

	for key, value := range pairs {
		if err := m.store.Set(ctx, key, value); err != nil {
			m.logger.Warn("failed to persist session key",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}

// destroy cancels the scheduler, clears durable storage, and transitions
// to Anonymous.
func (m *Manager) destroy(ctx context.Context) {
	m.mu.Lock()
	m.stopSchedulerLocked()
	m.sess = nil
	m.state = StateAnonymous
	m.mu.Unlock()

	for _, key := range []string{
		credstore.KeyToken,
		credstore.KeyRefreshToken,
		credstore.KeyRole,
		credstore.KeyUserID,
		credstore.KeyDriverID,
	} {
		if err := m.store.Remove(ctx, key); err != nil {
			m.logger.Warn("failed to clear session key",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}
}

// setAnonymous transitions to Anonymous without touching storage.
func (m *Manager) setAnonymous() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state = StateAnonymous
}

// stopSchedulerLocked cancels the running scheduler, if any. Caller holds mu.
// Does not wait for the goroutine: it may itself be the scheduler (refresh
// failure path), and waiting would deadlock.
func (m *Manager) stopSchedulerLocked() {
	if m.schedCancel != nil {
		m.schedCancel()
		m.schedCancel = nil
		m.schedDone = nil
	}
}
