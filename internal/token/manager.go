package token

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/billrelay/backend/internal/errs"
	"github.com/billrelay/backend/internal/lock"
	"github.com/billrelay/backend/internal/models"
	"github.com/billrelay/backend/internal/store"
)

// TokenExchangeResult is the normalized outcome of any exchange with the
// authorization server. The auth client adapts whatever field names Intuit
// returns onto this one shape; nothing past that point probes field names.
type TokenExchangeResult struct {
	AccessToken      string
	AccessExpiresIn  time.Duration
	RefreshToken     string
	RefreshExpiresIn time.Duration
}

// AuthClient is the OAuth boundary with Intuit. Refresh rotates the refresh
// token server-side on every call.
type AuthClient interface {
	AuthorizationURL(scopes, state string) string
	ExchangeCode(ctx context.Context, code, realmID string) (*TokenExchangeResult, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenExchangeResult, error)
}

// Credential is what callers get back: a usable access token plus the refresh
// token current at read time.
type Credential struct {
	RealmID      string
	AccessToken  string
	RefreshToken string
}

// Options tunes the refresh policy. Zero values fall back to defaults.
type Options struct {
	SafetyWindow time.Duration // refresh lead time before expiry
	LockTTL      time.Duration // worst-case hold of an abandoned lock
	LockWait     time.Duration // how long a lock loser waits for the winner
	LockPoll     time.Duration // poll interval during that wait
}

func (o *Options) applyDefaults() {
	if o.SafetyWindow == 0 {
		o.SafetyWindow = 300 * time.Second
	}
	if o.LockTTL == 0 {
		o.LockTTL = 10 * time.Second
	}
	if o.LockWait == 0 {
		o.LockWait = 5 * time.Second
	}
	if o.LockPoll == 0 {
		o.LockPoll = 500 * time.Millisecond
	}
}

// Manager keeps exactly one valid token pair per realm under concurrent access
// from independent worker processes. Refreshes are serialized through a Redis
// lock; reads outside a refresh take no lock at all.
type Manager struct {
	store *store.ConnectionStore
	auth  AuthClient
	redis *redis.Client
	opts  Options
	now   func() time.Time
}

func NewManager(connStore *store.ConnectionStore, auth AuthClient, redisClient *redis.Client, opts Options) *Manager {
	opts.applyDefaults()
	return &Manager{
		store: connStore,
		auth:  auth,
		redis: redisClient,
		opts:  opts,
		now:   time.Now,
	}
}

// ValidCredential returns a credential safe to use for at least the safety
// window. A token near expiry triggers a lock-guarded refresh; callers that
// lose the lock race wait for the winner's result instead of burning the
// stale refresh token themselves.
func (m *Manager) ValidCredential(ctx context.Context, realmID string) (*Credential, error) {
	conn, err := m.store.Get(ctx, realmID)
	if err != nil {
		return nil, err
	}

	if conn.RefreshToken == "" {
		return nil, errs.MissingRefreshToken(realmID)
	}
	if conn.RefreshTokenExpiresAt != nil && !m.now().Before(*conn.RefreshTokenExpiresAt) {
		return nil, errs.MissingRefreshToken(realmID)
	}

	if !m.needsRefresh(conn) {
		return credentialOf(conn), nil
	}

	l := lock.New(m.redis, refreshLockKey(realmID), m.opts.LockTTL)
	acquired, err := l.Acquire(ctx)
	if err != nil {
		return nil, errs.Wrap(errs.KindTransient, err, "refresh lock unavailable")
	}

	if !acquired {
		return m.awaitRefresh(ctx, realmID)
	}

	defer func() {
		if _, err := l.Release(ctx); err != nil {
			log.Printf("[TOKEN] Failed to release refresh lock for %s: %v", realmID, err)
		}
	}()

	return m.refresh(ctx, conn)
}

// AccessToken satisfies the ledger client's TokenSource.
func (m *Manager) AccessToken(ctx context.Context, realmID string) (string, error) {
	cred, err := m.ValidCredential(ctx, realmID)
	if err != nil {
		return "", err
	}
	return cred.AccessToken, nil
}

// Connect completes the OAuth callback: exchange the authorization code and
// persist the initial connection row.
func (m *Manager) Connect(ctx context.Context, code, realmID, environment, scopes string) error {
	res, err := m.auth.ExchangeCode(ctx, code, realmID)
	if err != nil {
		return errs.Wrap(errs.KindValidation, err, "authorization code exchange failed")
	}

	conn := &models.Connection{
		RealmID:      realmID,
		Environment:  environment,
		Scopes:       scopes,
		RefreshToken: res.RefreshToken,
	}
	applyExchange(conn, res, m.now())

	if err := m.store.Upsert(ctx, conn); err != nil {
		return err
	}

	log.Printf("[TOKEN] Connected realm %s (%s)", realmID, environment)
	return nil
}

// AuthorizationURL passes through to the auth client for the connect redirect.
func (m *Manager) AuthorizationURL(scopes, state string) string {
	return m.auth.AuthorizationURL(scopes, state)
}

// needsRefresh: no access token, no declared expiry, or inside the safety
// window. A slightly stale read is fine; the window absorbs clock skew.
func (m *Manager) needsRefresh(conn *models.Connection) bool {
	if conn.AccessToken == "" || conn.AccessTokenExpiresAt == nil {
		return true
	}
	return !m.now().Before(conn.AccessTokenExpiresAt.Add(-m.opts.SafetyWindow))
}

// refresh performs the exchange and persists the rotated pair. Caller must
// hold the refresh lock.
func (m *Manager) refresh(ctx context.Context, conn *models.Connection) (*Credential, error) {
	res, err := m.auth.Refresh(ctx, conn.RefreshToken)
	if err != nil {
		return nil, errs.ClassifyAPIError(fmt.Errorf("token refresh for realm %s: %w", conn.RealmID, err))
	}

	applyExchange(conn, res, m.now())
	if err := m.store.Upsert(ctx, conn); err != nil {
		return nil, err
	}

	log.Printf("[TOKEN] Refreshed access token for realm %s", conn.RealmID)
	return credentialOf(conn), nil
}

// awaitRefresh polls the store while another process refreshes. The loser
// must never reuse the stale refresh token it loaded before losing the race.
func (m *Manager) awaitRefresh(ctx context.Context, realmID string) (*Credential, error) {
	deadline := m.now().Add(m.opts.LockWait)
	ticker := time.NewTicker(m.opts.LockPoll)
	defer ticker.Stop()

	for m.now().Before(deadline) {
		select {
		case <-ctx.Done():
			return nil, errs.Wrap(errs.KindTransient, ctx.Err(), "canceled while waiting for token refresh")
		case <-ticker.C:
		}

		conn, err := m.store.Get(ctx, realmID)
		if err != nil {
			return nil, err
		}
		if !m.needsRefresh(conn) {
			return credentialOf(conn), nil
		}
	}

	return nil, errs.Transient("token refresh for realm %s is held by another worker", realmID)
}

func applyExchange(conn *models.Connection, res *TokenExchangeResult, now time.Time) {
	conn.AccessToken = res.AccessToken
	conn.RefreshToken = res.RefreshToken
	if res.AccessExpiresIn > 0 {
		exp := now.Add(res.AccessExpiresIn).UTC()
		conn.AccessTokenExpiresAt = &exp
	}
	if res.RefreshExpiresIn > 0 {
		exp := now.Add(res.RefreshExpiresIn).UTC()
		conn.RefreshTokenExpiresAt = &exp
	}
}

func credentialOf(conn *models.Connection) *Credential {
	return &Credential{
		RealmID:      conn.RealmID,
		AccessToken:  conn.AccessToken,
		RefreshToken: conn.RefreshToken,
	}
}

func refreshLockKey(realmID string) string {
	return "lock:qbo:refresh:" + realmID
}
