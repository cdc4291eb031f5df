// Package session ties browser sessions to backend bearer tokens and keeps
// the per-session application state.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cortexui/dashboard/internal/models"
	"github.com/cortexui/dashboard/internal/notify"
	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Options configure a Manager.
type Options struct {
	Secret         string
	TTL            time.Duration
	NotifyCapacity int
	NotifyTTL      time.Duration
}

// Manager owns all live AppContexts. Authenticated sessions are also
// persisted so they survive a restart of the dashboard.
type Manager struct {
	repo    Repository
	backend Backend
	sealer  *Sealer
	opts    Options
	log     zerolog.Logger

	mu   sync.Mutex
	live map[string]*AppContext
	now  func() time.Time
}

func NewManager(repo Repository, backend Backend, opts Options) *Manager {
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	return &Manager{
		repo:    repo,
		backend: backend,
		sealer:  NewSealer(opts.Secret),
		opts:    opts,
		log:     logger.Component("session"),
		live:    make(map[string]*AppContext),
		now:     time.Now,
	}
}

func (m *Manager) newContext(id string) *AppContext {
	return newAppContext(id, m.backend, notify.NewQueue(m.opts.NotifyCapacity, m.opts.NotifyTTL))
}

// Resolve returns the AppContext for the session id from the cookie. An
// empty, unknown or expired id yields a fresh anonymous context; created
// reports that case so the caller can issue a new cookie.
func (m *Manager) Resolve(ctx context.Context, id string) (app *AppContext, created bool) {
	now := m.now()
	if id != "" {
		m.mu.Lock()
		app, ok := m.live[id]
		m.mu.Unlock()
		if ok {
			app.touch(now)
			return app, false
		}

		if app := m.restore(ctx, id, now); app != nil {
			return app, false
		}
	}

	app = m.newContext(uuid.NewString())
	app.touch(now)
	m.mu.Lock()
	m.live[app.ID] = app
	m.mu.Unlock()
	return app, true
}

func (m *Manager) restore(ctx context.Context, id string, now time.Time) *AppContext {
	stored, err := m.repo.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			m.log.Warn().Err(err).Str("session_id", id).Msg("failed to load session")
		}
		return nil
	}
	if stored.Expired(now) {
		_ = m.repo.Delete(ctx, id)
		return nil
	}
	token, err := m.sealer.Open(stored.SealedToken)
	if err != nil {
		m.log.Warn().Err(err).Str("session_id", id).Msg("dropping unreadable session")
		_ = m.repo.Delete(ctx, id)
		return nil
	}

	app := m.newContext(id)
	app.setAuth(token, nil)
	app.touch(now)
	if err := m.repo.Touch(ctx, id, now); err != nil {
		m.log.Debug().Err(err).Msg("failed to touch session")
	}

	m.mu.Lock()
	if existing, ok := m.live[id]; ok {
		m.mu.Unlock()
		return existing
	}
	m.live[id] = app
	m.mu.Unlock()
	return app
}

// Login authenticates against the backend, confirms the token with /auth/me
// and persists the session.
func (m *Manager) Login(ctx context.Context, app *AppContext, email, password string) error {
	token, err := m.backend.Login(ctx, email, password)
	if err != nil {
		return err
	}
	user, err := m.backend.Me(ctx, token)
	if err != nil {
		return fmt.Errorf("verify token: %w", err)
	}

	sealed, err := m.sealer.Seal(token)
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}

	now := m.now()
	claims := claimsFromToken(token)
	expires := claims.ExpiresAt
	if expires.IsZero() || expires.After(now.Add(m.opts.TTL)) {
		expires = now.Add(m.opts.TTL)
	}
	subject := claims.Subject
	if subject == "" {
		subject = user.UID
	}

	if err := m.repo.Save(ctx, &models.Session{
		ID:          app.ID,
		SealedToken: sealed,
		Subject:     subject,
		ExpiresAt:   expires,
		LastSeenAt:  now,
	}); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}

	app.setAuth(token, user)
	m.log.Info().Str("session_id", app.ID).Str("subject", subject).Msg("user logged in")
	return nil
}

// Logout forgets the token and everything derived from it.
func (m *Manager) Logout(ctx context.Context, app *AppContext) error {
	app.clear()
	if err := m.repo.Delete(ctx, app.ID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Purge removes expired persisted sessions and anonymous contexts idle for
// longer than the session TTL.
func (m *Manager) Purge(ctx context.Context) (int64, error) {
	now := m.now()
	n, err := m.repo.PurgeExpired(ctx, now)

	cutoff := now.Add(-m.opts.TTL)
	m.mu.Lock()
	for id, app := range m.live {
		if app.idleSince().Before(cutoff) {
			delete(m.live, id)
			n++
		}
	}
	m.mu.Unlock()
	return n, err
}

// Live is the number of sessions held in memory.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}
