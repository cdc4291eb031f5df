package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cortexui/dashboard/internal/apiclient"
	"github.com/cortexui/dashboard/internal/models"
	"github.com/cortexui/dashboard/internal/notify"
	"github.com/cortexui/dashboard/internal/wizard"
	"golang.org/x/sync/errgroup"
)

// Backend is the part of the API client the session layer needs.
type Backend interface {
	Login(ctx context.Context, email, password string) (string, error)
	Me(ctx context.Context, token string) (*models.UserPublic, error)
	WhiteLabel(ctx context.Context) (*models.WhiteLabelConfig, error)
	ServerStatus(ctx context.Context, token string) (*models.ServerStatus, error)
	SetupStatus(ctx context.Context) (bool, error)
}

// Probe kinds recorded in the ledger.
const (
	ProbeDatabase = "database"
	ProbeSMTP     = "smtp"
	ProbeMatomo   = "matomo"
	ProbeM365     = "m365"
)

// AppContext is the state of one browser session: who is logged in, the
// cached backend views and the session's wizard and notifications.
type AppContext struct {
	ID     string
	Wizard *wizard.Wizard
	Queue  *notify.Queue

	backend Backend

	mu             sync.RWMutex
	token          string
	user           *models.UserPublic
	whiteLabel     *models.WhiteLabelConfig
	serverStatus   *models.ServerStatus
	setupCompleted bool
	setupKnown     bool
	publicKeys     []models.PublicKey
	ledger         map[string]string
	inflight       map[string]bool
	probeNotices   map[string]string
	lastSeen       time.Time
}

func newAppContext(id string, backend Backend, queue *notify.Queue) *AppContext {
	return &AppContext{
		ID:           id,
		Wizard:       wizard.New(),
		Queue:        queue,
		backend:      backend,
		ledger:       make(map[string]string),
		inflight:     make(map[string]bool),
		probeNotices: make(map[string]string),
	}
}

func (a *AppContext) Token() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.token
}

func (a *AppContext) Authenticated() bool {
	return a.Token() != ""
}

// User returns a copy of the logged-in user, or nil.
func (a *AppContext) User() *models.UserPublic {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.user == nil {
		return nil
	}
	u := *a.user
	return &u
}

func (a *AppContext) IsAdmin() bool {
	return a.User().IsAdmin()
}

func (a *AppContext) WhiteLabel() *models.WhiteLabelConfig {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.whiteLabel == nil {
		return nil
	}
	wl := *a.whiteLabel
	return &wl
}

func (a *AppContext) ServerStatus() *models.ServerStatus {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.serverStatus == nil {
		return nil
	}
	s := *a.serverStatus
	return &s
}

// SetupCompleted returns the cached flag and whether it has been fetched.
func (a *AppContext) SetupCompleted() (completed, known bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.setupCompleted, a.setupKnown
}

func (a *AppContext) MarkSetupCompleted() {
	a.mu.Lock()
	a.setupCompleted, a.setupKnown = true, true
	a.mu.Unlock()
}

func (a *AppContext) setAuth(token string, user *models.UserPublic) {
	a.mu.Lock()
	a.token = token
	a.user = user
	a.mu.Unlock()
}

// clear drops everything tied to the logged-in user.
func (a *AppContext) clear() {
	a.mu.Lock()
	a.token = ""
	a.user = nil
	a.serverStatus = nil
	a.publicKeys = nil
	a.ledger = make(map[string]string)
	a.mu.Unlock()
}

func (a *AppContext) touch(now time.Time) {
	a.mu.Lock()
	a.lastSeen = now
	a.mu.Unlock()
}

func (a *AppContext) idleSince() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.lastSeen
}

// RefreshUser reloads the current user. Without a token it clears the user.
func (a *AppContext) RefreshUser(ctx context.Context) error {
	token := a.Token()
	if token == "" {
		a.setAuth("", nil)
		return nil
	}
	user, err := a.backend.Me(ctx, token)
	if err != nil {
		return err
	}
	a.mu.Lock()
	if a.token == token {
		a.user = user
	}
	a.mu.Unlock()
	return nil
}

func (a *AppContext) RefreshWhiteLabel(ctx context.Context) error {
	wl, err := a.backend.WhiteLabel(ctx)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.whiteLabel = wl
	a.mu.Unlock()
	return nil
}

// RefreshServerStatus requires a token; without one it is a no-op.
func (a *AppContext) RefreshServerStatus(ctx context.Context) error {
	token := a.Token()
	if token == "" {
		return nil
	}
	status, err := a.backend.ServerStatus(ctx, token)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.serverStatus = status
	a.mu.Unlock()
	return nil
}

func (a *AppContext) RefreshSetupCompleted(ctx context.Context) error {
	done, err := a.backend.SetupStatus(ctx)
	if err != nil {
		return err
	}
	a.mu.Lock()
	a.setupCompleted, a.setupKnown = done, true
	a.mu.Unlock()
	return nil
}

// RefreshAll runs every refresh concurrently and returns the first error.
// An unauthorized answer takes precedence so callers can end the session.
func (a *AppContext) RefreshAll(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	errs := make([]error, 4)
	g.Go(func() error { errs[0] = a.RefreshUser(gctx); return errs[0] })
	g.Go(func() error { errs[1] = a.RefreshWhiteLabel(gctx); return errs[1] })
	g.Go(func() error { errs[2] = a.RefreshServerStatus(gctx); return errs[2] })
	g.Go(func() error { errs[3] = a.RefreshSetupCompleted(gctx); return errs[3] })
	err := g.Wait()
	for _, e := range errs {
		if errors.Is(e, apiclient.ErrUnauthorized) {
			return e
		}
	}
	return err
}

// PublicKeys returns the cached key list.
func (a *AppContext) PublicKeys() []models.PublicKey {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]models.PublicKey, len(a.publicKeys))
	copy(out, a.publicKeys)
	return out
}

func (a *AppContext) SetPublicKeys(keys []models.PublicKey) {
	a.mu.Lock()
	a.publicKeys = keys
	a.mu.Unlock()
}

// UpdatePublicKey applies fn to the cached key with uid and returns the key
// as it was before. ok is false when no such key is cached.
func (a *AppContext) UpdatePublicKey(uid string, fn func(k *models.PublicKey)) (prev models.PublicKey, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range a.publicKeys {
		if a.publicKeys[i].UID == uid {
			prev = a.publicKeys[i]
			fn(&a.publicKeys[i])
			return prev, true
		}
	}
	return prev, false
}

func (a *AppContext) RemovePublicKey(uid string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	kept := a.publicKeys[:0]
	for _, k := range a.publicKeys {
		if k.UID != uid {
			kept = append(kept, k)
		}
	}
	a.publicKeys = kept
}

// Fingerprint hashes the parameters a probe ran with.
func Fingerprint(parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return hex.EncodeToString(sum[:])
}

// RecordProbe stores the outcome of a probe. A failed probe clears the entry.
func (a *AppContext) RecordProbe(kind, fingerprint string, passed bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if passed {
		a.ledger[kind] = fingerprint
	} else {
		delete(a.ledger, kind)
	}
}

// ProbePassed reports whether the last probe of kind passed with exactly these parameters.
func (a *AppContext) ProbePassed(kind, fingerprint string) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	fp, ok := a.ledger[kind]
	return ok && fp == fingerprint
}

// NotifyProbe queues the outcome toast of a probe run and dismisses the toast
// left by the previous run of the same probe.
func (a *AppContext) NotifyProbe(probe string, kind notify.Kind, title, message string) notify.Notification {
	a.mu.Lock()
	defer a.mu.Unlock()
	if id, ok := a.probeNotices[probe]; ok {
		a.Queue.Dismiss(id)
	}
	n := a.Queue.Notify(kind, title, message)
	a.probeNotices[probe] = n.ID
	return n
}

// Begin marks action as running. It returns ok=false if it already is;
// otherwise release must be called when the action finishes.
func (a *AppContext) Begin(action string) (release func(), ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.inflight[action] {
		return nil, false
	}
	a.inflight[action] = true
	var once sync.Once
	return func() {
		once.Do(func() {
			a.mu.Lock()
			delete(a.inflight, action)
			a.mu.Unlock()
		})
	}, true
}
