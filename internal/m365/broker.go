// Package m365 coordinates the Microsoft 365 consent popup: it issues the
// authorize URL, receives the redirect and hands the single result back to
// the window that started the attempt.
package m365

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cortexui/dashboard/internal/apiclient"
	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

// PopupPath is where Azure AD redirects after consent.
const PopupPath = "/setup/m365/popup"

var scopes = []string{"offline_access", "User.Read", "Mail.Send"}

var (
	ErrUnknownState   = errors.New("unknown or foreign authorization state")
	ErrAlreadySettled = errors.New("authorization attempt already settled")
	ErrTimeout        = errors.New("microsoft 365 authorization timed out")
	ErrMissingFields  = errors.New("tenantId, clientId and clientSecret are required")
)

// Credentials identify the app registration used for the attempt.
type Credentials struct {
	TenantID     string `json:"tenantId"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
}

func (c Credentials) Validate() error {
	if strings.TrimSpace(c.TenantID) == "" || strings.TrimSpace(c.ClientID) == "" || strings.TrimSpace(c.ClientSecret) == "" {
		return ErrMissingFields
	}
	return nil
}

// Result is the settled outcome of one attempt.
type Result struct {
	OK          bool   `json:"isOk"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	Message     string `json:"message,omitempty"`
}

// Exchanger redeems an authorization code on the backend.
type Exchanger interface {
	ExchangeM365Code(ctx context.Context, req apiclient.M365Exchange) (*apiclient.M365Result, error)
}

type attempt struct {
	owner   string
	creds   Credentials
	created time.Time

	once   sync.Once
	done   chan struct{}
	result Result
}

func (a *attempt) settle(r Result) bool {
	settled := false
	a.once.Do(func() {
		a.result = r
		close(a.done)
		settled = true
	})
	return settled
}

// Broker tracks in-flight attempts keyed by OAuth state. Safe for concurrent use.
type Broker struct {
	mu       sync.Mutex
	attempts map[string]*attempt

	redirectURL string
	timeout     time.Duration
	exchanger   Exchanger
	now         func() time.Time
}

func NewBroker(publicURL string, timeout time.Duration, ex Exchanger) *Broker {
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Broker{
		attempts:    make(map[string]*attempt),
		redirectURL: strings.TrimRight(publicURL, "/") + PopupPath,
		timeout:     timeout,
		exchanger:   ex,
		now:         time.Now,
	}
}

// RedirectURL is the redirect_uri registered with Azure AD.
func (b *Broker) RedirectURL() string { return b.redirectURL }

func (b *Broker) oauthConfig(c Credentials) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     microsoft.AzureADEndpoint(c.TenantID),
		RedirectURL:  b.redirectURL,
		Scopes:       scopes,
	}
}

// Start registers an attempt for owner and returns its state and the URL the
// popup should open.
func (b *Broker) Start(owner string, c Credentials) (state, popupURL string, err error) {
	if err := c.Validate(); err != nil {
		return "", "", err
	}
	state = uuid.NewString()

	b.mu.Lock()
	b.attempts[state] = &attempt{
		owner:   owner,
		creds:   c,
		created: b.now(),
		done:    make(chan struct{}),
	}
	b.mu.Unlock()

	return state, b.redirectURL + "?state=" + state, nil
}

func (b *Broker) lookup(owner, state string) (*attempt, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	a, ok := b.attempts[state]
	if !ok || a.owner != owner {
		return nil, ErrUnknownState
	}
	return a, nil
}

// AuthorizeURL returns the Azure AD consent URL for state.
func (b *Broker) AuthorizeURL(owner, state string) (string, error) {
	a, err := b.lookup(owner, state)
	if err != nil {
		return "", err
	}
	return b.oauthConfig(a.creds).AuthCodeURL(state,
		oauth2.SetAuthURLParam("response_mode", "query"),
	), nil
}

// Credentials returns the app registration of a pending attempt.
func (b *Broker) Credentials(owner, state string) (Credentials, error) {
	a, err := b.lookup(owner, state)
	if err != nil {
		return Credentials{}, err
	}
	return a.creds, nil
}

// Complete handles the redirect. A non-empty authErr (the error_description
// sent by Azure AD) settles the attempt as failed without calling the backend.
func (b *Broker) Complete(ctx context.Context, owner, state, code, authErr string) (Result, error) {
	a, err := b.lookup(owner, state)
	if err != nil {
		return Result{}, err
	}
	select {
	case <-a.done:
		return a.result, ErrAlreadySettled
	default:
	}

	var res Result
	switch {
	case authErr != "":
		res = Result{Message: authErr}
	case code == "":
		res = Result{Message: "Kein Autorisierungscode erhalten"}
	default:
		res = b.exchange(ctx, a, code)
	}

	if !a.settle(res) {
		return a.result, ErrAlreadySettled
	}
	return res, nil
}

func (b *Broker) exchange(ctx context.Context, a *attempt, code string) Result {
	resp, err := b.exchanger.ExchangeM365Code(ctx, apiclient.M365Exchange{
		Code:         code,
		TenantID:     a.creds.TenantID,
		ClientID:     a.creds.ClientID,
		ClientSecret: a.creds.ClientSecret,
		RedirectURI:  b.redirectURL,
	})
	if err != nil {
		logger.Warn().Err(err).Str("tenant", a.creds.TenantID).Msg("m365 code exchange failed")
		msg := "Serverfehler beim Token-Austausch"
		if resp != nil && resp.Message != "" {
			msg = resp.Message
		}
		return Result{Message: msg}
	}
	return Result{OK: true, Email: resp.Email, DisplayName: resp.DisplayName, Message: resp.Message}
}

// Await blocks until the attempt settles, the broker timeout elapses or ctx
// ends. The attempt is removed once Await returns. A timeout settles the
// attempt so a late redirect cannot resolve it.
func (b *Broker) Await(ctx context.Context, owner, state string) (Result, Credentials, error) {
	a, err := b.lookup(owner, state)
	if err != nil {
		return Result{}, Credentials{}, err
	}

	remaining := b.timeout - b.now().Sub(a.created)
	timer := time.NewTimer(remaining)
	defer timer.Stop()

	select {
	case <-a.done:
		b.remove(state)
		return a.result, a.creds, nil
	case <-timer.C:
		a.settle(Result{Message: "Zeitüberschreitung bei der Microsoft 365 Anmeldung"})
		b.remove(state)
		return a.result, a.creds, ErrTimeout
	case <-ctx.Done():
		return Result{}, a.creds, ctx.Err()
	}
}

func (b *Broker) remove(state string) {
	b.mu.Lock()
	delete(b.attempts, state)
	b.mu.Unlock()
}

// Sweep drops attempts older than twice the timeout that nobody awaited.
func (b *Broker) Sweep() int {
	cutoff := b.now().Add(-2 * b.timeout)
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for state, a := range b.attempts {
		if a.created.Before(cutoff) {
			a.settle(Result{Message: "expired"})
			delete(b.attempts, state)
			n++
		}
	}
	return n
}

// Pending is the number of tracked attempts.
func (b *Broker) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.attempts)
}

func (r Result) String() string {
	if r.OK {
		return fmt.Sprintf("authenticated as %s", r.Email)
	}
	return "failed: " + r.Message
}
