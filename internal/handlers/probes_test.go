package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cortexui/dashboard/internal/notify"
	"github.com/cortexui/dashboard/internal/probe"
	"github.com/cortexui/dashboard/internal/session"
)

// blockingCheck holds every check until release is closed.
type blockingCheck struct {
	calls   atomic.Int32
	started chan struct{}
	release chan struct{}
}

func newBlockingCheck() *blockingCheck {
	return &blockingCheck{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (p *blockingCheck) wait() {
	p.calls.Add(1)
	select {
	case p.started <- struct{}{}:
	default:
	}
	<-p.release
}

func (p *blockingCheck) Check(context.Context, probe.DatabaseRequest) error {
	p.wait()
	return nil
}

func (p *blockingCheck) Send(context.Context, probe.SMTPRequest) error {
	p.wait()
	return nil
}

type blockingMatomo struct{ *blockingCheck }

func (p blockingMatomo) Check(context.Context, probe.MatomoRequest) (*probe.MatomoSite, error) {
	p.wait()
	return &probe.MatomoSite{SiteName: "Intranet"}, nil
}

func (e *testEnv) pendingOf(kind notify.Kind) []notify.Notification {
	var out []notify.Notification
	for _, n := range e.app.Queue.Pending() {
		if n.Kind == kind {
			out = append(out, n)
		}
	}
	return out
}

func TestTestDatabase(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantCode   int
		wantPassed bool
		wantTitle  string
	}{
		{"passes", nil, http.StatusOK, true, "Verbindung erfolgreich"},
		{"fails", errors.New("connection refused"), http.StatusInternalServerError, false, "Verbindung fehlgeschlagen"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.deps.DatabaseProbe = stubDatabaseProbe{err: tt.err}

			w := env.do(http.MethodPost, "/setup/test-db", map[string]string{"uri": "mongodb://db:27017", "dbName": "cortex"})
			if w.Code != tt.wantCode {
				t.Fatalf("code = %d %s", w.Code, w.Body.String())
			}
			fp := session.Fingerprint("mongodb://db:27017", "cortex")
			if got := env.app.ProbePassed(session.ProbeDatabase, fp); got != tt.wantPassed {
				t.Errorf("ProbePassed = %v", got)
			}
			if !env.hasNotification(tt.wantTitle) {
				t.Errorf("expected notification %q", tt.wantTitle)
			}
		})
	}
}

func TestTestDatabaseMissingFields(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/setup/test-db", map[string]string{"uri": "mongodb://db"})
	if w.Code != http.StatusBadRequest || decode(t, w).Status != "MISSING_FIELDS" {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}

func TestTestSMTPDefaultsRecipientToUser(t *testing.T) {
	env := newTestEnv(t)
	smtp := &stubSMTPProbe{}
	env.deps.SMTPProbe = smtp

	w := env.do(http.MethodPost, "/setup/test-smtp", map[string]interface{}{
		"host": "mail.example.com", "port": 587, "user": "u", "pass": "p", "from": "noreply@example.com",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d %s", w.Code, w.Body.String())
	}
	if smtp.sent == nil || smtp.sent.To != "admin@example.com" {
		t.Fatalf("sent = %+v", smtp.sent)
	}
	if !env.app.ProbePassed(session.ProbeSMTP, smtpFingerprint("mail.example.com", 587, "u", "p", "noreply@example.com")) {
		t.Error("smtp probe should be recorded")
	}
}

func TestTestMatomo(t *testing.T) {
	body := map[string]string{"matomoUrl": "https://matomo.example.com", "matomoSiteId": "3", "matomoApiKey": "abc"}

	t.Run("rejected", func(t *testing.T) {
		env := newTestEnv(t)
		env.deps.MatomoProbe = stubMatomoProbe{err: fmt.Errorf("%w: no site", probe.ErrMatomoRejected)}
		w := env.do(http.MethodPost, "/setup/test-matomo", body)
		if w.Code != http.StatusBadRequest || decode(t, w).Status != "MATOMO_REJECTED" {
			t.Fatalf("got %d %s", w.Code, w.Body.String())
		}
	})

	t.Run("unreachable", func(t *testing.T) {
		env := newTestEnv(t)
		env.deps.MatomoProbe = stubMatomoProbe{err: errors.New("dial tcp: timeout")}
		w := env.do(http.MethodPost, "/setup/test-matomo", body)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("got %d %s", w.Code, w.Body.String())
		}
	})

	t.Run("passes", func(t *testing.T) {
		env := newTestEnv(t)
		w := env.do(http.MethodPost, "/setup/test-matomo", body)
		if w.Code != http.StatusOK {
			t.Fatalf("got %d %s", w.Code, w.Body.String())
		}
		if !env.app.ProbePassed(session.ProbeMatomo, session.Fingerprint(body["matomoUrl"], body["matomoSiteId"], body["matomoApiKey"])) {
			t.Error("matomo probe should be recorded")
		}
	})
}

func TestConnectionTestRefusesConcurrentRun(t *testing.T) {
	tests := []struct {
		name string
		path string
		body interface{}
		wire func(env *testEnv, p *blockingCheck)
	}{
		{
			name: "database",
			path: "/setup/test-db",
			body: map[string]string{"uri": "mongodb://db:27017", "dbName": "cortex"},
			wire: func(env *testEnv, p *blockingCheck) { env.deps.DatabaseProbe = p },
		},
		{
			name: "smtp",
			path: "/setup/test-smtp",
			body: map[string]interface{}{"host": "mail.example.com", "port": 587, "user": "u", "pass": "p"},
			wire: func(env *testEnv, p *blockingCheck) { env.deps.SMTPProbe = p },
		},
		{
			name: "matomo",
			path: "/setup/test-matomo",
			body: map[string]string{"matomoUrl": "https://matomo.example.com", "matomoSiteId": "3", "matomoApiKey": "abc"},
			wire: func(env *testEnv, p *blockingCheck) { env.deps.MatomoProbe = blockingMatomo{p} },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			p := newBlockingCheck()
			tt.wire(env, p)

			var first *httptest.ResponseRecorder
			var wg sync.WaitGroup
			wg.Add(1)
			go func() {
				defer wg.Done()
				first = env.do(http.MethodPost, tt.path, tt.body)
			}()
			<-p.started

			second := env.do(http.MethodPost, tt.path, tt.body)
			close(p.release)
			wg.Wait()

			if second.Code != http.StatusConflict || decode(t, second).Status != "IN_PROGRESS" {
				t.Fatalf("second run: %d %s", second.Code, second.Body.String())
			}
			if first.Code != http.StatusOK {
				t.Fatalf("first run: %d %s", first.Code, first.Body.String())
			}
			if got := p.calls.Load(); got != 1 {
				t.Errorf("check ran %d times", got)
			}

			again := env.do(http.MethodPost, tt.path, tt.body)
			if again.Code != http.StatusOK {
				t.Errorf("run after release: %d %s", again.Code, again.Body.String())
			}
		})
	}
}

func TestTestSMTPUpdatesWizard(t *testing.T) {
	env := newTestEnv(t)
	smtp := &stubSMTPProbe{err: errors.New("535 authentication failed")}
	env.deps.SMTPProbe = smtp

	if err := env.app.Wizard.UpdateStepData("mailServer", []byte(`{"type":"smtp","smtp":{
		"host":"mail.example.com","port":587,"username":"u","password":"p","senderEmail":"noreply@example.com"}}`)); err != nil {
		t.Fatal(err)
	}
	body := map[string]interface{}{
		"host": "mail.example.com", "port": 587, "user": "u", "pass": "p", "from": "noreply@example.com",
	}

	w := env.do(http.MethodPost, "/setup/test-smtp", body)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d %s", w.Code, w.Body.String())
	}
	if env.app.Wizard.Data().MailServer.SMTP.Tested {
		t.Fatal("failed send must leave the settings untested")
	}
	if errs := env.pendingOf(notify.Error); len(errs) != 1 {
		t.Fatalf("error notifications = %+v", errs)
	}

	smtp.err = nil
	w = env.do(http.MethodPost, "/setup/test-smtp", body)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d %s", w.Code, w.Body.String())
	}
	if !env.app.Wizard.Data().MailServer.SMTP.Tested {
		t.Fatal("successful send should mark the settings tested")
	}
	if ok := env.pendingOf(notify.Success); len(ok) != 1 || ok[0].Title != "SMTP-Verbindung erfolgreich" {
		t.Fatalf("success notifications = %+v", ok)
	}
	if errs := env.pendingOf(notify.Error); len(errs) != 0 {
		t.Errorf("the earlier error should be replaced, still pending: %+v", errs)
	}
}

func TestTestSMTPWithoutTLS(t *testing.T) {
	env := newTestEnv(t)
	env.deps.SMTPProbe = &stubSMTPProbe{err: fmt.Errorf("mail.example.com:25: %w", probe.ErrNoTLS)}

	w := env.do(http.MethodPost, "/setup/test-smtp", map[string]interface{}{
		"host": "mail.example.com", "port": 25, "user": "u", "pass": "p",
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d %s", w.Code, w.Body.String())
	}
	if got := decode(t, w); got.Status != "SMTP_NO_TLS" || got.Message != probe.ErrNoTLS.Error() {
		t.Errorf("envelope = %+v", got)
	}
	errs := env.pendingOf(notify.Error)
	if len(errs) != 1 || errs[0].Message != noTLSMessage {
		t.Errorf("notifications = %+v", errs)
	}
}

func TestDatabaseSuccessReplacesFailureToast(t *testing.T) {
	env := newTestEnv(t)
	body := map[string]string{"uri": "mongodb://db:27017", "dbName": "cortex"}

	env.deps.DatabaseProbe = stubDatabaseProbe{err: errors.New("connection refused")}
	env.do(http.MethodPost, "/setup/test-db", body)
	env.deps.DatabaseProbe = stubDatabaseProbe{}
	env.do(http.MethodPost, "/setup/test-db", body)

	pending := env.app.Queue.Pending()
	if len(pending) != 1 || pending[0].Kind != notify.Success {
		t.Errorf("pending = %+v", pending)
	}
}
