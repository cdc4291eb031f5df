package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cortexui/dashboard/internal/apiclient"
	"github.com/cortexui/dashboard/internal/config"
	"github.com/cortexui/dashboard/internal/middleware"
	"github.com/cortexui/dashboard/internal/models"
	"github.com/cortexui/dashboard/internal/probe"
	"github.com/cortexui/dashboard/internal/session"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type memoryRepo struct {
	mu   sync.Mutex
	rows map[string]models.Session
}

func (r *memoryRepo) Save(_ context.Context, s *models.Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[s.ID] = *s
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.rows[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return &s, nil
}

func (r *memoryRepo) Touch(context.Context, string, time.Time) error { return nil }

func (r *memoryRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.rows, id)
	return nil
}

func (r *memoryRepo) PurgeExpired(context.Context, time.Time) (int64, error) { return 0, nil }

// fakeBackend is a minimal CortexUI API server. Handlers can be overridden
// per path; requests are recorded.
type fakeBackend struct {
	mu       sync.Mutex
	routes   map[string]http.HandlerFunc
	requests []string
}

func newFakeBackend() *fakeBackend {
	b := &fakeBackend{routes: map[string]http.HandlerFunc{}}
	b.handle("POST /api/v1/auth/login", jsonReply(http.StatusOK, `{"data":{"accessToken":"tok"}}`))
	b.handle("GET /api/v1/auth/me", jsonReply(http.StatusOK,
		`{"isOk":true,"data":{"uid":"admin-1","email":"admin@example.com","firstName":"Ada","lastName":"Admin","role":"admin","isActive":true}}`))
	b.handle("GET /api/v1/system/white-label", jsonReply(http.StatusOK, `{"title":"CortexUI"}`))
	b.handle("GET /api/v1/system/status", jsonReply(http.StatusOK, `{}`))
	b.handle("GET /api/v1/setup/status", jsonReply(http.StatusOK, `{"setupCompleted":true}`))
	return b
}

func (b *fakeBackend) handle(route string, h http.HandlerFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.routes[route] = h
}

func (b *fakeBackend) seen(route string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.requests {
		if r == route {
			return true
		}
	}
	return false
}

func (b *fakeBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	route := r.Method + " " + r.URL.Path
	b.mu.Lock()
	b.requests = append(b.requests, route)
	h, ok := b.routes[route]
	b.mu.Unlock()
	if !ok {
		http.NotFound(w, r)
		return
	}
	h(w, r)
}

func jsonReply(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}
}

type stubDatabaseProbe struct{ err error }

func (p stubDatabaseProbe) Check(context.Context, probe.DatabaseRequest) error { return p.err }

type stubSMTPProbe struct {
	err  error
	sent *probe.SMTPRequest
}

func (p *stubSMTPProbe) Send(_ context.Context, r probe.SMTPRequest) error {
	p.sent = &r
	return p.err
}

type stubMatomoProbe struct {
	site *probe.MatomoSite
	err  error
}

func (p stubMatomoProbe) Check(context.Context, probe.MatomoRequest) (*probe.MatomoSite, error) {
	return p.site, p.err
}

var testSessionConfig = config.SessionConfig{CookieName: "cortexui_session", TTL: time.Hour}

type testEnv struct {
	t       *testing.T
	backend *fakeBackend
	deps    *Deps
	router  *gin.Engine
	app     *session.AppContext
	cookie  *http.Cookie
}

// newTestEnv wires the handlers against a fake backend and logs an admin in.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	backend := newFakeBackend()
	srv := httptest.NewServer(backend)
	t.Cleanup(srv.Close)

	api := apiclient.New(srv.URL, time.Second)
	mgr := session.NewManager(&memoryRepo{rows: map[string]models.Session{}}, api, session.Options{Secret: "test", NotifyCapacity: 10, NotifyTTL: time.Minute})
	deps := &Deps{
		Config:        &config.Config{Session: testSessionConfig},
		API:           api,
		Sessions:      mgr,
		DatabaseProbe: stubDatabaseProbe{},
		SMTPProbe:     &stubSMTPProbe{},
		MatomoProbe:   stubMatomoProbe{site: &probe.MatomoSite{SiteName: "Intranet"}},
	}

	app, _ := mgr.Resolve(context.Background(), "")
	if err := mgr.Login(context.Background(), app, "admin@example.com", "Secret123!"); err != nil {
		t.Fatalf("login: %v", err)
	}

	r := gin.New()
	r.Use(middleware.Session(mgr, testSessionConfig))

	users := NewUserHandler(deps)
	keys := NewPublicKeyHandler(deps)
	probes := NewProbeHandler(deps)
	events := NewEventsHandler(deps)
	settings := NewSettingsHandler(deps)

	r.GET("/notifications", events.List)
	r.DELETE("/notifications/:id", events.Dismiss)
	r.POST("/setup/test-db", probes.TestDatabase)
	r.POST("/setup/test-smtp", probes.TestSMTP)
	r.POST("/setup/test-matomo", probes.TestMatomo)

	api2 := r.Group("/ui/api", middleware.AuthRequired(mgr), middleware.AdminRequired())
	api2.GET("/users", users.List)
	api2.POST("/users", users.Create)
	api2.PUT("/users", users.Update)
	api2.DELETE("/users", users.Delete)
	api2.GET("/public-keys", keys.List)
	api2.POST("/public-keys", keys.Create)
	api2.PUT("/public-keys/:uid/toggle", keys.Toggle)
	api2.DELETE("/public-keys/:uid", keys.Delete)
	api2.GET("/settings/analytics", settings.GetAnalytics)
	api2.POST("/settings/analytics", settings.SaveAnalytics)

	return &testEnv{
		t:       t,
		backend: backend,
		deps:    deps,
		router:  r,
		app:     app,
		cookie:  &http.Cookie{Name: testSessionConfig.CookieName, Value: app.ID},
	}
}

func (e *testEnv) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(e.cookie)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

type envelope struct {
	IsOk    bool            `json:"isOk"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, w *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(w.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return env
}

func (e *testEnv) hasNotification(title string) bool {
	for _, n := range e.app.Queue.Pending() {
		if strings.EqualFold(n.Title, title) {
			return true
		}
	}
	return false
}
