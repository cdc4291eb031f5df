package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cortexui/dashboard/internal/apiclient"
	"github.com/cortexui/dashboard/internal/config"
	"github.com/cortexui/dashboard/internal/models"
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

type stubBackend struct {
	user  *models.UserPublic
	meErr error
	setup bool
}

func (b *stubBackend) Login(context.Context, string, string) (string, error) {
	return "opaque-token", nil
}

func (b *stubBackend) Me(context.Context, string) (*models.UserPublic, error) {
	if b.meErr != nil {
		return nil, b.meErr
	}
	u := *b.user
	return &u, nil
}

func (b *stubBackend) WhiteLabel(context.Context) (*models.WhiteLabelConfig, error) {
	return &models.WhiteLabelConfig{Title: "CortexUI"}, nil
}

func (b *stubBackend) ServerStatus(context.Context, string) (*models.ServerStatus, error) {
	return &models.ServerStatus{}, nil
}

func (b *stubBackend) SetupStatus(context.Context) (bool, error) {
	return b.setup, nil
}

var testSessionConfig = config.SessionConfig{CookieName: "cortexui_session", TTL: time.Hour}

func newTestManager(b *stubBackend) *session.Manager {
	return session.NewManager(&memoryRepo{rows: make(map[string]models.Session)}, b, session.Options{Secret: "test"})
}

// loggedInCookie logs a fresh session in and returns its cookie.
func loggedInCookie(t *testing.T, m *session.Manager) *http.Cookie {
	t.Helper()
	app, _ := m.Resolve(context.Background(), "")
	if err := m.Login(context.Background(), app, "admin@example.com", "Secret123"); err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return &http.Cookie{Name: testSessionConfig.CookieName, Value: app.ID}
}

func TestSession_IssuesCookie(t *testing.T) {
	m := newTestManager(&stubBackend{})
	router := gin.New()
	router.Use(Session(m, testSessionConfig))
	router.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, App(c).ID)
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/", nil)
	router.ServeHTTP(w, req)

	cookie := w.Header().Get("Set-Cookie")
	if !strings.Contains(cookie, "cortexui_session="+w.Body.String()) {
		t.Fatalf("expected session cookie for %s, got %q", w.Body.String(), cookie)
	}
	if !strings.Contains(cookie, "HttpOnly") || !strings.Contains(cookie, "SameSite=Lax") {
		t.Errorf("cookie should be HttpOnly and SameSite=Lax: %q", cookie)
	}

	// the known cookie is reused without a new Set-Cookie
	w2 := httptest.NewRecorder()
	req2, _ := http.NewRequest("GET", "/", nil)
	req2.AddCookie(&http.Cookie{Name: "cortexui_session", Value: w.Body.String()})
	router.ServeHTTP(w2, req2)
	if w2.Body.String() != w.Body.String() {
		t.Errorf("expected the same session, got %s", w2.Body.String())
	}
	if w2.Header().Get("Set-Cookie") != "" {
		t.Error("no cookie should be issued for a known session")
	}
}

func TestAuthRequired(t *testing.T) {
	backend := &stubBackend{user: &models.UserPublic{UID: "u1", Email: "admin@example.com", Role: "admin"}}
	m := newTestManager(backend)

	router := gin.New()
	router.Use(Session(m, testSessionConfig))
	router.GET("/", AuthRequired(m), func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	router.GET("/ui/api/users", AuthRequired(m), func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	tests := []struct {
		name     string
		path     string
		loggedIn bool
		wantCode int
		wantLoc  string
	}{
		{"anonymous page", "/", false, http.StatusFound, LoginPath},
		{"anonymous json", "/ui/api/users", false, http.StatusUnauthorized, ""},
		{"logged in page", "/", true, http.StatusOK, ""},
		{"logged in json", "/ui/api/users", true, http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", tt.path, nil)
			if tt.loggedIn {
				req.AddCookie(loggedInCookie(t, m))
			}
			router.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, w.Code)
			}
			if tt.wantLoc != "" && w.Header().Get("Location") != tt.wantLoc {
				t.Errorf("expected redirect to %s, got %s", tt.wantLoc, w.Header().Get("Location"))
			}
			if tt.wantCode == http.StatusUnauthorized && !strings.Contains(w.Body.String(), SessionExpiredPath) {
				t.Errorf("401 body should carry the redirect: %s", w.Body.String())
			}
		})
	}
}

func TestHandleUnauthorized_LogsOut(t *testing.T) {
	backend := &stubBackend{user: &models.UserPublic{UID: "u1", Role: "user"}}
	m := newTestManager(backend)

	router := gin.New()
	router.Use(Session(m, testSessionConfig))
	router.GET("/page", func(c *gin.Context) {
		if HandleUnauthorized(c, m, apiclient.ErrUnauthorized) {
			return
		}
		c.String(http.StatusOK, "ok")
	})

	cookie := loggedInCookie(t, m)
	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/page", nil)
	req.AddCookie(cookie)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound || w.Header().Get("Location") != SessionExpiredPath {
		t.Fatalf("expected redirect to %s, got %d %s", SessionExpiredPath, w.Code, w.Header().Get("Location"))
	}

	app, _ := m.Resolve(context.Background(), cookie.Value)
	if app.Authenticated() {
		t.Error("session should be logged out after a backend 401")
	}
}

func TestAdminRequired(t *testing.T) {
	backend := &stubBackend{user: &models.UserPublic{UID: "u1", Role: "user"}}
	m := newTestManager(backend)

	router := gin.New()
	router.Use(Session(m, testSessionConfig))
	router.GET("/ui/api/users", AuthRequired(m), AdminRequired(), func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	w := httptest.NewRecorder()
	req, _ := http.NewRequest("GET", "/ui/api/users", nil)
	req.AddCookie(loggedInCookie(t, m))
	router.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Errorf("expected 403 for a non-admin, got %d", w.Code)
	}

	backend.user.Role = "admin"
	w = httptest.NewRecorder()
	req, _ = http.NewRequest("GET", "/ui/api/users", nil)
	req.AddCookie(loggedInCookie(t, m))
	router.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected 200 for an admin, got %d", w.Code)
	}
}

func TestSetupGates(t *testing.T) {
	tests := []struct {
		name      string
		completed bool
		path      string
		wantCode  int
		wantLoc   string
	}{
		{"wizard open before setup", false, "/setup", http.StatusOK, ""},
		{"wizard closed after setup", true, "/setup", http.StatusFound, LoginPath},
		{"login redirects to wizard", false, "/login", http.StatusFound, SetupPath},
		{"login open after setup", true, "/login", http.StatusOK, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newTestManager(&stubBackend{setup: tt.completed})
			router := gin.New()
			router.Use(Session(m, testSessionConfig))
			router.GET("/setup", SetupGuard(), func(c *gin.Context) { c.String(http.StatusOK, "wizard") })
			router.GET("/login", SetupRequired(), func(c *gin.Context) { c.String(http.StatusOK, "login") })

			w := httptest.NewRecorder()
			req, _ := http.NewRequest("GET", tt.path, nil)
			router.ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, w.Code)
			}
			if tt.wantLoc != "" && w.Header().Get("Location") != tt.wantLoc {
				t.Errorf("expected redirect to %s, got %s", tt.wantLoc, w.Header().Get("Location"))
			}
		})
	}
}

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		path   string
		header map[string]string
		want   bool
	}{
		{"/ui/api/users", nil, true},
		{"/setup/test-db", map[string]string{"Content-Type": "application/json"}, true},
		{"/setup/next", map[string]string{"X-Requested-With": "XMLHttpRequest"}, true},
		{"/settings", map[string]string{"Accept": "text/html"}, false},
	}
	for _, tt := range tests {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Request, _ = http.NewRequest("POST", tt.path, nil)
		for k, v := range tt.header {
			c.Request.Header.Set(k, v)
		}
		if got := WantsJSON(c); got != tt.want {
			t.Errorf("%s %v: got %v, want %v", tt.path, tt.header, got, tt.want)
		}
	}
}
