package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cortexui/dashboard/internal/apiclient"
	"github.com/cortexui/dashboard/internal/config"
	"github.com/cortexui/dashboard/internal/handlers"
	"github.com/cortexui/dashboard/internal/m365"
	"github.com/cortexui/dashboard/internal/models"
	"github.com/cortexui/dashboard/internal/services"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testServices() *appServices {
	cfg := &config.Config{
		Server:  config.ServerConfig{PublicURL: "http://localhost:3000"},
		Session: config.SessionConfig{CookieName: "cortexui_session", TTL: time.Hour},
	}
	api := apiclient.New("http://127.0.0.1:0", time.Second)
	hub := services.NewStatusHub()
	return &appServices{
		cfg: cfg,
		deps: &handlers.Deps{
			Config:  cfg,
			API:     api,
			Hub:     hub,
			Monitor: services.NewBackendMonitor(api, time.Second, hub),
			Broker:  m365.NewBroker(cfg.Server.PublicURL, time.Second, api),
		},
		audit: models.NewAuditStore(nil),
	}
}

func TestRegisterRoutes(t *testing.T) {
	r := gin.New()
	registerRoutes(r, testServices())

	registered := map[string]bool{}
	for _, route := range r.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	want := []string{
		"GET /health",
		"GET /login",
		"POST /login",
		"POST /logout",
		"GET /setup",
		"POST /setup/data/:section",
		"POST /setup/import",
		"POST /setup/test-db",
		"POST /setup/m365/start",
		"GET /setup/m365/popup",
		"GET /events/notifications",
		"DELETE /notifications/:id",
		"GET /",
		"GET /users",
		"GET /settings",
		"PUT /ui/api/public-keys/:uid/toggle",
		"DELETE /ui/api/public-keys/:uid",
		"GET /ui/api/backup/status",
		"GET /ui/api/backup/file/:file",
		"POST /ui/api/probes/matomo",
	}
	for _, w := range want {
		if !registered[w] {
			t.Errorf("route %s not registered", w)
		}
	}
}

func TestStaticAssetsServed(t *testing.T) {
	r := gin.New()
	registerRoutes(r, testServices())

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/static/app.js", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /static/app.js = %d", w.Code)
	}
}
