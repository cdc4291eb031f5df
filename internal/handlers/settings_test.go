package handlers

import (
	"net/http"
	"testing"

	"github.com/cortexui/dashboard/internal/session"
)

const storedAnalytics = `{"isOk":true,"data":{"matomoUrl":"https://m.example.com","matomoSiteId":"1","matomoApiKey":"k","connectionTested":true}}`

func TestSaveAnalyticsUnchanged(t *testing.T) {
	env := newTestEnv(t)
	env.backend.handle("GET /api/v1/settings/analytics", jsonReply(http.StatusOK, storedAnalytics))

	w := env.do(http.MethodPost, "/ui/api/settings/analytics", map[string]string{
		"matomoUrl": "https://m.example.com", "matomoSiteId": "1", "matomoApiKey": "k",
	})
	if w.Code != http.StatusOK || decode(t, w).Status != "UNCHANGED" {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	if env.backend.seen("POST /api/v1/settings/analytics") {
		t.Error("unchanged settings must not be sent")
	}
	if !env.hasNotification("Keine Änderungen") {
		t.Error("expected info notification")
	}
}

func TestSaveAnalyticsRequiresProbe(t *testing.T) {
	env := newTestEnv(t)
	env.backend.handle("GET /api/v1/settings/analytics", jsonReply(http.StatusOK, storedAnalytics))
	env.backend.handle("POST /api/v1/settings/analytics", jsonReply(http.StatusOK, `{"isOk":true}`))

	body := map[string]string{"matomoUrl": "https://m.example.com", "matomoSiteId": "2", "matomoApiKey": "k"}

	w := env.do(http.MethodPost, "/ui/api/settings/analytics", body)
	if w.Code != http.StatusPreconditionFailed || decode(t, w).Status != "NOT_TESTED" {
		t.Fatalf("untested: got %d %s", w.Code, w.Body.String())
	}

	env.app.RecordProbe(session.ProbeMatomo, session.Fingerprint(body["matomoUrl"], body["matomoSiteId"], body["matomoApiKey"]), true)
	w = env.do(http.MethodPost, "/ui/api/settings/analytics", body)
	if w.Code != http.StatusOK {
		t.Fatalf("tested: got %d %s", w.Code, w.Body.String())
	}
	if !env.hasNotification("Konfiguration gespeichert") {
		t.Error("expected success notification")
	}
}

func TestSaveAnalyticsClearNeedsNoProbe(t *testing.T) {
	env := newTestEnv(t)
	env.backend.handle("GET /api/v1/settings/analytics", jsonReply(http.StatusOK, storedAnalytics))
	env.backend.handle("POST /api/v1/settings/analytics", jsonReply(http.StatusOK, `{"isOk":true}`))

	w := env.do(http.MethodPost, "/ui/api/settings/analytics", map[string]string{})
	if w.Code != http.StatusOK {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	if !env.backend.seen("POST /api/v1/settings/analytics") {
		t.Error("cleared settings should be saved")
	}
}

func TestSaveAnalyticsBackendFailure(t *testing.T) {
	env := newTestEnv(t)
	env.backend.handle("GET /api/v1/settings/analytics", jsonReply(http.StatusOK, storedAnalytics))
	env.backend.handle("POST /api/v1/settings/analytics", jsonReply(http.StatusOK, `{"isOk":false,"status":"INVALID","message":"nope"}`))

	w := env.do(http.MethodPost, "/ui/api/settings/analytics", map[string]string{})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
	if !env.hasNotification("Konfiguration nicht gespeichert") {
		t.Error("expected warning notification")
	}
}
