package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/cortexui/dashboard/internal/models"
)

const twoKeys = `{"isOk":true,"data":[
	{"uid":"k1","name":"ci","isActive":true,"allowedIps":["*"]},
	{"uid":"k2","name":"old","isActive":false,"allowedIps":[]}
]}`

func findKey(keys []models.PublicKey, uid string) (models.PublicKey, bool) {
	for _, k := range keys {
		if k.UID == uid {
			return k, true
		}
	}
	return models.PublicKey{}, false
}

func TestPublicKeyList(t *testing.T) {
	env := newTestEnv(t)
	env.backend.handle("GET /api/v1/system/public-keys", jsonReply(http.StatusOK, twoKeys))

	w := env.do(http.MethodGet, "/ui/api/public-keys", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d %s", w.Code, w.Body.String())
	}
	var views []publicKeyView
	if err := json.Unmarshal(decode(t, w).Data, &views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 || views[0].Deletable || !views[1].Deletable {
		t.Errorf("views = %+v", views)
	}
	if len(env.app.PublicKeys()) != 2 {
		t.Errorf("list should be cached in the session")
	}
}

func TestPublicKeyCreateKeepsPlaintextOutOfCache(t *testing.T) {
	env := newTestEnv(t)
	var sent models.PublicKey
	env.backend.handle("POST /api/v1/system/public-keys", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&sent)
		jsonReply(http.StatusOK, `{"isOk":true,"publicKey":{"uid":"k9","name":"deploy","key":"plaintext","isActive":true}}`)(w, r)
	})

	w := env.do(http.MethodPost, "/ui/api/public-keys", map[string]interface{}{
		"name": "deploy", "allowedIps": "10.0.0.1,\n10.0.0.2", "metadata": `{"team":"ops"}`, "isActive": true,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("code = %d %s", w.Code, w.Body.String())
	}
	var view publicKeyView
	if err := json.Unmarshal(decode(t, w).Data, &view); err != nil {
		t.Fatal(err)
	}
	if view.Key != "plaintext" {
		t.Errorf("response should carry the plaintext key, got %q", view.Key)
	}
	cached, ok := findKey(env.app.PublicKeys(), "k9")
	if !ok || cached.Key != "" {
		t.Errorf("cached key = %+v", cached)
	}
	if len(sent.AllowedIPs) != 2 || sent.Metadata["team"] != "ops" {
		t.Errorf("sent = %+v", sent)
	}
	if !env.hasNotification("API-Schlüssel erstellt") {
		t.Error("expected success notification")
	}
}

func TestPublicKeyCreateRejectsBadMetadata(t *testing.T) {
	env := newTestEnv(t)
	w := env.do(http.MethodPost, "/ui/api/public-keys", map[string]interface{}{"name": "x", "metadata": "[1,2]"})
	if w.Code != http.StatusBadRequest || decode(t, w).Status != "INVALID_METADATA" {
		t.Fatalf("got %d %s", w.Code, w.Body.String())
	}
}

func TestPublicKeyToggle(t *testing.T) {
	env := newTestEnv(t)
	env.backend.handle("GET /api/v1/system/public-keys", jsonReply(http.StatusOK, twoKeys))
	env.backend.handle("PUT /api/v1/system/public-keys/k1", jsonReply(http.StatusOK, `{"isOk":true}`))

	w := env.do(http.MethodPut, "/ui/api/public-keys/k1/toggle", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d %s", w.Code, w.Body.String())
	}
	k, _ := findKey(env.app.PublicKeys(), "k1")
	if k.IsActive {
		t.Error("k1 should be inactive after toggle")
	}
}

func TestPublicKeyActivateRemovesDelete(t *testing.T) {
	env := newTestEnv(t)
	env.backend.handle("GET /api/v1/system/public-keys", jsonReply(http.StatusOK, twoKeys))
	env.backend.handle("PUT /api/v1/system/public-keys/k2", jsonReply(http.StatusOK, `{"isOk":true}`))

	w := env.do(http.MethodPut, "/ui/api/public-keys/k2/toggle", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d %s", w.Code, w.Body.String())
	}
	var view publicKeyView
	if err := json.Unmarshal(decode(t, w).Data, &view); err != nil {
		t.Fatal(err)
	}
	if !view.IsActive || view.Deletable {
		t.Errorf("view = %+v", view)
	}

	w = env.do(http.MethodDelete, "/ui/api/public-keys/k2", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("delete of active key: %d %s", w.Code, w.Body.String())
	}
	if env.backend.seen("DELETE /api/v1/system/public-keys/k2") {
		t.Error("active key must not reach the backend")
	}
}

func TestPublicKeyToggleRollsBack(t *testing.T) {
	env := newTestEnv(t)
	env.backend.handle("GET /api/v1/system/public-keys", jsonReply(http.StatusOK, twoKeys))
	env.backend.handle("PUT /api/v1/system/public-keys/k1", jsonReply(http.StatusInternalServerError, `{"detail":"boom"}`))

	w := env.do(http.MethodPut, "/ui/api/public-keys/k1/toggle", nil)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("code = %d %s", w.Code, w.Body.String())
	}
	k, _ := findKey(env.app.PublicKeys(), "k1")
	if !k.IsActive {
		t.Error("k1 should be restored to active")
	}
	if !env.hasNotification("Fehler") {
		t.Error("expected warning notification")
	}
}

func TestPublicKeyDelete(t *testing.T) {
	env := newTestEnv(t)
	env.backend.handle("GET /api/v1/system/public-keys", jsonReply(http.StatusOK, twoKeys))
	env.backend.handle("DELETE /api/v1/system/public-keys/k2", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		uid      string
		wantCode int
	}{
		{"k1", http.StatusConflict},
		{"missing", http.StatusNotFound},
		{"k2", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.uid, func(t *testing.T) {
			w := env.do(http.MethodDelete, "/ui/api/public-keys/"+tt.uid, nil)
			if w.Code != tt.wantCode {
				t.Fatalf("code = %d %s", w.Code, w.Body.String())
			}
		})
	}
	if _, ok := findKey(env.app.PublicKeys(), "k2"); ok {
		t.Error("k2 should be removed from the cache")
	}
	if env.backend.seen("DELETE /api/v1/system/public-keys/k1") {
		t.Error("active key must not reach the backend")
	}
}
