package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/cortexui/dashboard/internal/notify"
)

func TestNotificationsListAndDismiss(t *testing.T) {
	env := newTestEnv(t)
	n := env.app.Queue.Notify(notify.Info, "Hallo", "Welt")

	w := env.do(http.MethodGet, "/notifications", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("list: %d", w.Code)
	}
	var pending []notify.Notification
	if err := json.Unmarshal(decode(t, w).Data, &pending); err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].ID != n.ID {
		t.Fatalf("pending = %+v", pending)
	}

	if w := env.do(http.MethodDelete, "/notifications/"+n.ID, nil); w.Code != http.StatusNoContent {
		t.Fatalf("dismiss: %d", w.Code)
	}
	if w := env.do(http.MethodDelete, "/notifications/"+n.ID, nil); w.Code != http.StatusNotFound {
		t.Fatalf("second dismiss: %d", w.Code)
	}
}
