package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/cortexui/dashboard/internal/middleware"
	"github.com/cortexui/dashboard/internal/services"
	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/cortexui/dashboard/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// EventsHandler streams a session's notifications and backend status changes.
type EventsHandler struct {
	*Deps
}

func NewEventsHandler(d *Deps) *EventsHandler {
	return &EventsHandler{Deps: d}
}

func writeEvent(w io.Writer, event string, v any) bool {
	data, err := json.Marshal(v)
	if err != nil {
		logger.Error().Err(err).Str("event", event).Msg("SSE marshal error")
		return true
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return true
}

// Stream handles SSE connections. Pending notifications and the current
// backend status are sent first.
// GET /events/notifications
func (h *EventsHandler) Stream(c *gin.Context) {
	app := middleware.App(c)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	clientID := uuid.New().String()

	notifications := app.Queue.Subscribe(clientID)
	defer app.Queue.Unsubscribe(clientID)

	// nil when there is no hub, which never fires in the select below
	var statuses <-chan services.BackendStatus
	if h.Hub != nil {
		statuses = h.Hub.Subscribe(clientID)
		defer h.Hub.Unsubscribe(clientID)
	}

	logger.Debug().Str("client_id", clientID).Str("session_id", app.ID).Msg("SSE client connected")

	for _, n := range app.Queue.Pending() {
		writeEvent(c.Writer, "notification", n)
	}
	// The hub replays its last status on subscribe.
	if h.Hub == nil && h.Monitor != nil {
		writeEvent(c.Writer, "backend", h.Monitor.Status())
	}
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case n, ok := <-notifications:
			if !ok {
				return false
			}
			return writeEvent(w, "notification", n)
		case s, ok := <-statuses:
			if !ok {
				return false
			}
			return writeEvent(w, "backend", s)
		case <-c.Request.Context().Done():
			logger.Debug().Str("client_id", clientID).Msg("SSE client disconnected")
			return false
		}
	})
}

// List returns the pending notifications
// GET /notifications
func (h *EventsHandler) List(c *gin.Context) {
	response.Success(c, middleware.App(c).Queue.Pending())
}

// Dismiss removes one notification
// DELETE /notifications/:id
func (h *EventsHandler) Dismiss(c *gin.Context) {
	if !middleware.App(c).Queue.Dismiss(c.Param("id")) {
		response.NotFound(c, "Benachrichtigung nicht gefunden")
		return
	}
	c.Status(http.StatusNoContent)
}
