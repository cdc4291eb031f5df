package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/cortexui/dashboard/internal/m365"
	"github.com/cortexui/dashboard/internal/middleware"
	"github.com/cortexui/dashboard/internal/models"
	"github.com/cortexui/dashboard/internal/notify"
	"github.com/cortexui/dashboard/internal/session"
	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/cortexui/dashboard/pkg/response"
	"github.com/gin-gonic/gin"
)

// M365Handler drives the Microsoft 365 consent popup.
type M365Handler struct {
	*Deps
}

func NewM365Handler(d *Deps) *M365Handler {
	return &M365Handler{Deps: d}
}

type popupPage struct {
	OK      bool
	Message string
	State   string
}

// Start registers an authorization attempt
// POST /setup/m365/start
func (h *M365Handler) Start(c *gin.Context) {
	var creds m365.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		response.BadRequest(c, "INVALID_BODY", "Ungültige Anfrage")
		return
	}
	guard(c, "m365-start", func() {
		app := middleware.App(c)

		state, popupURL, err := h.Broker.Start(app.ID, creds)
		if err != nil {
			response.BadRequest(c, "MISSING_FIELDS", "Tenant ID, Client ID und Client Secret sind erforderlich")
			return
		}
		response.Success(c, gin.H{"state": state, "popupUrl": popupURL})
	})
}

// Popup sends the popup to Azure AD, or handles the redirect back from it.
// GET /setup/m365/popup
func (h *M365Handler) Popup(c *gin.Context) {
	app := middleware.App(c)
	state := c.Query("state")
	code := c.Query("code")
	authErr := c.Query("error_description")
	if authErr == "" {
		authErr = c.Query("error")
	}

	if code == "" && authErr == "" {
		target, err := h.Broker.AuthorizeURL(app.ID, state)
		if err != nil {
			h.popup(c, http.StatusBadRequest, popupPage{Message: "Unbekannte oder abgelaufene Anmeldung", State: state})
			return
		}
		c.Redirect(http.StatusFound, target)
		return
	}

	res, err := h.Broker.Complete(c.Request.Context(), app.ID, state, code, authErr)
	switch {
	case errors.Is(err, m365.ErrUnknownState):
		h.popup(c, http.StatusBadRequest, popupPage{Message: "Unbekannte oder abgelaufene Anmeldung", State: state})
		return
	case errors.Is(err, m365.ErrAlreadySettled):
		logger.Debug().Str("state", state).Msg("m365 redirect for settled attempt")
	}
	h.popup(c, http.StatusOK, popupPage{OK: res.OK, Message: res.Message, State: state})
}

func (h *M365Handler) popup(c *gin.Context, status int, p popupPage) {
	c.Status(status)
	if err := h.Renderer.renderFragment(c.Writer, "m365_popup.html", p); err != nil {
		logger.Error().Err(err).Msg("render m365 popup failed")
	}
}

// Result waits for the attempt to settle
// GET /setup/m365/result
func (h *M365Handler) Result(c *gin.Context) {
	app := middleware.App(c)
	state := c.Query("state")

	res, creds, err := h.Broker.Await(c.Request.Context(), app.ID, state)
	switch {
	case errors.Is(err, m365.ErrUnknownState):
		response.NotFound(c, "Unbekannte Anmeldung")
		return
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return
	}

	app.RecordProbe(session.ProbeM365, m365Fingerprint(creds.TenantID, creds.ClientID, creds.ClientSecret), res.OK)
	app.Wizard.RecordM365Result(models.M365Settings{
		TenantID:  creds.TenantID,
		ClientID:  creds.ClientID,
		SecretKey: creds.ClientSecret,
	}, res.OK, res.Email, res.DisplayName)

	if !res.OK {
		app.NotifyProbe(session.ProbeM365, notify.Error, "Microsoft 365 Authentifizierung fehlgeschlagen", "Überprüfen Sie Ihre Microsoft 365 Konfiguration.")
		status := http.StatusBadRequest
		code := "M365_FAILED"
		if errors.Is(err, m365.ErrTimeout) {
			status = http.StatusRequestTimeout
			code = "M365_TIMEOUT"
		}
		c.JSON(status, response.Response{Status: code, Message: res.Message, Data: res})
		return
	}

	app.NotifyProbe(session.ProbeM365, notify.Success, "Microsoft 365 Authentifizierung erfolgreich", "Die Verbindung zu Microsoft 365 wurde hergestellt.")
	response.SuccessMessage(c, "Microsoft 365 verbunden", res)
}
