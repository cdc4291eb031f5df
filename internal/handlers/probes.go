package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/cortexui/dashboard/internal/middleware"
	"github.com/cortexui/dashboard/internal/models"
	"github.com/cortexui/dashboard/internal/notify"
	"github.com/cortexui/dashboard/internal/probe"
	"github.com/cortexui/dashboard/internal/session"
	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/cortexui/dashboard/pkg/response"
	"github.com/gin-gonic/gin"
)

// ProbeHandler runs connection tests for the wizard and the settings pages.
// Each result is recorded in the session's probe ledger and, when the
// parameters still match, in the wizard.
type ProbeHandler struct {
	*Deps
}

func NewProbeHandler(d *Deps) *ProbeHandler {
	return &ProbeHandler{Deps: d}
}

type probeMessages struct {
	successTitle, successMessage string
	failureTitle, failureMessage string
	errorKind                    notify.Kind
	errorTitle, errorMessage     string
}

var (
	databaseMessages = probeMessages{
		successTitle: "Verbindung erfolgreich", successMessage: "Die Datenbankverbindung wurde erfolgreich getestet.",
		failureTitle: "Verbindung fehlgeschlagen", failureMessage: "Die Datenbankverbindung konnte nicht hergestellt werden.",
		errorKind: notify.Warning, errorTitle: "Fehler beim Testen", errorMessage: "Ein unerwarteter Fehler ist aufgetreten.",
	}
	matomoMessages = probeMessages{
		successTitle: "Verbindung erfolgreich", successMessage: "Die Verbindung zu Matomo wurde erfolgreich getestet.",
		failureTitle: "Verbindung fehlgeschlagen", failureMessage: "Die Verbindung zu Matomo konnte nicht hergestellt werden.",
		errorKind: notify.Warning, errorTitle: "Fehler beim Testen", errorMessage: "Ein unerwarteter Fehler ist aufgetreten.",
	}
	smtpMessages = probeMessages{
		successTitle: "SMTP-Verbindung erfolgreich", successMessage: "Die E-Mail-Konfiguration wurde erfolgreich getestet.",
		failureTitle: "SMTP-Verbindung fehlgeschlagen", failureMessage: "Überprüfen Sie Ihre Konfiguration und versuchen Sie es erneut.",
		errorKind: notify.Error, errorTitle: "SMTP-Verbindung fehlgeschlagen", errorMessage: "Überprüfen Sie Ihre Konfiguration und versuchen Sie es erneut.",
	}
)

// report queues the notification for outcome, replacing the one left by the
// previous run of the same probe.
func (m probeMessages) report(app *session.AppContext, kind string, outcome probe.Outcome) {
	switch outcome {
	case probe.Passed:
		app.NotifyProbe(kind, notify.Success, m.successTitle, m.successMessage)
	case probe.Failed:
		app.NotifyProbe(kind, notify.Error, m.failureTitle, m.failureMessage)
	default:
		app.NotifyProbe(kind, m.errorKind, m.errorTitle, m.errorMessage)
	}
}

const noTLSMessage = "Der Server bietet kein TLS an. Zugangsdaten werden nur verschlüsselt übertragen."

func bindProbe(c *gin.Context, req interface{ Validate() error }) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		response.BadRequest(c, "INVALID_BODY", "Ungültige Anfrage")
		return false
	}
	if err := req.Validate(); err != nil {
		response.BadRequest(c, "MISSING_FIELDS", err.Error())
		return false
	}
	return true
}

// TestDatabase checks a MongoDB connection
// POST /setup/test-db
func (h *ProbeHandler) TestDatabase(c *gin.Context) {
	var req probe.DatabaseRequest
	if !bindProbe(c, &req) {
		return
	}
	guard(c, "probe-db", func() {
		app := middleware.App(c)

		err := h.DatabaseProbe.Check(c.Request.Context(), req)
		outcome := probe.OutcomeOf(err)
		passed := outcome == probe.Passed

		app.RecordProbe(session.ProbeDatabase, session.Fingerprint(req.URI, req.DBName), passed)
		app.Wizard.RecordDatabaseProbe(models.DatabaseConfig{URI: req.URI, DBName: req.DBName}, passed)
		databaseMessages.report(app, session.ProbeDatabase, outcome)

		if !passed {
			logger.Info().Err(err).Str("outcome", outcome.String()).Msg("database probe failed")
			c.JSON(http.StatusInternalServerError, response.Response{Status: "CONNECTION_FAILED", Message: "Verbindung fehlgeschlagen"})
			return
		}
		response.SuccessMessage(c, "Verbindung erfolgreich", nil)
	})
}

// TestSMTP sends a test mail
// POST /setup/test-smtp
func (h *ProbeHandler) TestSMTP(c *gin.Context) {
	var req probe.SMTPRequest
	if !bindProbe(c, &req) {
		return
	}
	guard(c, "probe-smtp", func() {
		app := middleware.App(c)

		if req.To == "" {
			if admin := app.Wizard.Data().AdminUser.Email; admin != "" && !app.Authenticated() {
				req.To = admin
			} else if u := app.User(); u != nil {
				req.To = u.Email
			}
		}

		err := h.SMTPProbe.Send(c.Request.Context(), req)
		outcome := probe.OutcomeOf(err)
		passed := outcome == probe.Passed

		app.RecordProbe(session.ProbeSMTP, smtpFingerprint(req.Host, int(req.Port), req.User, req.Pass, req.From), passed)
		app.Wizard.RecordSMTPProbe(models.SMTPSettings{
			Host:        req.Host,
			Port:        int(req.Port),
			Username:    req.User,
			Password:    req.Pass,
			SenderEmail: req.From,
		}, passed)

		if errors.Is(err, probe.ErrNoTLS) {
			app.NotifyProbe(session.ProbeSMTP, notify.Error, smtpMessages.failureTitle, noTLSMessage)
			logger.Info().Err(err).Str("host", req.Host).Msg("smtp server offers no tls")
			c.JSON(http.StatusInternalServerError, response.Response{Status: "SMTP_NO_TLS", Message: probe.ErrNoTLS.Error()})
			return
		}
		smtpMessages.report(app, session.ProbeSMTP, outcome)

		if !passed {
			logger.Info().Err(err).Str("host", req.Host).Msg("smtp probe failed")
			c.JSON(http.StatusInternalServerError, response.Response{Status: "SMTP_FAILED", Message: "SMTP-Verbindung fehlgeschlagen"})
			return
		}
		response.SuccessMessage(c, "E-Mail erfolgreich gesendet", nil)
	})
}

// TestMatomo verifies the Matomo site and token
// POST /setup/test-matomo
func (h *ProbeHandler) TestMatomo(c *gin.Context) {
	var req probe.MatomoRequest
	if !bindProbe(c, &req) {
		return
	}
	guard(c, "probe-matomo", func() {
		app := middleware.App(c)

		site, err := h.MatomoProbe.Check(c.Request.Context(), req)
		outcome := probe.OutcomeOf(err)
		passed := outcome == probe.Passed

		app.RecordProbe(session.ProbeMatomo, session.Fingerprint(req.URL, req.SiteID, req.APIKey), passed)
		app.Wizard.RecordMatomoProbe(models.Analytics{
			MatomoURL:    req.URL,
			MatomoSiteID: req.SiteID,
			MatomoAPIKey: req.APIKey,
		}, passed)
		matomoMessages.report(app, session.ProbeMatomo, outcome)

		switch {
		case passed:
			response.SuccessMessage(c, "Verbindung erfolgreich", site)
		case errors.Is(err, probe.ErrMatomoRejected):
			response.BadRequest(c, "MATOMO_REJECTED", "Matomo hat die Seite nicht bestätigt")
		default:
			logger.Info().Err(err).Str("url", req.URL).Msg("matomo probe failed")
			response.ServerError(c, "Matomo ist nicht erreichbar")
		}
	})
}

func smtpFingerprint(host string, port int, user, pass, from string) string {
	return session.Fingerprint(host, strconv.Itoa(port), user, pass, from)
}

func m365Fingerprint(tenantID, clientID, secret string) string {
	return session.Fingerprint(tenantID, clientID, secret)
}
