package handlers

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cortexui/dashboard/internal/apiclient"
	"github.com/cortexui/dashboard/internal/middleware"
	"github.com/cortexui/dashboard/internal/models"
	"github.com/cortexui/dashboard/internal/notify"
	"github.com/cortexui/dashboard/internal/services"
	"github.com/cortexui/dashboard/internal/session"
	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/cortexui/dashboard/pkg/response"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// SettingsHandler serves the settings page and the save endpoints behind it.
// Every save first compares against the stored value and sends nothing when
// they are equal.
type SettingsHandler struct {
	*Deps
}

func NewSettingsHandler(d *Deps) *SettingsHandler {
	return &SettingsHandler{Deps: d}
}

// settingsPage is the data of settings.html.
type settingsPage struct {
	Database   *apiclient.DatabaseSettings `json:"database,omitempty"`
	Mail       *models.MailServer          `json:"mail,omitempty"`
	Analytics  *models.Analytics           `json:"analytics,omitempty"`
	WhiteLabel *models.WhiteLabelConfig    `json:"whiteLabel,omitempty"`
	Backup     *backupView                 `json:"backup,omitempty"`
	PublicKeys []models.PublicKey          `json:"publicKeys"`
	Errors     map[string]string           `json:"errors,omitempty"`
	License    template.HTML               `json:"-"`
}

// Page renders the settings page with every section loaded concurrently. A
// section that fails to load is shown with an error instead.
// GET /settings
func (h *SettingsHandler) Page(c *gin.Context) {
	app := middleware.App(c)
	token := app.Token()

	data := &settingsPage{}
	var mu sync.Mutex
	fail := func(section string, err error) error {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			return err
		}
		logger.Warn().Err(err).Str("section", section).Msg("settings section unavailable")
		mu.Lock()
		defer mu.Unlock()
		if data.Errors == nil {
			data.Errors = make(map[string]string)
		}
		data.Errors[section] = "Fehler beim Abruf der Daten"
		return nil
	}

	g, ctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		v, err := h.API.DatabaseSettings(ctx, token)
		if err != nil {
			return fail("database", err)
		}
		mu.Lock()
		data.Database = v
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		v, err := h.API.MailSettings(ctx, token)
		if err != nil {
			app.Queue.Notify(notify.Error, "Fehler beim Abruf der Daten", "Die E-Mail Einstellungen konnten nicht geladen werden.")
			return fail("mail", err)
		}
		mu.Lock()
		data.Mail = v
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		v, err := h.API.AnalyticsSettings(ctx, token)
		if err != nil {
			return fail("analytics", err)
		}
		mu.Lock()
		data.Analytics = v
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		v, err := h.API.WhiteLabel(ctx)
		if err != nil {
			return fail("whiteLabel", err)
		}
		mu.Lock()
		data.WhiteLabel = v
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		v, err := loadBackupView(ctx, h.API, token, time.Now())
		if err != nil {
			return fail("backup", err)
		}
		mu.Lock()
		data.Backup = v
		mu.Unlock()
		return nil
	})
	g.Go(func() error {
		keys, err := h.API.ListPublicKeys(ctx, token)
		if err != nil {
			return fail("publicKeys", err)
		}
		app.SetPublicKeys(keys)
		mu.Lock()
		data.PublicKeys = keys
		mu.Unlock()
		return nil
	})
	if err := g.Wait(); err != nil {
		middleware.HandleUnauthorized(c, h.Sessions, err)
		return
	}

	if license, err := services.LicenseHTML(); err == nil {
		data.License = license
	}
	h.page(c, http.StatusOK, "settings.html", "Einstellungen", nil, data)
}

// unchanged answers a save whose value equals the stored one.
func unchanged(c *gin.Context) {
	middleware.App(c).Queue.Notify(notify.Info, "Keine Änderungen", "Die Konfiguration entspricht dem gespeicherten Stand.")
	c.JSON(http.StatusOK, response.Response{IsOk: true, Status: "UNCHANGED", Message: "Keine Änderungen"})
}

// requireProbe answers 412 unless the last probe of kind passed with fingerprint.
func requireProbe(c *gin.Context, kind, fingerprint string) bool {
	if middleware.App(c).ProbePassed(kind, fingerprint) {
		return true
	}
	response.PreconditionFailed(c, "NOT_TESTED", "Bitte testen Sie die Verbindung vor dem Speichern")
	return false
}

// save runs fn under the section's in-flight guard and reports the outcome
// as a notification.
func (h *SettingsHandler) save(c *gin.Context, section, label string, fn func(ctx context.Context, token string) error) {
	app := middleware.App(c)
	guard(c, "settings-"+section, func() {
		if err := fn(c.Request.Context(), app.Token()); err != nil {
			if !errors.Is(err, apiclient.ErrUnauthorized) {
				app.Queue.Notify(notify.Warning, "Konfiguration nicht gespeichert",
					"Ihre "+label+" Konfiguration konnte nicht vom Server verarbeitet werden")
			}
			h.backendError(c, err, "Die Konfiguration konnte nicht gespeichert werden")
			return
		}
		app.Queue.Notify(notify.Success, "Konfiguration gespeichert",
			"Ihre "+label+" Konfiguration wurde erfolgreich an den Server übermittelt")
		response.SuccessMessage(c, "Konfiguration gespeichert", nil)
	})
}

// current loads the stored value for comparison. Failures other than 401
// are logged and treated as "nothing stored".
func current[T any](c *gin.Context, h *SettingsHandler, load func(ctx context.Context, token string) (*T, error)) (*T, bool) {
	v, err := load(c.Request.Context(), middleware.App(c).Token())
	if err != nil {
		if middleware.HandleUnauthorized(c, h.Sessions, err) {
			return nil, false
		}
		logger.Debug().Err(err).Msg("stored settings unavailable, saving without comparison")
		return nil, true
	}
	return v, true
}

// GetDatabase
// GET /ui/api/settings/database
func (h *SettingsHandler) GetDatabase(c *gin.Context) {
	v, err := h.API.DatabaseSettings(c.Request.Context(), middleware.App(c).Token())
	if err != nil {
		h.backendError(c, err, "Fehler beim Abruf der Daten")
		return
	}
	response.Success(c, v)
}

// SaveDatabase stores the connection after it passed a probe in this session
// PUT /ui/api/settings/database
func (h *SettingsHandler) SaveDatabase(c *gin.Context) {
	var req apiclient.DatabaseSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "INVALID_BODY", "Ungültige Anfrage")
		return
	}
	req.URI = strings.TrimSpace(req.URI)
	req.DBName = strings.TrimSpace(req.DBName)
	if req.URI == "" || req.DBName == "" {
		response.BadRequest(c, "MISSING_FIELDS", "URI und Datenbankname sind erforderlich")
		return
	}

	stored, ok := current(c, h, h.API.DatabaseSettings)
	if !ok {
		return
	}
	if stored != nil && services.Unchanged(stored, req) {
		unchanged(c)
		return
	}
	if !requireProbe(c, session.ProbeDatabase, session.Fingerprint(req.URI, req.DBName)) {
		return
	}
	h.save(c, "database", "Datenbank", func(ctx context.Context, token string) error {
		_, err := h.API.UpdateDatabaseSettings(ctx, token, req)
		return err
	})
}

// GetMail
// GET /ui/api/settings/mail
func (h *SettingsHandler) GetMail(c *gin.Context) {
	app := middleware.App(c)
	v, err := h.API.MailSettings(c.Request.Context(), app.Token())
	if err != nil {
		if !errors.Is(err, apiclient.ErrUnauthorized) {
			app.Queue.Notify(notify.Error, "Fehler beim Abruf der Daten", "Die E-Mail Einstellungen konnten nicht geladen werden.")
		}
		h.backendError(c, err, "Fehler beim Abruf der Daten")
		return
	}
	response.Success(c, v)
}

// comparableMail drops the probe flags, which the stored value does not carry reliably.
func comparableMail(m models.MailServer) models.MailServer {
	out := m
	if m.SMTP != nil {
		s := *m.SMTP
		s.Tested = false
		out.SMTP = &s
	}
	if m.Microsoft365 != nil {
		ms := *m.Microsoft365
		ms.Authenticated = false
		out.Microsoft365 = &ms
	}
	return out
}

// SaveMail stores the mail transport. SMTP settings must have passed a
// probe, a Microsoft 365 tenant must have authenticated.
// POST /ui/api/settings/mail
func (h *SettingsHandler) SaveMail(c *gin.Context) {
	var req models.MailServer
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "INVALID_BODY", "Ungültige Anfrage")
		return
	}
	if err := validate.Struct(req); err != nil {
		response.BadRequest(c, "VALIDATION_FAILED", validationMessage(err))
		return
	}

	var kind, fingerprint string
	switch req.Type {
	case models.MailTypeSMTP:
		s := req.SMTP
		if s == nil || s.Host == "" || s.Port <= 0 || s.Username == "" || s.Password == "" {
			response.BadRequest(c, "MISSING_FIELDS", "Host, Port, Benutzer und Passwort sind erforderlich")
			return
		}
		req.Microsoft365 = nil
		kind, fingerprint = session.ProbeSMTP, smtpFingerprint(s.Host, s.Port, s.Username, s.Password, s.SenderEmail)
	case models.MailTypeMicrosoft365:
		m := req.Microsoft365
		if m == nil || m.TenantID == "" || m.ClientID == "" || m.SecretKey == "" {
			response.BadRequest(c, "MISSING_FIELDS", "Tenant ID, Client ID und Client Secret sind erforderlich")
			return
		}
		req.SMTP = nil
		kind, fingerprint = session.ProbeM365, m365Fingerprint(m.TenantID, m.ClientID, m.SecretKey)
	}

	stored, ok := current(c, h, h.API.MailSettings)
	if !ok {
		return
	}
	if stored != nil && services.Unchanged(comparableMail(*stored), comparableMail(req)) {
		unchanged(c)
		return
	}
	if !requireProbe(c, kind, fingerprint) {
		return
	}
	if req.SMTP != nil {
		req.SMTP.Tested = true
	}
	if req.Microsoft365 != nil {
		req.Microsoft365.Authenticated = true
	}
	h.save(c, "mail", "E-Mail", func(ctx context.Context, token string) error {
		_, err := h.API.SaveMailSettings(ctx, token, req)
		return err
	})
}

// GetAnalytics
// GET /ui/api/settings/analytics
func (h *SettingsHandler) GetAnalytics(c *gin.Context) {
	v, err := h.API.AnalyticsSettings(c.Request.Context(), middleware.App(c).Token())
	if err != nil {
		h.backendError(c, err, "Fehler beim Abruf der Daten")
		return
	}
	response.Success(c, v)
}

// SaveAnalytics stores the Matomo settings. Clearing all fields needs no probe.
// POST /ui/api/settings/analytics
func (h *SettingsHandler) SaveAnalytics(c *gin.Context) {
	var req models.Analytics
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "INVALID_BODY", "Ungültige Anfrage")
		return
	}
	req.ConnectionTested = false

	stored, ok := current(c, h, h.API.AnalyticsSettings)
	if !ok {
		return
	}
	if stored != nil {
		cmp := *stored
		cmp.ConnectionTested = false
		if services.Unchanged(cmp, req) {
			unchanged(c)
			return
		}
	}
	if req.Configured() {
		if !requireProbe(c, session.ProbeMatomo, session.Fingerprint(req.MatomoURL, req.MatomoSiteID, req.MatomoAPIKey)) {
			return
		}
		req.ConnectionTested = true
	}
	h.save(c, "analytics", "Matomo", func(ctx context.Context, token string) error {
		_, err := h.API.SaveAnalyticsSettings(ctx, token, req)
		return err
	})
}

// GetWhiteLabel
// GET /ui/api/settings/white-label
func (h *SettingsHandler) GetWhiteLabel(c *gin.Context) {
	v, err := h.API.WhiteLabel(c.Request.Context())
	if err != nil {
		h.backendError(c, err, "Fehler beim Abruf der Daten")
		return
	}
	response.Success(c, v)
}

func (h *SettingsHandler) saveWhiteLabel(c *gin.Context, wl models.WhiteLabelConfig, data any) {
	cleaned, err := services.CleanObject(wl)
	if err != nil {
		response.BadRequest(c, "INVALID_BODY", "Ungültige Anfrage")
		return
	}
	app := middleware.App(c)
	guard(c, "settings-white-label", func() {
		ctx := c.Request.Context()
		if _, err := h.API.UpdateWhiteLabel(ctx, app.Token(), cleaned); err != nil {
			if !errors.Is(err, apiclient.ErrUnauthorized) {
				app.Queue.Notify(notify.Warning, "Konfiguration nicht gespeichert",
					"Ihre WhiteLabel Konfiguration konnte nicht vom Server verarbeitet werden")
			}
			h.backendError(c, err, "Die Konfiguration konnte nicht gespeichert werden")
			return
		}
		if err := app.RefreshWhiteLabel(ctx); err != nil {
			logger.Warn().Err(err).Msg("reload white label after save failed")
		}
		app.Queue.Notify(notify.Success, "Konfiguration gespeichert",
			"Ihre WhiteLabel Konfiguration wurde erfolgreich an den Server übermittelt")
		response.SuccessMessage(c, "Konfiguration gespeichert", data)
	})
}

// SaveWhiteLabel
// PUT /ui/api/settings/white-label
func (h *SettingsHandler) SaveWhiteLabel(c *gin.Context) {
	var req models.WhiteLabelConfig
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "INVALID_BODY", "Ungültige Anfrage")
		return
	}
	stored, ok := current(c, h, func(ctx context.Context, _ string) (*models.WhiteLabelConfig, error) {
		return h.API.WhiteLabel(ctx)
	})
	if !ok {
		return
	}
	if stored != nil && services.Unchanged(stored, req) {
		unchanged(c)
		return
	}
	h.saveWhiteLabel(c, req, nil)
}

// UploadLogo replaces the logo of the stored branding
// POST /ui/api/settings/white-label/logo
func (h *SettingsHandler) UploadLogo(c *gin.Context) {
	app := middleware.App(c)
	logo, ok := readLogo(c, app.Queue)
	if !ok {
		return
	}
	stored, ok := current(c, h, func(ctx context.Context, _ string) (*models.WhiteLabelConfig, error) {
		return h.API.WhiteLabel(ctx)
	})
	if !ok {
		return
	}
	wl := models.WhiteLabelConfig{}
	if stored != nil {
		wl = *stored
	}
	wl.Logo = logo
	h.saveWhiteLabel(c, wl, logo)
}
