package handlers

import (
	"errors"
	"html/template"
	"io"
	"net/http"

	"github.com/cortexui/dashboard/internal/middleware"
	"github.com/cortexui/dashboard/internal/models"
	"github.com/cortexui/dashboard/internal/notify"
	"github.com/cortexui/dashboard/internal/services"
	"github.com/cortexui/dashboard/internal/wizard"
	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/cortexui/dashboard/pkg/response"
	"github.com/gin-gonic/gin"
)

type SetupHandler struct {
	*Deps
}

func NewSetupHandler(d *Deps) *SetupHandler {
	return &SetupHandler{Deps: d}
}

// stepInfo describes one entry of the progress bar.
type stepInfo struct {
	Key      string `json:"key"`
	Title    string `json:"title"`
	Template string `json:"template"`
	Ready    bool   `json:"ready"`
}

// wizardState is the wizard as seen by the setup page.
type wizardState struct {
	Step             string           `json:"step"`
	StepIndex        int              `json:"stepIndex"`
	StepCount        int              `json:"stepCount"`
	Title            string           `json:"title"`
	Progress         int              `json:"progress"`
	CanProceed       bool             `json:"canProceed"`
	IsLast           bool             `json:"isLast"`
	ConfigLoaded     bool             `json:"configLoaded"`
	Submitted        bool             `json:"submitted"`
	DownloadOnFinish bool             `json:"downloadOnFinish"`
	PasswordIssues   []string         `json:"passwordIssues,omitempty"`
	Steps            []stepInfo       `json:"steps"`
	Data             models.SetupData `json:"data"`
}

func stateOf(w *wizard.Wizard) wizardState {
	cur := w.Current()
	data := w.Data()

	st := wizardState{
		Step:             cur.String(),
		StepIndex:        cur.Index(),
		StepCount:        wizard.StepCount(),
		Title:            cur.Title(),
		Progress:         (cur.Index() + 1) * 100 / wizard.StepCount(),
		CanProceed:       w.CanProceed(),
		IsLast:           w.IsLast(),
		ConfigLoaded:     w.ConfigLoaded(),
		Submitted:        w.Submitted(),
		DownloadOnFinish: w.DownloadOnFinish(),
		Data:             data,
	}
	if cur == wizard.StepAdminUser && data.AdminUser.Password != "" {
		for _, issue := range wizard.PasswordIssues(data.AdminUser.Password) {
			st.PasswordIssues = append(st.PasswordIssues, issue.Error())
		}
		if len(st.PasswordIssues) == 0 && data.AdminUser.Password != w.PasswordConfirmation() {
			st.PasswordIssues = append(st.PasswordIssues, wizard.ErrPasswordsMismatch.Error())
		}
	}
	for _, s := range wizard.Steps() {
		st.Steps = append(st.Steps, stepInfo{Key: s.String(), Title: s.Title(), Template: s.Template(), Ready: w.StepReady(s)})
	}
	return st
}

type setupPage struct {
	State   wizardState
	License template.HTML
}

// Page renders the wizard
// GET /setup
func (h *SetupHandler) Page(c *gin.Context) {
	license, err := services.LicenseHTML()
	if err != nil {
		logger.Error().Err(err).Msg("failed to render license")
	}
	h.page(c, http.StatusOK, "setup.html", "Setup", nil, setupPage{
		State:   stateOf(middleware.App(c).Wizard),
		License: license,
	})
}

// State returns the wizard state
// GET /setup/state
func (h *SetupHandler) State(c *gin.Context) {
	response.Success(c, stateOf(middleware.App(c).Wizard))
}

// UpdateData merges a partial section into the wizard
// POST /setup/data/:section
func (h *SetupHandler) UpdateData(c *gin.Context) {
	w := middleware.App(c).Wizard
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, wizard.MaxImportSize))
	if err != nil {
		response.BadRequest(c, "INVALID_BODY", "Ungültige Anfrage")
		return
	}

	if err := w.UpdateStepData(c.Param("section"), raw); err != nil {
		if errors.Is(err, wizard.ErrUnknownSection) {
			response.NotFound(c, "Unbekannter Abschnitt")
			return
		}
		response.BadRequest(c, "INVALID_DATA", err.Error())
		return
	}
	response.Success(c, stateOf(w))
}

// Next advances when the current step is complete
// POST /setup/next
func (h *SetupHandler) Next(c *gin.Context) {
	w := middleware.App(c).Wizard
	if !w.Next() {
		c.JSON(http.StatusConflict, response.Response{Status: "STEP_INCOMPLETE", Message: "Der aktuelle Schritt ist noch nicht vollständig", Data: stateOf(w)})
		return
	}
	response.Success(c, stateOf(w))
}

// Back returns to the previous step
// POST /setup/back
func (h *SetupHandler) Back(c *gin.Context) {
	w := middleware.App(c).Wizard
	w.Back()
	response.Success(c, stateOf(w))
}

// Skip jumps to the last step after an import
// POST /setup/skip
func (h *SetupHandler) Skip(c *gin.Context) {
	w := middleware.App(c).Wizard
	if err := w.SkipToEnd(); err != nil {
		response.Conflict(c, "NO_CONFIG_LOADED", "Es wurde keine Konfigurationsdatei geladen")
		return
	}
	response.Success(c, stateOf(w))
}

// Import loads a configuration file
// POST /setup/import
func (h *SetupHandler) Import(c *gin.Context) {
	app := middleware.App(c)
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "MISSING_FILE", "Bitte wählen Sie eine Konfigurationsdatei aus")
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "INVALID_FILE", "Die Datei konnte nicht gelesen werden")
		return
	}
	defer f.Close()

	if err := app.Wizard.Import(fh.Filename, fh.Size, f); err != nil {
		app.Queue.Notify(notify.Error, "Fehler beim Lesen der Datei", "Folgender Fehler ist aufgetreten: "+err.Error())

		var schemaErr *wizard.SchemaError
		if errors.As(err, &schemaErr) {
			c.JSON(http.StatusBadRequest, response.Response{Status: "INVALID_SCHEMA", Message: err.Error(), Data: gin.H{"problems": schemaErr.Problems}})
			return
		}
		response.BadRequest(c, "INVALID_FILE", err.Error())
		return
	}

	app.Queue.Notify(notify.Success, "Konfiguration geladen", "Die Konfigurationsdatei wurde erfolgreich eingelesen.")
	response.Success(c, stateOf(app.Wizard))
}

// Export downloads the current configuration
// GET /setup/export
func (h *SetupHandler) Export(c *gin.Context) {
	data, err := middleware.App(c).Wizard.Export()
	if err != nil {
		response.ServerError(c, "Die Konfiguration konnte nicht exportiert werden")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+wizard.ExportFilename+`"`)
	c.Data(http.StatusOK, "application/json", data)
}

// DownloadOnFinish toggles the config download after submission
// POST /setup/download
func (h *SetupHandler) DownloadOnFinish(c *gin.Context) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "INVALID_BODY", "Ungültige Anfrage")
		return
	}
	w := middleware.App(c).Wizard
	w.SetDownloadOnFinish(req.Enabled)
	response.Success(c, stateOf(w))
}

// Logo stores an uploaded branding logo in the wizard
// POST /setup/branding/logo
func (h *SetupHandler) Logo(c *gin.Context) {
	app := middleware.App(c)
	logo, ok := readLogo(c, app.Queue)
	if !ok {
		return
	}

	partial, err := jsonBytes(gin.H{"logo": logo})
	if err == nil {
		err = app.Wizard.UpdateStepData("branding", partial)
	}
	if err != nil {
		response.ServerError(c, "Das Logo konnte nicht übernommen werden")
		return
	}
	response.Success(c, stateOf(app.Wizard))
}

// Complete submits the configuration to the backend
// POST /setup/complete
func (h *SetupHandler) Complete(c *gin.Context) {
	app := middleware.App(c)
	w := app.Wizard

	err := w.Submit(c.Request.Context(), h.API)
	switch {
	case err == nil:
	case errors.Is(err, wizard.ErrLicenseNotAccepted):
		response.PreconditionFailed(c, "LICENSE_NOT_ACCEPTED", "Bitte akzeptieren Sie die Lizenzbedingungen")
		return
	case errors.Is(err, wizard.ErrNotReady):
		response.PreconditionFailed(c, "STEP_INCOMPLETE", "Die Einrichtung ist noch nicht vollständig")
		return
	case errors.Is(err, wizard.ErrSubmitInFlight):
		response.Conflict(c, "IN_PROGRESS", "Die Einrichtung wird bereits übermittelt")
		return
	case errors.Is(err, wizard.ErrAlreadySubmitted):
		response.Conflict(c, "ALREADY_SUBMITTED", "Die Einrichtung wurde bereits abgeschlossen")
		return
	default:
		logger.Warn().Err(err).Msg("setup submission failed")
		app.Queue.Notify(notify.Error, "Einrichtung fehlgeschlagen", "Die Konfiguration konnte nicht an den Server übermittelt werden.")
		h.backendError(c, err, "Die Konfiguration konnte nicht an den Server übermittelt werden")
		return
	}

	app.MarkSetupCompleted()
	app.Queue.Notify(notify.Success, "Einrichtung abgeschlossen", "Sie werden in Kürze zur Anmeldung weitergeleitet.")
	logger.Info().Str("session_id", app.ID).Msg("setup completed")

	data := gin.H{
		"redirect":        middleware.LoginPath,
		"redirectDelayMs": h.Config.Setup.RedirectDelay.Milliseconds(),
	}
	if w.DownloadOnFinish() {
		data["download"] = "/setup/export"
	}
	response.Success(c, data)
}
