package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path"
	"time"

	"github.com/cortexui/dashboard/internal/apiclient"
	"github.com/cortexui/dashboard/internal/middleware"
	"github.com/cortexui/dashboard/internal/models"
	"github.com/cortexui/dashboard/internal/notify"
	"github.com/cortexui/dashboard/internal/services"
	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/cortexui/dashboard/pkg/response"
	"github.com/gin-gonic/gin"
)

type BackupHandler struct {
	*Deps
}

func NewBackupHandler(d *Deps) *BackupHandler {
	return &BackupHandler{Deps: d}
}

// backupView is the backup section of the settings page.
type backupView struct {
	Files      []models.BackupFile   `json:"data"`
	LastBackup *models.Timestamp     `json:"lastBackup"`
	Settings   models.BackupSettings `json:"settings"`
	Running    bool                  `json:"isRunning"`
	NextRun    *time.Time            `json:"nextRun,omitempty"`
}

func loadBackupView(ctx context.Context, api *apiclient.Client, token string, now time.Time) (*backupView, error) {
	overview, err := api.Backups(ctx, token)
	if err != nil {
		return nil, err
	}
	running, err := api.BackupStatus(ctx, token)
	if err != nil {
		return nil, err
	}
	view := &backupView{
		Files:      overview.Data,
		LastBackup: overview.LastBackup,
		Settings:   overview.Settings,
		Running:    running,
	}
	if running {
		if next, err := services.NextBackupRun(overview.Settings.Frequency, now); err == nil {
			view.NextRun = &next
		}
	}
	return view, nil
}

// action runs a backup operation and reports it as a notification. A
// non-OK answer is a warning, a failed call an error.
func (h *BackupHandler) action(c *gin.Context, name, successMessage string, fn func(ctx context.Context, token string) (*apiclient.Result, error)) {
	app := middleware.App(c)
	guard(c, "backup-"+name, func() {
		res, err := fn(c.Request.Context(), app.Token())
		if err != nil {
			var apiErr *apiclient.APIError
			switch {
			case errors.Is(err, apiclient.ErrUnauthorized):
			case errors.As(err, &apiErr):
				app.Queue.Notify(notify.Warning, "Aktion nicht erfolgreich", apiErr.Message)
			default:
				app.Queue.Notify(notify.Error, "Aktion fehlgeschlagen", "Es ist ein interner Fehler aufgetreten")
			}
			h.backendError(c, err, "Es ist ein interner Fehler aufgetreten")
			return
		}
		msg := successMessage
		if res != nil && res.Message != "" {
			msg = res.Message
		}
		app.Queue.Notify(notify.Success, "Aktion erfolgreich", msg)
		response.SuccessMessage(c, msg, nil)
	})
}

// Overview returns files, settings, scheduler state and the next run
// GET /ui/api/backup
func (h *BackupHandler) Overview(c *gin.Context) {
	view, err := loadBackupView(c.Request.Context(), h.API, middleware.App(c).Token(), time.Now())
	if err != nil {
		h.backendError(c, err, "Fehler beim Abruf der Daten")
		return
	}
	response.Success(c, view)
}

// Status
// GET /ui/api/backup/status
func (h *BackupHandler) Status(c *gin.Context) {
	app := middleware.App(c)
	running, err := h.API.BackupStatus(c.Request.Context(), app.Token())
	if err != nil {
		if !errors.Is(err, apiclient.ErrUnauthorized) {
			app.Queue.Notify(notify.Error, "Fehler beim Abruf", "Backup Scheduler Status konnte nicht abgerufen werden")
		}
		h.backendError(c, err, "Backup Scheduler Status konnte nicht abgerufen werden")
		return
	}
	response.Success(c, gin.H{"isRunning": running})
}

// Run starts a manual backup
// POST /ui/api/backup
func (h *BackupHandler) Run(c *gin.Context) {
	h.action(c, "run", "Backup wurde erstellt", h.API.RunBackup)
}

// Start
// POST /ui/api/backup/start
func (h *BackupHandler) Start(c *gin.Context) {
	h.action(c, "scheduler", "Backup Scheduler gestartet", h.API.StartBackupScheduler)
}

// Stop
// POST /ui/api/backup/stop
func (h *BackupHandler) Stop(c *gin.Context) {
	h.action(c, "scheduler", "Backup Scheduler gestoppt", h.API.StopBackupScheduler)
}

// UpdateSettings
// PUT /ui/api/backup/settings
func (h *BackupHandler) UpdateSettings(c *gin.Context) {
	var req models.BackupSettings
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "INVALID_BODY", "Ungültige Anfrage")
		return
	}
	if err := validate.Struct(req); err != nil || !services.ValidBackupFrequency(req.Frequency) {
		response.BadRequest(c, "INVALID_FREQUENCY", "Häufigkeit muss daily, weekly oder monthly sein")
		return
	}
	h.action(c, "settings", "Die Backupeinstellungen wurden erfolgreich gespeichert",
		func(ctx context.Context, token string) (*apiclient.Result, error) {
			res, err := h.API.UpdateBackupSettings(ctx, token, req)
			if res != nil {
				// the stored message would hide the settings confirmation
				res.Message = ""
			}
			return res, err
		})
}

// Delete removes a backup file
// DELETE /ui/api/backup/file/:file
func (h *BackupHandler) Delete(c *gin.Context) {
	file, ok := backupFile(c)
	if !ok {
		return
	}
	app := middleware.App(c)
	guard(c, "backup-delete", func() {
		if err := h.API.DeleteBackup(c.Request.Context(), app.Token(), file); err != nil {
			if !errors.Is(err, apiclient.ErrUnauthorized) {
				app.Queue.Notify(notify.Warning, "Aktion nicht erfolgreich", "Das Backup konnte nicht gelöscht werden")
			}
			h.backendError(c, err, "Das Backup konnte nicht gelöscht werden")
			return
		}
		app.Queue.Notify(notify.Success, "Aktion erfolgreich", "Backup erfolgreich gelöscht")
		c.Status(http.StatusNoContent)
	})
}

// Download streams a backup file from the backend
// GET /ui/api/backup/file/:file
func (h *BackupHandler) Download(c *gin.Context) {
	file, ok := backupFile(c)
	if !ok {
		return
	}
	w := &attachmentWriter{c: c, filename: file}
	if _, err := h.API.DownloadBackup(c.Request.Context(), middleware.App(c).Token(), file, w); err != nil {
		if w.started {
			logger.Warn().Err(err).Str("file", file).Msg("backup download interrupted")
			return
		}
		h.backendError(c, err, "Das Backup konnte nicht heruntergeladen werden")
	}
}

func backupFile(c *gin.Context) (string, bool) {
	file := c.Param("file")
	if file == "" || file != path.Base(file) || file == "." || file == ".." {
		response.BadRequest(c, "INVALID_FILE", "Ungültiger Dateiname")
		return "", false
	}
	return file, true
}

// attachmentWriter sets the download headers on the first write, so a
// backend error before any data can still be answered as JSON.
type attachmentWriter struct {
	c        *gin.Context
	filename string
	started  bool
}

func (w *attachmentWriter) Write(p []byte) (int, error) {
	if !w.started {
		w.started = true
		w.c.Header("Content-Type", "application/octet-stream")
		w.c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", w.filename))
		w.c.Status(http.StatusOK)
	}
	return w.c.Writer.Write(p)
}
