package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/cortexui/dashboard/internal/apiclient"
	"github.com/cortexui/dashboard/internal/middleware"
	"github.com/cortexui/dashboard/internal/models"
	"github.com/cortexui/dashboard/internal/notify"
	"github.com/cortexui/dashboard/internal/services"
	"github.com/cortexui/dashboard/internal/session"
	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/cortexui/dashboard/pkg/response"
	"github.com/gin-gonic/gin"
)

// PublicKeyHandler manages the API keys issued by the backend. The list is
// cached in the session so toggles can be applied optimistically.
type PublicKeyHandler struct {
	*Deps
}

func NewPublicKeyHandler(d *Deps) *PublicKeyHandler {
	return &PublicKeyHandler{Deps: d}
}

type publicKeyView struct {
	models.PublicKey
	Deletable bool `json:"deletable"`
}

func viewKeys(keys []models.PublicKey) []publicKeyView {
	out := make([]publicKeyView, 0, len(keys))
	for _, k := range keys {
		out = append(out, publicKeyView{PublicKey: k, Deletable: k.Deletable()})
	}
	return out
}

// cached returns the cached key with uid, loading the list once if the
// session has none yet.
func (h *PublicKeyHandler) cached(ctx context.Context, app *session.AppContext, uid string) (models.PublicKey, bool, error) {
	find := func() (models.PublicKey, bool) {
		for _, k := range app.PublicKeys() {
			if k.UID == uid {
				return k, true
			}
		}
		return models.PublicKey{}, false
	}
	if k, ok := find(); ok {
		return k, true, nil
	}
	keys, err := h.API.ListPublicKeys(ctx, app.Token())
	if err != nil {
		return models.PublicKey{}, false, err
	}
	app.SetPublicKeys(keys)
	k, ok := find()
	return k, ok, nil
}

// List
// GET /ui/api/public-keys
func (h *PublicKeyHandler) List(c *gin.Context) {
	app := middleware.App(c)
	keys, err := h.API.ListPublicKeys(c.Request.Context(), app.Token())
	if err != nil {
		h.backendError(c, err, "Fehler beim Abruf der Daten")
		return
	}
	app.SetPublicKeys(keys)
	response.Success(c, viewKeys(keys))
}

// CreatePublicKeyRequest is the form of the create dialog. AllowedIPs and
// Metadata arrive as the raw text of their fields.
type CreatePublicKeyRequest struct {
	Name        string            `json:"name" validate:"required"`
	Description string            `json:"description"`
	AllowedIPs  string            `json:"allowedIps"`
	ExpiresAt   *models.Timestamp `json:"expiresAt"`
	IsActive    bool              `json:"isActive"`
	Metadata    string            `json:"metadata"`
}

// Create issues a key. The response is the only place the plaintext key appears.
// POST /ui/api/public-keys
func (h *PublicKeyHandler) Create(c *gin.Context) {
	var req CreatePublicKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "INVALID_BODY", "Ungültige Anfrage")
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := validate.Struct(req); err != nil {
		response.BadRequest(c, "MISSING_FIELDS", "Bitte geben Sie einen Namen an")
		return
	}
	metadata, err := services.ParseMetadata(req.Metadata)
	if err != nil {
		response.BadRequest(c, "INVALID_METADATA", "Metadaten müssen ein gültiges JSON-Objekt sein")
		return
	}
	if req.ExpiresAt != nil && req.ExpiresAt.IsZero() {
		req.ExpiresAt = nil
	}

	key := models.PublicKey{
		Name:        req.Name,
		Description: req.Description,
		AllowedIPs:  services.ParseAllowedIPs(req.AllowedIPs),
		ExpiresAt:   req.ExpiresAt,
		IsActive:    req.IsActive,
		Metadata:    metadata,
	}

	app := middleware.App(c)
	guard(c, "public-key-create", func() {
		created, err := h.API.CreatePublicKey(c.Request.Context(), app.Token(), key)
		if err != nil {
			if !errors.Is(err, apiclient.ErrUnauthorized) {
				app.Queue.Notify(notify.Error, "Fehler beim Erstellen", "Der neue Schlüssel konnte nicht erstellt werden.")
			}
			h.backendError(c, err, "Der neue Schlüssel konnte nicht erstellt werden.")
			return
		}

		stored := *created
		stored.Key = ""
		app.SetPublicKeys(append(app.PublicKeys(), stored))

		app.Queue.Notify(notify.Success, "API-Schlüssel erstellt", "Der neue Schlüssel wurde erfolgreich erstellt.")
		response.Created(c, publicKeyView{PublicKey: *created, Deletable: created.Deletable()})
	})
}

// Toggle flips isActive. The cached key changes first and is restored if the
// backend does not confirm.
// PUT /ui/api/public-keys/:uid/toggle
func (h *PublicKeyHandler) Toggle(c *gin.Context) {
	uid := c.Param("uid")
	app := middleware.App(c)
	ctx := c.Request.Context()

	if _, ok, err := h.cached(ctx, app, uid); err != nil {
		h.backendError(c, err, "Fehler beim Abruf der Daten")
		return
	} else if !ok {
		response.NotFound(c, "Schlüssel nicht gefunden")
		return
	}

	guard(c, "public-key-"+uid, func() {
		var updated models.PublicKey
		prev, ok := app.UpdatePublicKey(uid, func(k *models.PublicKey) {
			k.IsActive = !k.IsActive
			updated = *k
		})
		if !ok {
			response.NotFound(c, "Schlüssel nicht gefunden")
			return
		}

		if _, err := h.API.UpdatePublicKey(ctx, app.Token(), updated); err != nil {
			app.UpdatePublicKey(uid, func(k *models.PublicKey) { k.IsActive = prev.IsActive })
			logger.Info().Err(err).Str("uid", uid).Msg("public key toggle rolled back")
			if !errors.Is(err, apiclient.ErrUnauthorized) {
				app.Queue.Notify(notify.Warning, "Fehler", "Der Schlüssel konnte nicht bearbeitet werden.")
			}
			h.backendError(c, err, "Der Schlüssel konnte nicht bearbeitet werden.")
			return
		}

		verb := "deaktiviert"
		if updated.IsActive {
			verb = "aktiviert"
		}
		app.Queue.Notify(notify.Info, "API-Schlüssel bearbeitet", "Der Schlüssel wurde erfolgreich "+verb+".")
		response.Success(c, publicKeyView{PublicKey: updated, Deletable: updated.Deletable()})
	})
}

// Delete removes an inactive key. Active keys must be deactivated first.
// DELETE /ui/api/public-keys/:uid
func (h *PublicKeyHandler) Delete(c *gin.Context) {
	uid := c.Param("uid")
	app := middleware.App(c)
	ctx := c.Request.Context()

	key, ok, err := h.cached(ctx, app, uid)
	if err != nil {
		h.backendError(c, err, "Fehler beim Abruf der Daten")
		return
	}
	if !ok {
		response.NotFound(c, "Schlüssel nicht gefunden")
		return
	}
	if !key.Deletable() {
		response.Conflict(c, "KEY_ACTIVE", "Aktive Schlüssel müssen vor dem Löschen deaktiviert werden")
		return
	}

	guard(c, "public-key-"+uid, func() {
		if err := h.API.DeletePublicKey(ctx, app.Token(), uid); err != nil {
			if !errors.Is(err, apiclient.ErrUnauthorized) {
				app.Queue.Notify(notify.Error, "Fehler beim Löschen", "Der Schlüssel konnte nicht gelöscht werden.")
			}
			h.backendError(c, err, "Der Schlüssel konnte nicht gelöscht werden.")
			return
		}
		app.RemovePublicKey(uid)
		c.Status(http.StatusNoContent)
	})
}
