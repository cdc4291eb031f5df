package handlers

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/cortexui/dashboard/internal/models"
	"github.com/cortexui/dashboard/internal/notify"
	"github.com/cortexui/dashboard/internal/services"
	"github.com/cortexui/dashboard/pkg/response"
	"github.com/gin-gonic/gin"
)

const invalidLogoMessage = "Bitte prüfen Sie, ob Ihre Datei im richtigen Format (.svg, .jpg, .jpeg, .png) und maximal 5MB groß ist."

// readLogo reads the multipart field "logo". On failure the response has
// been written and a notification queued.
func readLogo(c *gin.Context, q notify.Notifier) (*models.WhiteLabelLogo, bool) {
	fh, err := c.FormFile("logo")
	if err != nil {
		response.BadRequest(c, "MISSING_FILE", "Bitte wählen Sie eine Datei aus")
		return nil, false
	}
	if fh.Size > services.MaxLogoSize {
		q.Notify(notify.Error, "Ungültige Datei", invalidLogoMessage)
		response.BadRequest(c, "INVALID_FILE", services.ErrLogoTooLarge.Error())
		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		q.Notify(notify.Error, "Fehler beim Upload", "Folgender Fehler ist aufgetreten: "+err.Error())
		response.BadRequest(c, "INVALID_FILE", "Die Datei konnte nicht gelesen werden")
		return nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, services.MaxLogoSize+1))
	if err != nil {
		q.Notify(notify.Error, "Fehler beim Upload", "Folgender Fehler ist aufgetreten: "+err.Error())
		response.BadRequest(c, "INVALID_FILE", "Die Datei konnte nicht gelesen werden")
		return nil, false
	}

	logo, err := services.LogoFromUpload(fh.Filename, data, c.PostForm("lastModified"))
	if err != nil {
		q.Notify(notify.Error, "Ungültige Datei", invalidLogoMessage)
		msg := err.Error()
		if !errors.Is(err, services.ErrLogoType) && !errors.Is(err, services.ErrLogoTooLarge) {
			msg = "Die Datei konnte nicht verarbeitet werden"
		}
		response.BadRequest(c, "INVALID_FILE", msg)
		return nil, false
	}
	return logo, true
}

func jsonBytes(v any) ([]byte, error) {
	return json.Marshal(v)
}
