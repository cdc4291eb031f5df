package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/cortexui/dashboard/internal/apiclient"
	"github.com/cortexui/dashboard/internal/middleware"
	"github.com/cortexui/dashboard/internal/wizard"
	"github.com/cortexui/dashboard/pkg/response"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// validationMessage turns validator errors into a short German message
// naming the offending fields.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "Ungültige Eingabe"
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return "Ungültige Eingabe: " + strings.Join(fields, ", ")
}

type UserHandler struct {
	*Deps
}

func NewUserHandler(d *Deps) *UserHandler {
	return &UserHandler{Deps: d}
}

// Page renders the user management page
// GET /users
func (h *UserHandler) Page(c *gin.Context) {
	app := middleware.App(c)
	overview, err := h.API.Users(c.Request.Context(), app.Token())
	if err != nil {
		if middleware.HandleUnauthorized(c, h.Sessions, err) {
			return
		}
		h.page(c, http.StatusOK, "users.html", "Benutzer",
			&FlashMessage{Type: "error", Message: "Benutzer konnten nicht geladen werden"}, nil)
		return
	}
	h.page(c, http.StatusOK, "users.html", "Benutzer", nil, overview)
}

// List returns all users with the overview counters
// GET /ui/api/users
func (h *UserHandler) List(c *gin.Context) {
	overview, err := h.API.Users(c.Request.Context(), middleware.App(c).Token())
	if err != nil {
		h.backendError(c, err, "Benutzer konnten nicht geladen werden")
		return
	}
	response.Success(c, overview)
}

func bindUser(c *gin.Context, create bool) (apiclient.UserInput, bool) {
	var in apiclient.UserInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.BadRequest(c, "INVALID_BODY", "Ungültige Anfrage")
		return in, false
	}
	in.Email = strings.TrimSpace(in.Email)
	if err := validate.Struct(in); err != nil {
		response.BadRequest(c, "VALIDATION_FAILED", validationMessage(err))
		return in, false
	}
	if !create && in.UID == "" {
		response.BadRequest(c, "VALIDATION_FAILED", "Ungültige Eingabe: UID")
		return in, false
	}
	if create || in.Password != "" {
		if issues := wizard.PasswordIssues(in.Password); len(issues) > 0 {
			response.BadRequest(c, "WEAK_PASSWORD", issues[0].Error())
			return in, false
		}
	}
	return in, true
}

// Create adds a user
// POST /ui/api/users
func (h *UserHandler) Create(c *gin.Context) {
	in, ok := bindUser(c, true)
	if !ok {
		return
	}
	in.UID = ""
	guard(c, "user-save", func() {
		if _, err := h.API.CreateUser(c.Request.Context(), middleware.App(c).Token(), in); err != nil {
			h.backendError(c, err, "Benutzer konnte nicht angelegt werden")
			return
		}
		response.SuccessMessage(c, "Benutzer angelegt", nil)
	})
}

// Update changes a user
// PUT /ui/api/users
func (h *UserHandler) Update(c *gin.Context) {
	in, ok := bindUser(c, false)
	if !ok {
		return
	}
	app := middleware.App(c)
	if me := app.User(); me != nil && me.UID == in.UID && in.Role != "admin" {
		response.BadRequest(c, "SELF_DEMOTION", "Sie können sich nicht selbst die Administratorrechte entziehen")
		return
	}
	guard(c, "user-save", func() {
		if _, err := h.API.UpdateUser(c.Request.Context(), app.Token(), in); err != nil {
			h.backendError(c, err, "Benutzer konnte nicht gespeichert werden")
			return
		}
		response.SuccessMessage(c, "Benutzer gespeichert", nil)
	})
}

// Delete removes a user
// DELETE /ui/api/users
func (h *UserHandler) Delete(c *gin.Context) {
	var req struct {
		UID string `json:"uid" validate:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || validate.Struct(req) != nil {
		response.BadRequest(c, "INVALID_BODY", "uid ist erforderlich")
		return
	}
	app := middleware.App(c)
	if me := app.User(); me != nil && me.UID == req.UID {
		response.BadRequest(c, "SELF_DELETE", "Sie können Ihr eigenes Konto nicht löschen")
		return
	}
	guard(c, "user-delete", func() {
		if err := h.API.DeleteUser(c.Request.Context(), app.Token(), req.UID); err != nil {
			h.backendError(c, err, "Benutzer konnte nicht gelöscht werden")
			return
		}
		c.Status(http.StatusNoContent)
	})
}
