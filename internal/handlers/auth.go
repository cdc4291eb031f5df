package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/cortexui/dashboard/internal/apiclient"
	"github.com/cortexui/dashboard/internal/middleware"
	"github.com/cortexui/dashboard/internal/notify"
	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	*Deps
}

func NewAuthHandler(d *Deps) *AuthHandler {
	return &AuthHandler{Deps: d}
}

type loginForm struct {
	Email string
}

// LoginPage renders the login form
// GET /login
func (h *AuthHandler) LoginPage(c *gin.Context) {
	if middleware.App(c).Authenticated() {
		c.Redirect(http.StatusFound, "/")
		return
	}
	var flash *FlashMessage
	if c.Request.URL.Query().Has("session_expired") {
		flash = &FlashMessage{Type: "warning", Message: "Ihre Sitzung ist abgelaufen. Bitte melden Sie sich erneut an."}
	}
	h.page(c, http.StatusOK, "login.html", "Anmelden", flash, loginForm{})
}

// Login authenticates against the backend
// POST /login
func (h *AuthHandler) Login(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")
	form := loginForm{Email: email}

	if email == "" || password == "" {
		h.page(c, http.StatusBadRequest, "login.html", "Anmelden",
			&FlashMessage{Type: "error", Message: "Bitte E-Mail und Passwort eingeben."}, form)
		return
	}

	app := middleware.App(c)
	if err := h.Sessions.Login(c.Request.Context(), app, email, password); err != nil {
		if errors.Is(err, apiclient.ErrInvalidCredentials) {
			h.page(c, http.StatusUnauthorized, "login.html", "Anmelden",
				&FlashMessage{Type: "error", Message: "E-Mail oder Passwort ist falsch."}, form)
			return
		}
		logger.Warn().Err(err).Msg("login failed")
		h.page(c, http.StatusBadGateway, "login.html", "Anmelden",
			&FlashMessage{Type: "error", Message: "Der Server ist nicht erreichbar. Bitte versuchen Sie es später erneut."}, form)
		return
	}

	if err := app.RefreshAll(c.Request.Context()); err != nil {
		logger.Warn().Err(err).Msg("failed to load session state after login")
	}
	c.Redirect(http.StatusFound, "/")
}

// Logout ends the session
// POST /logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.Sessions.Logout(c.Request.Context(), middleware.App(c)); err != nil {
		logger.Warn().Err(err).Msg("logout failed")
	}
	c.Redirect(http.StatusFound, middleware.LoginPath)
}

// VerifyPage renders the email verification form
// GET /verify
func (h *AuthHandler) VerifyPage(c *gin.Context) {
	h.page(c, http.StatusOK, "verify.html", "E-Mail bestätigen", nil, nil)
}

// Verify forwards the verification code to the backend
// POST /verify
func (h *AuthHandler) Verify(c *gin.Context) {
	code := strings.TrimSpace(c.PostForm("code"))
	if code == "" {
		h.page(c, http.StatusBadRequest, "verify.html", "E-Mail bestätigen",
			&FlashMessage{Type: "error", Message: "Bitte geben Sie den Bestätigungscode ein."}, nil)
		return
	}

	app := middleware.App(c)
	if _, err := h.API.Verify(c.Request.Context(), app.Token(), code); err != nil {
		if middleware.HandleUnauthorized(c, h.Sessions, err) {
			return
		}
		msg := "Der Code konnte nicht bestätigt werden."
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			msg = apiErr.Message
		}
		app.Queue.Notify(notify.Error, "E-Mail konnte nicht verifiziert werden", msg)
		h.page(c, http.StatusBadRequest, "verify.html", "E-Mail bestätigen",
			&FlashMessage{Type: "error", Message: msg}, nil)
		return
	}

	if err := app.RefreshUser(c.Request.Context()); err != nil {
		logger.Debug().Err(err).Msg("failed to refresh user after verification")
	}
	app.Queue.Notify(notify.Success, "E-Mail verifiziert", "Ihre E-Mail-Adresse wurde bestätigt.")
	c.Redirect(http.StatusFound, "/")
}
