package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/cortexui/dashboard/internal/apiclient"
	"github.com/cortexui/dashboard/internal/session"
	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/cortexui/dashboard/pkg/response"
	"github.com/gin-gonic/gin"
)

const (
	LoginPath          = "/login"
	SessionExpiredPath = "/login?session_expired"
	SetupPath          = "/setup"
)

// WantsJSON reports whether the request expects a JSON answer instead of a page.
func WantsJSON(c *gin.Context) bool {
	if strings.HasPrefix(c.Request.URL.Path, "/ui/api/") {
		return true
	}
	if c.GetHeader("X-Requested-With") == "XMLHttpRequest" {
		return true
	}
	return strings.Contains(c.GetHeader("Accept"), "application/json") ||
		c.ContentType() == "application/json"
}

// SessionExpired ends the request with the session-expired answer: a redirect
// for pages, a 401 carrying the redirect target for JSON requests.
func SessionExpired(c *gin.Context) {
	if WantsJSON(c) {
		c.AbortWithStatusJSON(http.StatusUnauthorized, response.Response{
			Status:  "UNAUTHORIZED",
			Message: "Sitzung abgelaufen",
			Data:    gin.H{"redirect": SessionExpiredPath},
		})
		return
	}
	c.Redirect(http.StatusFound, SessionExpiredPath)
	c.Abort()
}

// HandleUnauthorized logs the session out and answers with SessionExpired when
// err is a backend 401. It returns false for every other error.
func HandleUnauthorized(c *gin.Context, m *session.Manager, err error) bool {
	if !errors.Is(err, apiclient.ErrUnauthorized) {
		return false
	}
	app := App(c)
	if lerr := m.Logout(c.Request.Context(), app); lerr != nil {
		logger.Warn().Err(lerr).Str("session_id", app.ID).Msg("logout after 401 failed")
	}
	SessionExpired(c)
	return true
}

// AuthRequired lets only logged-in sessions through. A session restored from
// the store gets its user loaded on first use.
func AuthRequired(m *session.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		app := App(c)
		if !app.Authenticated() {
			if WantsJSON(c) {
				SessionExpired(c)
				return
			}
			c.Redirect(http.StatusFound, LoginPath)
			c.Abort()
			return
		}

		if app.User() == nil {
			if err := app.RefreshUser(c.Request.Context()); err != nil {
				if HandleUnauthorized(c, m, err) {
					return
				}
				logger.Warn().Err(err).Msg("failed to load user for restored session")
			}
		}

		c.Next()
	}
}

// AdminRequired rejects sessions whose user is not an administrator.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !App(c).IsAdmin() {
			if WantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusForbidden, response.Response{
					Status:  "FORBIDDEN",
					Message: "Administratorrechte erforderlich",
				})
				return
			}
			c.Redirect(http.StatusFound, "/")
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupCompleted returns the cached setup flag, fetching it when unknown.
// ok is false when the backend could not be asked.
func setupCompleted(c *gin.Context) (completed, ok bool) {
	app := App(c)
	if done, known := app.SetupCompleted(); known {
		return done, true
	}
	if err := app.RefreshSetupCompleted(c.Request.Context()); err != nil {
		logger.Warn().Err(err).Msg("failed to fetch setup status")
		return false, false
	}
	done, _ := app.SetupCompleted()
	return done, true
}

// SetupGuard closes the setup wizard once the backend reports setup as done.
func SetupGuard() gin.HandlerFunc {
	return func(c *gin.Context) {
		if done, ok := setupCompleted(c); ok && done && !App(c).Wizard.Submitted() {
			if WantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusConflict, response.Response{
					Status:  "SETUP_COMPLETED",
					Message: "Die Einrichtung wurde bereits abgeschlossen",
				})
				return
			}
			c.Redirect(http.StatusFound, LoginPath)
			c.Abort()
			return
		}
		c.Next()
	}
}

// SetupRequired sends every request to the wizard until setup is done.
func SetupRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if done, ok := setupCompleted(c); ok && !done {
			if WantsJSON(c) {
				c.AbortWithStatusJSON(http.StatusConflict, response.Response{
					Status:  "SETUP_REQUIRED",
					Message: "Die Einrichtung ist noch nicht abgeschlossen",
					Data:    gin.H{"redirect": SetupPath},
				})
				return
			}
			c.Redirect(http.StatusFound, SetupPath)
			c.Abort()
			return
		}
		c.Next()
	}
}
