package middleware

import (
	"net/http"

	"github.com/cortexui/dashboard/internal/config"
	"github.com/cortexui/dashboard/internal/session"
	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/gin-gonic/gin"
)

// ContextApp is the gin context key holding the *session.AppContext.
const ContextApp = "app_context"

// Session resolves the browser session from its cookie and stores the
// AppContext on the request. A new cookie is issued whenever the session
// had to be created.
func Session(m *session.Manager, cfg config.SessionConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := c.Cookie(cfg.CookieName)

		app, created := m.Resolve(c.Request.Context(), id)
		if created {
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(cfg.CookieName, app.ID, int(cfg.TTL.Seconds()), "/", "", cfg.Secure, true)
		}

		c.Set(ContextApp, app)
		c.Set(logger.SessionIDKey, app.ID)
		c.Next()
	}
}

// App returns the session's AppContext. It panics when the Session
// middleware did not run.
func App(c *gin.Context) *session.AppContext {
	return c.MustGet(ContextApp).(*session.AppContext)
}
