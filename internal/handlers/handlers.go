// Package handlers serves the dashboard pages and the JSON endpoints behind them.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/cortexui/dashboard/internal/apiclient"
	"github.com/cortexui/dashboard/internal/config"
	"github.com/cortexui/dashboard/internal/m365"
	"github.com/cortexui/dashboard/internal/middleware"
	"github.com/cortexui/dashboard/internal/probe"
	"github.com/cortexui/dashboard/internal/services"
	"github.com/cortexui/dashboard/internal/session"
	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/cortexui/dashboard/pkg/response"
	"github.com/gin-gonic/gin"
)

// DatabaseProber checks a MongoDB connection.
type DatabaseProber interface {
	Check(ctx context.Context, r probe.DatabaseRequest) error
}

// SMTPProber sends a test mail.
type SMTPProber interface {
	Send(ctx context.Context, r probe.SMTPRequest) error
}

// MatomoProber verifies Matomo credentials.
type MatomoProber interface {
	Check(ctx context.Context, r probe.MatomoRequest) (*probe.MatomoSite, error)
}

// Deps are the collaborators shared by all handlers.
type Deps struct {
	Config   *config.Config
	API      *apiclient.Client
	Sessions *session.Manager
	Broker   *m365.Broker
	Monitor  *services.BackendMonitor
	Hub      *services.StatusHub
	Renderer *Renderer

	DatabaseProbe DatabaseProber
	SMTPProbe     SMTPProber
	MatomoProbe   MatomoProber
}

// backendError answers a failed backend call. A 401 ends the session; any
// other failure is reported with the backend's message where it has one.
func (d *Deps) backendError(c *gin.Context, err error, fallback string) {
	if middleware.HandleUnauthorized(c, d.Sessions, err) {
		return
	}
	logger.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("backend call failed")

	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		status := apiErr.StatusCode
		if status < 400 {
			status = http.StatusBadGateway
		}
		msg := apiErr.Message
		if msg == "" {
			msg = fallback
		}
		code := apiErr.Status
		if code == "" {
			code = "BACKEND_ERROR"
		}
		c.JSON(status, response.Response{Status: code, Message: msg})
		return
	}
	c.JSON(http.StatusBadGateway, response.Response{Status: "BACKEND_UNREACHABLE", Message: fallback})
}

// guard runs fn while the named action is marked in flight for the session.
// A concurrent duplicate is answered with 409.
func guard(c *gin.Context, action string, fn func()) {
	release, ok := middleware.App(c).Begin(action)
	if !ok {
		response.Conflict(c, "IN_PROGRESS", "Die Aktion wird bereits ausgeführt")
		return
	}
	defer release()
	fn()
}
