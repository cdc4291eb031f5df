package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/cortexui/dashboard/internal/apiclient"
	"github.com/cortexui/dashboard/internal/middleware"
	"github.com/cortexui/dashboard/internal/models"
	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/cortexui/dashboard/pkg/response"
	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

type DashboardHandler struct {
	*Deps
}

func NewDashboardHandler(d *Deps) *DashboardHandler {
	return &DashboardHandler{Deps: d}
}

// DashboardStats is everything the start page shows. A widget whose backend
// call failed is left nil and its error recorded under Errors.
type DashboardStats struct {
	Users    *models.UsersOverview  `json:"users,omitempty"`
	Database *models.DatabaseHealth `json:"database,omitempty"`
	Matomo   json.RawMessage        `json:"matomo,omitempty"`
	Status   *models.ServerStatus   `json:"status,omitempty"`
	Errors   map[string]string      `json:"errors,omitempty"`
}

// load fetches the widgets concurrently. Only a 401 is returned as error.
func (h *DashboardHandler) load(ctx context.Context, token string, status *models.ServerStatus, admin bool) (*DashboardStats, error) {
	stats := &DashboardStats{Status: status}
	var mu sync.Mutex
	fail := func(widget string, err error) error {
		if errors.Is(err, apiclient.ErrUnauthorized) {
			return err
		}
		logger.Warn().Err(err).Str("widget", widget).Msg("dashboard widget unavailable")
		mu.Lock()
		defer mu.Unlock()
		if stats.Errors == nil {
			stats.Errors = make(map[string]string)
		}
		stats.Errors[widget] = "Daten konnten nicht geladen werden"
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	if admin {
		g.Go(func() error {
			users, err := h.API.Users(gctx, token)
			if err != nil {
				return fail("users", err)
			}
			mu.Lock()
			stats.Users = users
			mu.Unlock()
			return nil
		})
	}
	g.Go(func() error {
		health, err := h.API.DatabaseHealth(gctx, token)
		if err != nil {
			return fail("database", err)
		}
		mu.Lock()
		stats.Database = health
		mu.Unlock()
		return nil
	})
	if status != nil && status.MatomoConfigured {
		g.Go(func() error {
			summary, err := h.API.MatomoSummary(gctx, token)
			if err != nil {
				return fail("matomo", err)
			}
			mu.Lock()
			stats.Matomo = summary
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return stats, nil
}

// Page renders the start page
// GET /
func (h *DashboardHandler) Page(c *gin.Context) {
	app := middleware.App(c)
	ctx := c.Request.Context()

	if app.ServerStatus() == nil {
		if err := app.RefreshServerStatus(ctx); err != nil {
			if middleware.HandleUnauthorized(c, h.Sessions, err) {
				return
			}
			logger.Debug().Err(err).Msg("server status unavailable")
		}
	}

	stats, err := h.load(ctx, app.Token(), app.ServerStatus(), app.IsAdmin())
	if err != nil {
		middleware.HandleUnauthorized(c, h.Sessions, err)
		return
	}
	h.page(c, http.StatusOK, "dashboard.html", "Dashboard", nil, stats)
}

// Stats returns the dashboard widgets
// GET /ui/api/dashboard
func (h *DashboardHandler) Stats(c *gin.Context) {
	app := middleware.App(c)
	ctx := c.Request.Context()

	if err := app.RefreshServerStatus(ctx); err != nil {
		if middleware.HandleUnauthorized(c, h.Sessions, err) {
			return
		}
	}
	stats, err := h.load(ctx, app.Token(), app.ServerStatus(), app.IsAdmin())
	if err != nil {
		h.backendError(c, err, "Dashboard konnte nicht geladen werden")
		return
	}
	response.Success(c, stats)
}
