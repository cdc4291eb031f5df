package handlers

import (
	"github.com/cortexui/dashboard/internal/models"
	"github.com/gin-gonic/gin"
)

// HealthHandler reports the state of the dashboard and its backend.
type HealthHandler struct {
	*Deps
}

func NewHealthHandler(d *Deps) *HealthHandler {
	return &HealthHandler{Deps: d}
}

// CheckHealth returns the health status of all subsystems.
// GET /health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"

	dbStatus := "ok"
	if db := models.GetDB(); db == nil {
		dbStatus = "not initialized"
		overall = "unhealthy"
	} else if sqlDB, err := db.DB(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	backend := gin.H{"checked": false}
	if h.Monitor != nil {
		st := h.Monitor.Status()
		backend = gin.H{
			"online":      st.Online,
			"checked":     st.Checked,
			"lastChecked": st.LastChecked,
		}
		if st.ErrorMessage != "" {
			backend["errorMessage"] = st.ErrorMessage
		}
		if st.Checked && !st.Online && overall == "healthy" {
			overall = "degraded"
		}
	}

	components := gin.H{
		"database": dbStatus,
		"backend":  backend,
	}
	if h.Sessions != nil {
		components["sessions"] = h.Sessions.Live()
	}
	if h.Hub != nil {
		components["sse_clients"] = h.Hub.ClientCount()
	}
	if h.Broker != nil {
		components["m365_pending"] = h.Broker.Pending()
	}

	c.JSON(200, gin.H{
		"status":     overall,
		"service":    "cortexui-dashboard",
		"components": components,
	})
}
