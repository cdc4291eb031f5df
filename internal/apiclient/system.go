package apiclient

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/cortexui/dashboard/internal/models"
)

// SetupStatus reports whether the initial setup has been completed.
// GET /api/v1/setup/status
func (c *Client) SetupStatus(ctx context.Context) (bool, error) {
	var resp struct {
		SetupCompleted bool `json:"setupCompleted"`
	}
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/setup/status"}, &resp); err != nil {
		return false, err
	}
	return resp.SetupCompleted, nil
}

// CompleteSetup posts the wizard payload.
// POST /api/v1/setup/complete
func (c *Client) CompleteSetup(ctx context.Context, payload interface{}) (*Result, error) {
	var env Result
	code, err := c.do(ctx, request{method: http.MethodPost, path: "/api/v1/setup/complete", body: payload}, &env)
	if err != nil {
		return nil, err
	}
	if !env.IsOk {
		return &env, envelopeError(code, env.Status, env.Message)
	}
	return &env, nil
}

// WhiteLabel returns the public branding configuration.
// GET /api/v1/system/white-label
func (c *Client) WhiteLabel(ctx context.Context) (*models.WhiteLabelConfig, error) {
	var cfg models.WhiteLabelConfig
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/system/white-label"}, &cfg); err != nil {
		return nil, err
	}
	if cfg.Logo != nil && cfg.Logo.Data == "" {
		cfg.Logo = nil
	}
	return &cfg, nil
}

// ServerStatus returns which backend integrations are configured.
// GET /api/v1/system/status
func (c *Client) ServerStatus(ctx context.Context, token string) (*models.ServerStatus, error) {
	var status models.ServerStatus
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/system/status", token: token}, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Ping checks backend reachability.
// GET /api/v1/system/ping
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/system/ping"}, nil)
	return err
}

// DatabaseHealth returns latency and uptime of the backend database.
// GET /api/v1/system/database-health
func (c *Client) DatabaseHealth(ctx context.Context, token string) (*models.DatabaseHealth, error) {
	var env Envelope[models.DatabaseHealth]
	code, err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/system/database-health", token: token}, &env)
	if err != nil {
		return nil, err
	}
	if !env.IsOk {
		return nil, envelopeError(code, env.Status, env.Message)
	}
	return &env.Data, nil
}

// MatomoSummary returns the analytics summary for the dashboard. The payload is
// passed through to the page unchanged.
// GET /api/v1/analytics/matomo
func (c *Client) MatomoSummary(ctx context.Context, token string) (json.RawMessage, error) {
	var env Envelope[json.RawMessage]
	code, err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/analytics/matomo", token: token}, &env)
	if err != nil {
		return nil, err
	}
	if !env.IsOk {
		return nil, envelopeError(code, env.Status, env.Message)
	}
	return env.Data, nil
}
