package apiclient

import (
	"context"
	"net/http"

	"github.com/cortexui/dashboard/internal/models"
)

// DatabaseSettings is the persisted backend database connection.
type DatabaseSettings struct {
	URI    string `json:"uri"`
	DBName string `json:"dbName"`
}

// M365Exchange is posted to the backend to trade an authorization code for tokens.
type M365Exchange struct {
	Code         string `json:"code"`
	TenantID     string `json:"tenantId"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	RedirectURI  string `json:"redirect_uri"`
}

// M365Result is the backend answer to an M365Exchange.
type M365Result struct {
	IsOk        bool   `json:"isOk"`
	Status      string `json:"status,omitempty"`
	Message     string `json:"message,omitempty"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

func getEnvelope[T any](ctx context.Context, c *Client, path, token string) (*T, error) {
	var env Envelope[T]
	code, err := c.do(ctx, request{method: http.MethodGet, path: path, token: token}, &env)
	if err != nil {
		return nil, err
	}
	if !env.IsOk {
		return nil, envelopeError(code, env.Status, env.Message)
	}
	return &env.Data, nil
}

func (c *Client) send(ctx context.Context, method, path, token string, body interface{}) (*Result, error) {
	var env Result
	code, err := c.do(ctx, request{method: method, path: path, token: token, body: body}, &env)
	if err != nil {
		return nil, err
	}
	if code != http.StatusNoContent && !env.IsOk {
		return &env, envelopeError(code, env.Status, env.Message)
	}
	return &env, nil
}

// GET /api/v1/settings/database
func (c *Client) DatabaseSettings(ctx context.Context, token string) (*DatabaseSettings, error) {
	return getEnvelope[DatabaseSettings](ctx, c, "/api/v1/settings/database", token)
}

// PUT /api/v1/settings/database
func (c *Client) UpdateDatabaseSettings(ctx context.Context, token string, s DatabaseSettings) (*Result, error) {
	return c.send(ctx, http.MethodPut, "/api/v1/settings/database", token, s)
}

// GET /api/v1/settings/mail
func (c *Client) MailSettings(ctx context.Context, token string) (*models.MailServer, error) {
	return getEnvelope[models.MailServer](ctx, c, "/api/v1/settings/mail", token)
}

// POST /api/v1/settings/mail
func (c *Client) SaveMailSettings(ctx context.Context, token string, m models.MailServer) (*Result, error) {
	return c.send(ctx, http.MethodPost, "/api/v1/settings/mail", token, m)
}

// GET /api/v1/settings/analytics
func (c *Client) AnalyticsSettings(ctx context.Context, token string) (*models.Analytics, error) {
	return getEnvelope[models.Analytics](ctx, c, "/api/v1/settings/analytics", token)
}

// POST /api/v1/settings/analytics
func (c *Client) SaveAnalyticsSettings(ctx context.Context, token string, a models.Analytics) (*Result, error) {
	return c.send(ctx, http.MethodPost, "/api/v1/settings/analytics", token, a)
}

// UpdateWhiteLabel sends an already cleaned white-label object.
// PUT /api/v1/settings/white-label
func (c *Client) UpdateWhiteLabel(ctx context.Context, token string, cleaned map[string]interface{}) (*Result, error) {
	return c.send(ctx, http.MethodPut, "/api/v1/settings/white-label", token, cleaned)
}

// ExchangeM365Code lets the backend redeem an OAuth authorization code and store the tokens.
// POST /api/v1/settings/m365
func (c *Client) ExchangeM365Code(ctx context.Context, req M365Exchange) (*M365Result, error) {
	var resp M365Result
	code, err := c.do(ctx, request{method: http.MethodPost, path: "/api/v1/settings/m365", body: req}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.IsOk {
		return &resp, envelopeError(code, resp.Status, resp.Message)
	}
	return &resp, nil
}
