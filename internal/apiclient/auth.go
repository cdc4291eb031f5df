package apiclient

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/cortexui/dashboard/internal/models"
)

type loginResponse struct {
	Data struct {
		AccessToken string `json:"accessToken"`
	} `json:"data"`
}

// Login exchanges email and password for an access token.
// POST /api/v1/auth/login (form-encoded username, password)
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	form := url.Values{}
	form.Set("username", email)
	form.Set("password", password)

	var resp loginResponse
	code, err := c.do(ctx, request{method: http.MethodPost, path: "/api/v1/auth/login", form: form}, &resp)
	if err != nil {
		var apiErr *APIError
		if errors.Is(err, ErrUnauthorized) || (errors.As(err, &apiErr) && apiErr.StatusCode < 500) {
			return "", ErrInvalidCredentials
		}
		return "", err
	}
	if code != http.StatusOK || resp.Data.AccessToken == "" {
		return "", ErrInvalidCredentials
	}
	return resp.Data.AccessToken, nil
}

// Me returns the user owning token.
// GET /api/v1/auth/me
func (c *Client) Me(ctx context.Context, token string) (*models.UserPublic, error) {
	var env Envelope[models.UserPublic]
	code, err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/auth/me", token: token}, &env)
	if err != nil {
		return nil, err
	}
	if !env.IsOk {
		return nil, envelopeError(code, env.Status, env.Message)
	}
	return &env.Data, nil
}

// Verify submits an email verification code.
// POST /api/v1/auth/verify
func (c *Client) Verify(ctx context.Context, token, code string) (*Result, error) {
	var env Result
	status, err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/api/v1/auth/verify",
		token:  token,
		body:   map[string]string{"code": code},
	}, &env)
	if err != nil {
		return nil, err
	}
	if !env.IsOk {
		return &env, envelopeError(status, env.Status, env.Message)
	}
	return &env, nil
}
