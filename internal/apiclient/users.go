package apiclient

import (
	"context"
	"net/http"

	"github.com/cortexui/dashboard/internal/models"
)

// UserInput is the body for creating or updating a user. Password is optional on update.
type UserInput struct {
	UID       string `json:"uid,omitempty"`
	Email     string `json:"email" validate:"required,email"`
	FirstName string `json:"firstName" validate:"required"`
	LastName  string `json:"lastName" validate:"required"`
	Role      string `json:"role" validate:"required,oneof=admin user"`
	IsActive  bool   `json:"isActive"`
	Password  string `json:"password,omitempty"`
}

// Users returns all users plus the dashboard counters.
// GET /api/v1/users
func (c *Client) Users(ctx context.Context, token string) (*models.UsersOverview, error) {
	var overview models.UsersOverview
	if _, err := c.do(ctx, request{method: http.MethodGet, path: "/api/v1/users", token: token}, &overview); err != nil {
		return nil, err
	}
	return &overview, nil
}

// POST /api/v1/admin/users
func (c *Client) CreateUser(ctx context.Context, token string, u UserInput) (*Result, error) {
	return c.send(ctx, http.MethodPost, "/api/v1/admin/users", token, u)
}

// PUT /api/v1/admin/users
func (c *Client) UpdateUser(ctx context.Context, token string, u UserInput) (*Result, error) {
	return c.send(ctx, http.MethodPut, "/api/v1/admin/users", token, u)
}

// DeleteUser succeeds only on 204.
// DELETE /api/v1/admin/users with body {uid}
func (c *Client) DeleteUser(ctx context.Context, token, uid string) error {
	code, err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/api/v1/admin/users",
		token:  token,
		body:   map[string]string{"uid": uid},
	}, nil)
	if err != nil {
		return err
	}
	if code != http.StatusNoContent {
		return &APIError{StatusCode: code, Message: "user was not deleted"}
	}
	return nil
}
