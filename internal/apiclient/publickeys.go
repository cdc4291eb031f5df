package apiclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/cortexui/dashboard/internal/models"
)

const publicKeysPath = "/api/v1/system/public-keys"

// ListPublicKeys
// GET /api/v1/system/public-keys
func (c *Client) ListPublicKeys(ctx context.Context, token string) ([]models.PublicKey, error) {
	keys, err := getEnvelope[[]models.PublicKey](ctx, c, publicKeysPath, token)
	if err != nil {
		return nil, err
	}
	return *keys, nil
}

// CreatePublicKey returns the stored key including the plaintext secret, which
// the backend discloses only in this response.
// POST /api/v1/system/public-keys
func (c *Client) CreatePublicKey(ctx context.Context, token string, key models.PublicKey) (*models.PublicKey, error) {
	var resp struct {
		IsOk      bool              `json:"isOk"`
		Status    string            `json:"status"`
		Message   string            `json:"message"`
		PublicKey *models.PublicKey `json:"publicKey"`
	}
	code, err := c.do(ctx, request{method: http.MethodPost, path: publicKeysPath, token: token, body: key}, &resp)
	if err != nil {
		return nil, err
	}
	if !resp.IsOk || resp.PublicKey == nil {
		return nil, envelopeError(code, resp.Status, resp.Message)
	}
	return resp.PublicKey, nil
}

// UpdatePublicKey
// PUT /api/v1/system/public-keys/{uid}
func (c *Client) UpdatePublicKey(ctx context.Context, token string, key models.PublicKey) (*Result, error) {
	if key.UID == "" {
		return nil, fmt.Errorf("update public key: missing uid")
	}
	return c.send(ctx, http.MethodPut, publicKeysPath+"/"+url.PathEscape(key.UID), token, key)
}

// DeletePublicKey succeeds only on 204.
// DELETE /api/v1/system/public-keys/{uid}
func (c *Client) DeletePublicKey(ctx context.Context, token, uid string) error {
	code, err := c.do(ctx, request{method: http.MethodDelete, path: publicKeysPath + "/" + url.PathEscape(uid), token: token}, nil)
	if err != nil {
		return err
	}
	if code != http.StatusNoContent {
		return &APIError{StatusCode: code, Message: "public key was not deleted"}
	}
	return nil
}
