package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/cortexui/dashboard/internal/models"
)

const backupPath = "/api/v1/system/backup"

// BackupStatus reports whether the backup scheduler is running.
// GET /api/v1/system/backup/status
func (c *Client) BackupStatus(ctx context.Context, token string) (bool, error) {
	var resp struct {
		IsOk      bool   `json:"isOk"`
		Status    string `json:"status"`
		Message   string `json:"message"`
		IsRunning bool   `json:"isRunning"`
	}
	code, err := c.do(ctx, request{method: http.MethodGet, path: backupPath + "/status", token: token}, &resp)
	if err != nil {
		return false, err
	}
	if !resp.IsOk {
		return false, envelopeError(code, resp.Status, resp.Message)
	}
	return resp.IsRunning, nil
}

// Backups lists the stored backup files and the schedule settings.
// GET /api/v1/system/backup
func (c *Client) Backups(ctx context.Context, token string) (*models.BackupOverview, error) {
	var overview models.BackupOverview
	if _, err := c.do(ctx, request{method: http.MethodGet, path: backupPath, token: token}, &overview); err != nil {
		return nil, err
	}
	return &overview, nil
}

// RunBackup triggers a manual backup.
// POST /api/v1/system/backup
func (c *Client) RunBackup(ctx context.Context, token string) (*Result, error) {
	return c.send(ctx, http.MethodPost, backupPath, token, nil)
}

// StartBackupScheduler
// POST /api/v1/system/backup/start
func (c *Client) StartBackupScheduler(ctx context.Context, token string) (*Result, error) {
	return c.send(ctx, http.MethodPost, backupPath+"/start", token, nil)
}

// StopBackupScheduler
// POST /api/v1/system/backup/stop
func (c *Client) StopBackupScheduler(ctx context.Context, token string) (*Result, error) {
	return c.send(ctx, http.MethodPost, backupPath+"/stop", token, nil)
}

// UpdateBackupSettings
// PUT /api/v1/system/backup/settings
func (c *Client) UpdateBackupSettings(ctx context.Context, token string, s models.BackupSettings) (*Result, error) {
	return c.send(ctx, http.MethodPut, backupPath+"/settings", token, s)
}

// DeleteBackup succeeds only on 204.
// DELETE /api/v1/system/backup/{file}
func (c *Client) DeleteBackup(ctx context.Context, token, file string) error {
	code, err := c.do(ctx, request{method: http.MethodDelete, path: backupPath + "/" + url.PathEscape(file), token: token}, nil)
	if err != nil {
		return err
	}
	if code != http.StatusNoContent {
		return &APIError{StatusCode: code, Message: "backup was not deleted"}
	}
	return nil
}

// DownloadBackup streams a backup file into w and returns the content type.
// GET /api/v1/system/backup/{file}
func (c *Client) DownloadBackup(ctx context.Context, token, file string, w io.Writer) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+backupPath+"/"+url.PathEscape(file), nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download backup: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return "", ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return "", decodeAPIError(resp.StatusCode, raw)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		return "", fmt.Errorf("download backup: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return contentType, nil
}
