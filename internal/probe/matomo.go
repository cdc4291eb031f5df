package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrMatomoRejected means Matomo answered but did not confirm the site.
var ErrMatomoRejected = errors.New("matomo did not confirm the site")

// MatomoRequest is the body of POST /setup/test-matomo.
type MatomoRequest struct {
	URL    string `json:"matomoUrl"`
	SiteID string `json:"matomoSiteId"`
	APIKey string `json:"matomoApiKey"`
}

func (r MatomoRequest) Validate() error {
	if missing(r.URL, r.SiteID, r.APIKey) {
		return fmt.Errorf("%w: matomoUrl, matomoSiteId and matomoApiKey are required", ErrMissingFields)
	}
	return nil
}

// MatomoSite is the part of SitesManager.getSiteFromId the wizard shows.
type MatomoSite struct {
	SiteName string `json:"siteName"`
	Timezone string `json:"timezone"`
}

// Matomo checks a site id and token against the Matomo reporting API.
type Matomo struct {
	client *http.Client
}

func NewMatomo(timeout time.Duration) *Matomo {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Matomo{client: &http.Client{Timeout: timeout}}
}

// Check returns ErrMatomoRejected (wrapped) when Matomo answers without the
// site, and a transport error when Matomo cannot be reached.
func (m *Matomo) Check(ctx context.Context, r MatomoRequest) (*MatomoSite, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}

	endpoint := strings.TrimRight(r.URL, "/") + "/?module=API&method=SitesManager.getSiteFromId&format=JSON"
	form := url.Values{"idSite": {r.SiteID}, "token_auth": {r.APIKey}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("matomo request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: http %d", ErrMatomoRejected, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read matomo response: %w", err)
	}

	var site struct {
		IDSite   json.RawMessage `json:"idsite"`
		Name     string          `json:"name"`
		Timezone string          `json:"timezone"`
		Result   string          `json:"result"`
		Message  string          `json:"message"`
	}
	if err := json.Unmarshal(body, &site); err != nil {
		return nil, fmt.Errorf("%w: unexpected response", ErrMatomoRejected)
	}
	if len(site.IDSite) == 0 || string(site.IDSite) == "null" {
		if site.Message != "" {
			return nil, fmt.Errorf("%w: %s", ErrMatomoRejected, site.Message)
		}
		return nil, ErrMatomoRejected
	}
	return &MatomoSite{SiteName: site.Name, Timezone: site.Timezone}, nil
}
