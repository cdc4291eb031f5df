package wizard

import (
	"encoding/json"

	"github.com/cortexui/dashboard/internal/models"
)

// mergeSection overlays fields onto cur key by key. Nested objects in fields
// replace the existing value as a whole. cur is left untouched on error.
func mergeSection[T any](cur *T, fields map[string]json.RawMessage) error {
	raw, err := json.Marshal(cur)
	if err != nil {
		return err
	}
	base := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &base); err != nil {
		return err
	}
	for k, v := range fields {
		base[k] = v
	}
	merged, err := json.Marshal(base)
	if err != nil {
		return err
	}
	var out T
	if err := json.Unmarshal(merged, &out); err != nil {
		return err
	}
	*cur = out
	return nil
}

// settleFlags recomputes every verification flag on next from prev: a flag
// survives only if it was already set and its governing fields are unchanged.
// Flags are never raised here.
func settleFlags(prev, next *models.SetupData) {
	next.Database.ConnectionTested = prev.Database.ConnectionTested &&
		sameDatabase(prev.Database, next.Database)

	if s := next.MailServer.SMTP; s != nil {
		p := prev.MailServer.SMTP
		s.Tested = p != nil && p.Tested && sameSMTP(*p, *s)
	}

	if m := next.MailServer.Microsoft365; m != nil {
		p := prev.MailServer.Microsoft365
		m.Authenticated = p != nil && p.Authenticated && sameM365(*p, *m)
	}

	next.Analytics.ConnectionTested = prev.Analytics.ConnectionTested &&
		sameAnalytics(prev.Analytics, next.Analytics)
}

func sameDatabase(a, b models.DatabaseConfig) bool {
	return a.URI == b.URI && a.DBName == b.DBName
}

func sameSMTP(a, b models.SMTPSettings) bool {
	return a.Host == b.Host &&
		a.Port == b.Port &&
		a.Username == b.Username &&
		a.Password == b.Password &&
		a.SenderEmail == b.SenderEmail
}

func sameM365(a, b models.M365Settings) bool {
	return a.TenantID == b.TenantID && a.ClientID == b.ClientID && a.SecretKey == b.SecretKey
}

func sameAnalytics(a, b models.Analytics) bool {
	return a.MatomoURL == b.MatomoURL && a.MatomoSiteID == b.MatomoSiteID && a.MatomoAPIKey == b.MatomoAPIKey
}
