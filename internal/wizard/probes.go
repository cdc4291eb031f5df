package wizard

import "github.com/cortexui/dashboard/internal/models"

// The Record* methods store a probe outcome. A result is dropped when the
// governing fields changed while the probe ran; they return whether it was applied.

func (w *Wizard) RecordDatabaseProbe(probed models.DatabaseConfig, ok bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !sameDatabase(probed, w.data.Database) {
		return false
	}
	w.data.Database.ConnectionTested = ok
	return true
}

func (w *Wizard) RecordSMTPProbe(probed models.SMTPSettings, ok bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur := w.data.MailServer.SMTP
	if cur == nil || !sameSMTP(probed, *cur) {
		return false
	}
	cur.Tested = ok
	return true
}

// RecordM365Result marks the tenant authenticated and fills in the sender
// reported by Microsoft Graph.
func (w *Wizard) RecordM365Result(probed models.M365Settings, ok bool, email, displayName string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	cur := w.data.MailServer.Microsoft365
	if cur == nil || !sameM365(probed, *cur) {
		return false
	}
	cur.Authenticated = ok
	if ok {
		if displayName == "" {
			displayName = "CortexUI"
		}
		cur.SenderName = displayName
		cur.SenderEmail = email
	}
	return true
}

func (w *Wizard) RecordMatomoProbe(probed models.Analytics, ok bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !sameAnalytics(probed, w.data.Analytics) {
		return false
	}
	w.data.Analytics.ConnectionTested = ok
	return true
}
