package wizard

import (
	"strings"

	"github.com/cortexui/dashboard/internal/models"
)

// Step identifies one page of the setup flow.
type Step int

const (
	StepAdminUser Step = iota
	StepDatabase
	StepSelfSignup
	StepBranding
	StepMailServer
	StepAnalytics
	StepLicense
)

// stepSpec pairs a step with the template that renders it and the predicate
// that gates leaving it.
type stepSpec struct {
	id       string
	title    string
	template string
	ready    func(d *models.SetupData, confirm string) bool
}

var stepSpecs = [...]stepSpec{
	StepAdminUser:  {"adminUser", "Admin-Benutzer erstellen", "step-admin-user", adminUserReady},
	StepDatabase:   {"database", "Datenbankverbindung", "step-database", databaseReady},
	StepSelfSignup: {"selfSignup", "Self-Signup", "step-self-signup", func(*models.SetupData, string) bool { return true }},
	StepBranding:   {"branding", "Branding", "step-branding", brandingReady},
	StepMailServer: {"mailServer", "E-Mail-Konfiguration", "step-mail-server", mailServerReady},
	StepAnalytics:  {"analytics", "Analytics", "step-analytics", analyticsReady},
	StepLicense:    {"license", "Lizenz & Abschluss", "step-license", func(d *models.SetupData, _ string) bool { return d.License.Accepted }},
}

// Steps returns all steps in order.
func Steps() []Step {
	out := make([]Step, len(stepSpecs))
	for i := range stepSpecs {
		out[i] = Step(i)
	}
	return out
}

// StepCount is the number of wizard steps.
func StepCount() int { return len(stepSpecs) }

func (s Step) valid() bool { return s >= 0 && int(s) < len(stepSpecs) }

// String returns the section key of the step, e.g. "database".
func (s Step) String() string {
	if !s.valid() {
		return "unknown"
	}
	return stepSpecs[s].id
}

func (s Step) Title() string {
	if !s.valid() {
		return ""
	}
	return stepSpecs[s].title
}

// Template is the name of the html template block that renders the step.
func (s Step) Template() string {
	if !s.valid() {
		return ""
	}
	return stepSpecs[s].template
}

// Index is the zero-based position of the step.
func (s Step) Index() int { return int(s) }

// Section returns the step whose SetupData section is named key.
func Section(key string) (Step, bool) {
	for i, spec := range stepSpecs {
		if spec.id == key {
			return Step(i), true
		}
	}
	return 0, false
}

func blank(s string) bool { return strings.TrimSpace(s) == "" }

func adminUserReady(d *models.SetupData, confirm string) bool {
	u := d.AdminUser
	if blank(u.FirstName) || blank(u.LastName) || blank(u.Email) || blank(u.Password) {
		return false
	}
	return ValidatePassword(u.Password, confirm) == nil
}

func databaseReady(d *models.SetupData, _ string) bool {
	return !blank(d.Database.URI) && !blank(d.Database.DBName) && d.Database.ConnectionTested
}

func brandingReady(d *models.SetupData, _ string) bool {
	return !blank(d.Branding.Title)
}

func mailServerReady(d *models.SetupData, _ string) bool {
	if !d.AdminUser.EmailVerification {
		return true
	}
	switch d.MailServer.Type {
	case models.MailTypeSMTP:
		return d.MailServer.SMTP != nil && d.MailServer.SMTP.Tested
	case models.MailTypeMicrosoft365:
		return d.MailServer.Microsoft365 != nil && d.MailServer.Microsoft365.Authenticated
	}
	return false
}

func analyticsReady(d *models.SetupData, _ string) bool {
	if !d.Analytics.Configured() {
		return true
	}
	return d.Analytics.ConnectionTested
}
