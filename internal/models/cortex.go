package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Timestamp decodes the date formats the backend emits: RFC 3339 with or
// without a zone, with or without fractional seconds.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

func NewTimestamp(t time.Time) Timestamp { return Timestamp{Time: t} }

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	var s string
	if string(b) == "null" {
		t.Time = time.Time{}
		return nil
	}
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// AdminUser is the first administrator account created by the setup wizard.
type AdminUser struct {
	FirstName         string `json:"firstName"`
	LastName          string `json:"lastName"`
	Email             string `json:"email" validate:"email"`
	Password          string `json:"password"`
	EmailVerification bool   `json:"emailVerification"`
}

type DatabaseConfig struct {
	URI              string `json:"uri"`
	DBName           string `json:"dbName"`
	ConnectionTested bool   `json:"connectionTested"`
}

type SelfSignup struct {
	Enabled bool `json:"enabled"`
}

// LastModified accepts either a JSON string or a JSON number and keeps the raw form.
type LastModified string

func (l *LastModified) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*l = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = LastModified(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("lastModified must be a string or a number: %w", err)
	}
	*l = LastModified(n.String())
	return nil
}

func (l LastModified) MarshalJSON() ([]byte, error) {
	s := string(l)
	if s == "" {
		return []byte("null"), nil
	}
	var n json.Number = json.Number(s)
	if _, err := n.Float64(); err == nil {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

type WhiteLabelLogo struct {
	ContentType  string       `json:"contentType,omitempty"`
	Name         string       `json:"name,omitempty"`
	Data         string       `json:"data,omitempty"`
	LastModified LastModified `json:"lastModified,omitempty"`
}

// WhiteLabelConfig is the tenant branding applied across the UI.
type WhiteLabelConfig struct {
	Logo         *WhiteLabelLogo `json:"logo,omitempty"`
	Title        string          `json:"title"`
	ShowTitle    bool            `json:"showTitle"`
	ExternalURL  string          `json:"externalUrl,omitempty"`
	Subtitle     string          `json:"subtitle,omitempty"`
	Description  string          `json:"description,omitempty"`
	ContactMail  string          `json:"contactMail,omitempty"`
	ContactPhone string          `json:"contactPhone,omitempty"`
	ContactFax   string          `json:"contactFax,omitempty"`
}

type MailType string

const (
	MailTypeSMTP         MailType = "smtp"
	MailTypeMicrosoft365 MailType = "microsoft365"
)

type SMTPSettings struct {
	Host        string `json:"host,omitempty"`
	Port        int    `json:"port,omitempty"`
	Username    string `json:"username,omitempty"`
	Password    string `json:"password,omitempty"`
	SenderName  string `json:"senderName,omitempty"`
	SenderEmail string `json:"senderEmail,omitempty"`
	Tested      bool   `json:"tested"`
}

type M365Settings struct {
	TenantID      string `json:"tenantId,omitempty"`
	ClientID      string `json:"clientId,omitempty"`
	SecretKey     string `json:"secretKey,omitempty"`
	Authenticated bool   `json:"authenticated"`
	SenderName    string `json:"senderName,omitempty"`
	SenderEmail   string `json:"senderEmail,omitempty"`
}

type MailServer struct {
	Type         MailType      `json:"type" validate:"oneof=smtp microsoft365"`
	SMTP         *SMTPSettings `json:"smtp,omitempty"`
	Microsoft365 *M365Settings `json:"microsoft365,omitempty"`
}

type Analytics struct {
	MatomoURL        string `json:"matomoUrl,omitempty"`
	MatomoSiteID     string `json:"matomoSiteId,omitempty"`
	MatomoAPIKey     string `json:"matomoApiKey,omitempty"`
	ConnectionTested bool   `json:"connectionTested"`
}

// Configured reports whether any Matomo field has been filled in.
func (a Analytics) Configured() bool {
	return a.MatomoURL != "" || a.MatomoSiteID != "" || a.MatomoAPIKey != ""
}

type License struct {
	Accepted bool `json:"accepted"`
}

// SetupData is the aggregate collected by the setup wizard and sent once to
// POST /api/v1/setup/complete.
type SetupData struct {
	AdminUser   AdminUser        `json:"adminUser"`
	Database    DatabaseConfig   `json:"database"`
	SelfSignup  SelfSignup       `json:"selfSignup"`
	Branding    WhiteLabelConfig `json:"branding"`
	MailServer  MailServer       `json:"mailServer"`
	Analytics   Analytics        `json:"analytics"`
	License     License          `json:"license"`
	GeneratedAt string           `json:"generatedAt,omitempty"`
	Version     string           `json:"version,omitempty"`
}

// DefaultSetupData returns the initial wizard state.
func DefaultSetupData() SetupData {
	return SetupData{
		Database: DatabaseConfig{
			URI:    "mongodb://localhost:27017",
			DBName: "cortex-ui",
		},
		Branding: WhiteLabelConfig{
			Title: "CortexUI",
		},
		MailServer: MailServer{
			Type: MailTypeSMTP,
		},
	}
}

// Clone returns a deep copy.
func (d SetupData) Clone() SetupData {
	out := d
	if d.Branding.Logo != nil {
		logo := *d.Branding.Logo
		out.Branding.Logo = &logo
	}
	if d.MailServer.SMTP != nil {
		smtp := *d.MailServer.SMTP
		out.MailServer.SMTP = &smtp
	}
	if d.MailServer.Microsoft365 != nil {
		m365 := *d.MailServer.Microsoft365
		out.MailServer.Microsoft365 = &m365
	}
	return out
}

// UserPublic is the user representation returned by the backend.
type UserPublic struct {
	UID       string    `json:"uid"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"isActive"`
	LastSeen  Timestamp `json:"lastSeen"`
}

func (u *UserPublic) IsAdmin() bool {
	return u != nil && u.Role == "admin"
}

func (u *UserPublic) DisplayName() string {
	if u == nil {
		return ""
	}
	if u.FirstName == "" && u.LastName == "" {
		return u.Email
	}
	return u.FirstName + " " + u.LastName
}

type ServerStatus struct {
	DatabaseOnline       bool `json:"databaseOnline"`
	SelfSignupEnabled    bool `json:"selfSignupEnabled"`
	SMTPServerConfigured bool `json:"smtpServerConfigured"`
	M365Configured       bool `json:"m365Configured"`
	MatomoConfigured     bool `json:"matomoConfigured"`
}

// PublicKey is a server-issued API credential. Key is only present in the
// create response.
type PublicKey struct {
	UID         string                 `json:"uid,omitempty"`
	Name        string                 `json:"name" validate:"required"`
	Key         string                 `json:"key,omitempty"`
	IsActive    bool                   `json:"isActive"`
	ExpiresAt   *Timestamp             `json:"expiresAt"`
	AllowedIPs  []string               `json:"allowedIps"`
	CreatedAt   Timestamp              `json:"createdAt"`
	CreatedBy   string                 `json:"createdBy,omitempty"`
	Description string                 `json:"description,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// Deletable reports whether the key may be deleted. Active keys must be deactivated first.
func (k PublicKey) Deletable() bool {
	return !k.IsActive
}

type BackupFile struct {
	FileName  string    `json:"fileName"`
	CreatedAt Timestamp `json:"createdAt"`
}

type BackupSettings struct {
	Frequency   string `json:"frequency" validate:"oneof=daily weekly monthly"`
	CleanUpDays int    `json:"cleanUpDays" validate:"gte=0"`
}

type BackupOverview struct {
	Data       []BackupFile   `json:"data"`
	LastBackup *Timestamp     `json:"lastBackup"`
	Settings   BackupSettings `json:"settings"`
}

type UsersOverview struct {
	Data           []UserPublic `json:"data"`
	TodaysLogins   int          `json:"todaysLogins"`
	ActiveUsers    int          `json:"activeUsers"`
	Administrators int          `json:"administrators"`
}

type DatabaseHealth struct {
	LatencyMs     float64 `json:"latencyMs"`
	UptimeSeconds int64   `json:"uptimeSeconds"`
}
