package models

import "time"

// Session is a browser session. The backend bearer token is stored sealed.
type Session struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	SealedToken []byte    `json:"-"`
	Subject     string    `gorm:"size:255;index" json:"subject"`
	ExpiresAt   time.Time `gorm:"index" json:"expires_at"`
	LastSeenAt  time.Time `json:"last_seen_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (Session) TableName() string { return "sessions" }

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && now.After(s.ExpiresAt)
}
