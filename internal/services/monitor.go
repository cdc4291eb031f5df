package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cortexui/dashboard/internal/apiclient"
	"github.com/cortexui/dashboard/pkg/logger"
)

// Pinger checks backend reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BackendStatus is the last result of the reachability check.
type BackendStatus struct {
	Online       bool      `json:"online"`
	Checked      bool      `json:"checked"`
	LastChecked  time.Time `json:"lastChecked"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// BackendMonitor pings the API server on a schedule and keeps the last result.
type BackendMonitor struct {
	pinger   Pinger
	interval time.Duration
	hub      *StatusHub

	mu     sync.RWMutex
	status BackendStatus
}

// NewBackendMonitor creates a monitor. hub may be nil.
func NewBackendMonitor(p Pinger, interval time.Duration, hub *StatusHub) *BackendMonitor {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &BackendMonitor{pinger: p, interval: interval, hub: hub}
}

// Spec is the cron schedule for Check.
func (m *BackendMonitor) Spec() string {
	return fmt.Sprintf("@every %s", m.interval)
}

// Check pings once and stores the outcome.
func (m *BackendMonitor) Check(ctx context.Context) BackendStatus {
	ctx, cancel := context.WithTimeout(ctx, m.interval)
	defer cancel()

	err := m.pinger.Ping(ctx)
	seconds := int(m.interval.Seconds())

	status := BackendStatus{Online: err == nil, Checked: true, LastChecked: time.Now()}
	if err != nil {
		var apiErr *apiclient.APIError
		if errors.As(err, &apiErr) || errors.Is(err, apiclient.ErrUnauthorized) {
			status.ErrorMessage = fmt.Sprintf("Server nicht erreichbar. Versuche erneut in %d Sekunden.", seconds)
		} else {
			status.ErrorMessage = fmt.Sprintf("Verbindung zum API Server fehlgeschlagen. Versuche erneut in %d Sekunden.", seconds)
		}
	}

	m.mu.Lock()
	firstCheck := !m.status.Checked
	wasOnline := m.status.Online || firstCheck
	m.status = status
	m.mu.Unlock()

	if m.hub != nil && (firstCheck || wasOnline != status.Online) {
		m.hub.Publish(status)
	}

	if wasOnline && !status.Online {
		logger.Warn().Err(err).Msg("backend unreachable")
	} else if !wasOnline && status.Online {
		logger.Info().Msg("backend reachable again")
	}
	return status
}

func (m *BackendMonitor) Status() BackendStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}
