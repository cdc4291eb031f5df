// Package wizard implements the multi-step setup flow: step sequencing,
// per-step gating, config import/export and the final submission.
package wizard

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cortexui/dashboard/internal/models"
)

// ConfigVersion is stamped on exported and submitted configurations.
const ConfigVersion = "1.0.0"

var (
	ErrUnknownSection = errors.New("unknown setup section")
	ErrInvalidPartial = errors.New("partial update must be a JSON object")
	ErrNoConfigLoaded = errors.New("no configuration file has been imported")
)

// Wizard holds one browser session's setup state. All methods are safe for
// concurrent use.
type Wizard struct {
	mu      sync.Mutex
	current Step
	data    models.SetupData
	confirm string

	configLoaded   bool
	downloadConfig bool
	submitting     bool
	submitted      bool

	now func() time.Time
}

func New() *Wizard {
	return &Wizard{
		data: models.DefaultSetupData(),
		now:  time.Now,
	}
}

// Current returns the active step.
func (w *Wizard) Current() Step {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.current
}

// Data returns a copy of the aggregated setup data.
func (w *Wizard) Data() models.SetupData {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.data.Clone()
}

// PasswordConfirmation returns the transient confirmation entered on the admin step.
func (w *Wizard) PasswordConfirmation() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.confirm
}

func (w *Wizard) ConfigLoaded() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.configLoaded
}

func (w *Wizard) Submitted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.submitted
}

// DownloadOnFinish reports whether the user asked for the config file after completion.
func (w *Wizard) DownloadOnFinish() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.downloadConfig
}

func (w *Wizard) SetDownloadOnFinish(v bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.downloadConfig = v
}

// CanProceed evaluates the gate of the current step.
func (w *Wizard) CanProceed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.canProceedLocked()
}

func (w *Wizard) canProceedLocked() bool {
	return stepSpecs[w.current].ready(&w.data, w.confirm)
}

// firstClosedLocked returns the first step before limit whose gate is closed.
func (w *Wizard) firstClosedLocked(limit Step) (Step, bool) {
	for s := Step(0); s < limit; s++ {
		if !stepSpecs[s].ready(&w.data, w.confirm) {
			return s, true
		}
	}
	return 0, false
}

// StepReady evaluates the gate of an arbitrary step against the current data.
func (w *Wizard) StepReady(s Step) bool {
	if !s.valid() {
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return stepSpecs[s].ready(&w.data, w.confirm)
}

// IsLast reports whether the wizard is on the final step.
func (w *Wizard) IsLast() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return int(w.current) == len(stepSpecs)-1
}

// Next advances one step. It is a no-op, returning false, when the current
// gate is closed or the wizard is already on the last step.
func (w *Wizard) Next() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if int(w.current) >= len(stepSpecs)-1 || !w.canProceedLocked() {
		return false
	}
	w.current++
	return true
}

// Back moves one step back. It is a no-op at the first step.
func (w *Wizard) Back() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == 0 {
		return false
	}
	w.current--
	return true
}

// SkipToEnd jumps to the license step. Only allowed after a successful import.
func (w *Wizard) SkipToEnd() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.configLoaded {
		return ErrNoConfigLoaded
	}
	w.current = StepLicense
	return nil
}

// UpdateStepData shallow-merges the JSON object partial into the named section.
// Fields absent from partial are kept. Verification flags cannot be raised
// through this path; they are cleared whenever their governing fields change.
//
// For the adminUser section the key "confirmPassword" sets the transient
// password confirmation instead of a SetupData field.
//
// Unless a configuration was imported, an update that closes the gate of an
// earlier step moves the wizard back to that step.
func (w *Wizard) UpdateStepData(section string, partial []byte) error {
	step, ok := Section(section)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSection, section)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(partial, &fields); err != nil || fields == nil {
		return ErrInvalidPartial
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	confirm := w.confirm
	if step == StepAdminUser {
		if raw, ok := fields["confirmPassword"]; ok {
			if err := json.Unmarshal(raw, &confirm); err != nil {
				return fmt.Errorf("confirmPassword: %w", err)
			}
			delete(fields, "confirmPassword")
		}
	}

	next := w.data.Clone()
	var err error
	switch step {
	case StepAdminUser:
		err = mergeSection(&next.AdminUser, fields)
	case StepDatabase:
		err = mergeSection(&next.Database, fields)
	case StepSelfSignup:
		err = mergeSection(&next.SelfSignup, fields)
	case StepBranding:
		err = mergeSection(&next.Branding, fields)
	case StepMailServer:
		err = mergeSection(&next.MailServer, fields)
	case StepAnalytics:
		err = mergeSection(&next.Analytics, fields)
	case StepLicense:
		err = mergeSection(&next.License, fields)
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", section, err)
	}

	settleFlags(&w.data, &next)
	w.data = next
	w.confirm = confirm
	if !w.configLoaded {
		if s, closed := w.firstClosedLocked(w.current); closed {
			w.current = s
		}
	}
	return nil
}

// Reset discards all state and starts over at the first step.
func (w *Wizard) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.current = 0
	w.data = models.DefaultSetupData()
	w.confirm = ""
	w.configLoaded = false
	w.downloadConfig = false
	w.submitting = false
	w.submitted = false
}

// snapshotLocked returns the data stamped with generation time and version.
func (w *Wizard) snapshotLocked() models.SetupData {
	out := w.data.Clone()
	out.GeneratedAt = w.now().UTC().Format(time.RFC3339)
	out.Version = ConfigVersion
	return out
}
