package wizard

import (
	"context"
	"errors"
	"fmt"

	"github.com/cortexui/dashboard/internal/apiclient"
)

var (
	ErrLicenseNotAccepted = errors.New("license has not been accepted")
	ErrNotReady           = errors.New("setup is not on the last step or the step is incomplete")
	ErrSubmitInFlight     = errors.New("setup submission already in progress")
	ErrAlreadySubmitted   = errors.New("setup has already been submitted")
)

// Completer receives the finished configuration.
type Completer interface {
	CompleteSetup(ctx context.Context, payload interface{}) (*apiclient.Result, error)
}

// Submit posts the configuration exactly once. It refuses to send anything
// while the license is unaccepted, while another submission is running, or
// after one has succeeded. Without an imported configuration every step's
// gate must be open. A failed submission may be retried.
func (w *Wizard) Submit(ctx context.Context, c Completer) error {
	w.mu.Lock()
	switch {
	case w.submitted:
		w.mu.Unlock()
		return ErrAlreadySubmitted
	case w.submitting:
		w.mu.Unlock()
		return ErrSubmitInFlight
	case !w.data.License.Accepted:
		w.mu.Unlock()
		return ErrLicenseNotAccepted
	case int(w.current) != len(stepSpecs)-1 || !w.canProceedLocked():
		w.mu.Unlock()
		return ErrNotReady
	}
	if !w.configLoaded {
		if _, closed := w.firstClosedLocked(StepLicense); closed {
			w.mu.Unlock()
			return ErrNotReady
		}
	}
	payload := w.snapshotLocked()
	w.submitting = true
	w.mu.Unlock()

	_, err := c.CompleteSetup(ctx, payload)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false
	if err != nil {
		return fmt.Errorf("complete setup: %w", err)
	}
	w.submitted = true
	return nil
}
