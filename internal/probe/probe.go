// Package probe verifies third-party connection settings entered in the
// setup wizard and settings pages. Nothing a probe receives is persisted.
package probe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMissingFields is returned when a request lacks a required field.
var ErrMissingFields = errors.New("missing required fields")

// Outcome classifies a finished probe.
type Outcome int

const (
	// Passed means the target accepted the settings.
	Passed Outcome = iota
	// Failed means the target was reached and refused, or could not be reached.
	Failed
	// Errored means the probe itself did not complete, e.g. the request was cancelled.
	Errored
)

func (o Outcome) String() string {
	switch o {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return "errored"
	}
}

// OutcomeOf maps a probe error onto its Outcome.
func OutcomeOf(err error) Outcome {
	switch {
	case err == nil:
		return Passed
	case errors.Is(err, context.Canceled):
		return Errored
	default:
		return Failed
	}
}

// Port decodes from either a JSON number or a numeric string.
type Port int

func (p *Port) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*p = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("invalid port %q", s)
	}
	*p = Port(n)
	return nil
}

func missing(fields ...string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) == "" {
			return true
		}
	}
	return false
}
