package wizard

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cortexui/dashboard/internal/models"
	"github.com/go-playground/validator/v10"
)

const (
	// MaxImportSize is the largest accepted configuration file.
	MaxImportSize = 2 << 20

	// ExportFilename is the download name of an exported configuration.
	ExportFilename = "cortex-ui-config.json"
)

var (
	ErrNotJSONFile    = errors.New("configuration file must have a .json extension")
	ErrImportTooLarge = errors.New("configuration file exceeds 2 MB")
)

// SchemaError lists every problem found in an imported configuration.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// requiredKeys are the keys every section of an imported file must carry.
// Keys that may be absent or null in a saved configuration are not listed.
var requiredKeys = map[string][]string{
	"adminUser":  {"firstName", "lastName", "email", "password", "emailVerification"},
	"database":   {"uri", "dbName", "connectionTested"},
	"selfSignup": {"enabled"},
	"branding":   {"title"},
	"mailServer": {"type"},
	"analytics":  {},
	"license":    {"accepted"},
}

var validate = validator.New()

// ParseConfig checks a configuration file and decodes it. It does not touch
// any wizard state and is shared with the operator CLI.
func ParseConfig(filename string, size int64, r io.Reader) (*models.SetupData, error) {
	if !strings.EqualFold(filepath.Ext(filename), ".json") {
		return nil, ErrNotJSONFile
	}
	if size > MaxImportSize {
		return nil, ErrImportTooLarge
	}

	raw, err := io.ReadAll(io.LimitReader(r, MaxImportSize+1))
	if err != nil {
		return nil, fmt.Errorf("read configuration: %w", err)
	}
	if len(raw) > MaxImportSize {
		return nil, ErrImportTooLarge
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(raw, &doc); err != nil || doc == nil {
		return nil, &SchemaError{Problems: []string{"file is not a JSON object"}}
	}
	if problems := missingKeys(doc); len(problems) > 0 {
		return nil, &SchemaError{Problems: problems}
	}

	var data models.SetupData
	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&data); err != nil {
		return nil, &SchemaError{Problems: []string{err.Error()}}
	}

	if err := validate.Struct(&data); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			problems := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				problems = append(problems, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return nil, &SchemaError{Problems: problems}
		}
		return nil, err
	}
	return &data, nil
}

func missingKeys(doc map[string]json.RawMessage) []string {
	sections := make([]string, 0, len(requiredKeys))
	for s := range requiredKeys {
		sections = append(sections, s)
	}
	sort.Strings(sections)

	var problems []string
	for _, section := range sections {
		raw, ok := doc[section]
		if !ok {
			problems = append(problems, "missing section "+section)
			continue
		}
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
			problems = append(problems, section+" must be an object")
			continue
		}
		for _, key := range requiredKeys[section] {
			if v, ok := fields[key]; !ok || string(v) == "null" {
				problems = append(problems, "missing "+section+"."+key)
			}
		}
	}
	return problems
}

// Import replaces the whole aggregate with the contents of a configuration
// file. On failure the current data is kept and the loaded marker is cleared.
func (w *Wizard) Import(filename string, size int64, r io.Reader) error {
	data, err := ParseConfig(filename, size, r)

	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.configLoaded = false
		return err
	}
	data.GeneratedAt = ""
	data.Version = ""
	w.data = *data
	w.confirm = data.AdminUser.Password
	w.configLoaded = true
	return nil
}

// Export returns the indented configuration stamped with generation time and version.
func (w *Wizard) Export() ([]byte, error) {
	w.mu.Lock()
	snapshot := w.snapshotLocked()
	w.mu.Unlock()
	return json.MarshalIndent(snapshot, "", "  ")
}
