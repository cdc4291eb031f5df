package services

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"

	"github.com/cortexui/dashboard/internal/models"
)

// MaxLogoSize is the largest accepted branding logo.
const MaxLogoSize = 5 << 20

var (
	ErrLogoType     = errors.New("Nur JPG, PNG oder SVG Dateien sind erlaubt")
	ErrLogoTooLarge = errors.New("Das Logo darf maximal 5 MB groß sein")
	ErrMetadata     = errors.New("metadata must be a JSON object")
)

var logoTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".svg":  "image/svg+xml",
}

// LogoFromUpload validates an uploaded logo and stores it as a data URL.
func LogoFromUpload(name string, data []byte, lastModified string) (*models.WhiteLabelLogo, error) {
	contentType, ok := logoTypes[strings.ToLower(filepath.Ext(name))]
	if !ok {
		return nil, ErrLogoType
	}
	if len(data) > MaxLogoSize {
		return nil, ErrLogoTooLarge
	}
	if contentType != "image/svg+xml" {
		if sniffed := http.DetectContentType(data); sniffed != contentType {
			return nil, fmt.Errorf("%w: content is %s", ErrLogoType, sniffed)
		}
	}
	return &models.WhiteLabelLogo{
		ContentType:  contentType,
		Name:         filepath.Base(name),
		Data:         "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data),
		LastModified: models.LastModified(lastModified),
	}, nil
}

// CleanObject marshals v and removes empty strings, nulls and objects left
// empty by that, at every depth. Arrays are kept as they are.
func CleanObject(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	cleanMap(m)
	return m, nil
}

func cleanMap(m map[string]interface{}) {
	for k, v := range m {
		switch val := v.(type) {
		case nil:
			delete(m, k)
		case string:
			if val == "" {
				delete(m, k)
			}
		case map[string]interface{}:
			cleanMap(val)
			if len(val) == 0 {
				delete(m, k)
			}
		}
	}
}

// Unchanged compares two values by their JSON form, so nil and empty
// collections of the wire format are treated alike.
func Unchanged(a, b interface{}) bool {
	normalize := func(v interface{}) (interface{}, bool) {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		var out interface{}
		if err := json.Unmarshal(raw, &out); err != nil {
			return nil, false
		}
		return out, true
	}
	na, okA := normalize(a)
	nb, okB := normalize(b)
	return okA && okB && reflect.DeepEqual(na, nb)
}

var ipSeparator = regexp.MustCompile(`[,\n]`)

// ParseAllowedIPs splits the allowed-IPs field on commas and newlines. Entries
// are trimmed and blanks dropped; nil means no restriction was entered.
func ParseAllowedIPs(input string) []string {
	var out []string
	for _, part := range ipSeparator.Split(input, -1) {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// AllowsAnyIP reports whether the list leaves the key unrestricted.
func AllowsAnyIP(ips []string) bool {
	if len(ips) == 0 {
		return true
	}
	for _, ip := range ips {
		if ip == "*" {
			return true
		}
	}
	return false
}

// ParseMetadata parses the metadata text field. Blank input yields nil.
func ParseMetadata(input string) (map[string]interface{}, error) {
	if strings.TrimSpace(input) == "" {
		return nil, nil
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(input), &m); err != nil || m == nil {
		return nil, ErrMetadata
	}
	return m, nil
}
