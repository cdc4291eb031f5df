package services

import (
	"bytes"
	_ "embed"
	"html/template"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
)

//go:embed assets/LICENSE.md
var licenseMarkdown []byte

var (
	licenseOnce sync.Once
	licenseHTML template.HTML
	licenseErr  error
)

// RenderMarkdown converts markdown to sanitized HTML.
func RenderMarkdown(src []byte) (template.HTML, error) {
	var buf bytes.Buffer
	if err := goldmark.Convert(src, &buf); err != nil {
		return "", err
	}
	safe := bluemonday.UGCPolicy().SanitizeBytes(buf.Bytes())
	return template.HTML(safe), nil
}

// LicenseHTML returns the rendered license text shown on the last setup step.
func LicenseHTML() (template.HTML, error) {
	licenseOnce.Do(func() {
		licenseHTML, licenseErr = RenderMarkdown(licenseMarkdown)
	})
	return licenseHTML, licenseErr
}
