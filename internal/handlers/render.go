package handlers

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/cortexui/dashboard/internal/middleware"
	"github.com/cortexui/dashboard/internal/models"
	"github.com/cortexui/dashboard/internal/services"
	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/gin-gonic/gin"
)

//go:embed templates/*
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

// StaticFS serves the embedded assets below /static/.
func StaticFS() http.FileSystem {
	sub, _ := fs.Sub(staticFS, "static")
	return http.FS(sub)
}

// Renderer renders pages. Each page template is parsed into a clone of the
// base layout so the "content" blocks of different pages do not collide.
type Renderer struct {
	base        *template.Template
	templatesFS fs.FS
}

func NewRenderer() (*Renderer, error) {
	base, err := template.New("").Funcs(templateFuncs()).ParseFS(templatesFS, "templates/base.html")
	if err != nil {
		return nil, fmt.Errorf("parse base template: %w", err)
	}
	return &Renderer{base: base, templatesFS: templatesFS}, nil
}

// PageData is passed to every page.
type PageData struct {
	Title       string
	CurrentPath string
	WhiteLabel  *models.WhiteLabelConfig
	User        *models.UserPublic
	Backend     services.BackendStatus
	Flash       *FlashMessage
	Data        any
}

// FlashMessage is an inline message rendered above the page content.
type FlashMessage struct {
	Type    string // "success", "error", "warning", "info"
	Message string
}

func (r *Renderer) render(w http.ResponseWriter, name string, data PageData) error {
	tmpl, err := r.base.Clone()
	if err != nil {
		return fmt.Errorf("clone template: %w", err)
	}
	path := "templates/" + name
	if _, err := tmpl.ParseFS(r.templatesFS, path); err != nil {
		return fmt.Errorf("parse page template %s: %w", path, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tmpl.ExecuteTemplate(w, "base", data)
}

// renderFragment renders a standalone template that does not use the layout.
func (r *Renderer) renderFragment(w http.ResponseWriter, name string, data any) error {
	tmpl, err := template.New("").Funcs(templateFuncs()).ParseFS(r.templatesFS, "templates/"+name)
	if err != nil {
		return fmt.Errorf("parse fragment %s: %w", name, err)
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return tmpl.ExecuteTemplate(w, name, data)
}

// page renders name for the current session with its branding, user and
// backend state filled in.
func (d *Deps) page(c *gin.Context, status int, name, title string, flash *FlashMessage, data any) {
	app := middleware.App(c)
	wl := app.WhiteLabel()
	if wl == nil {
		if err := app.RefreshWhiteLabel(c.Request.Context()); err != nil {
			logger.Debug().Err(err).Msg("white label unavailable")
		}
		wl = app.WhiteLabel()
	}

	pd := PageData{
		Title:       title,
		CurrentPath: c.Request.URL.Path,
		WhiteLabel:  wl,
		User:        app.User(),
		Flash:       flash,
		Data:        data,
	}
	if d.Monitor != nil {
		pd.Backend = d.Monitor.Status()
	}

	c.Status(status)
	if err := d.Renderer.render(c.Writer, name, pd); err != nil {
		logger.Error().Err(err).Str("template", name).Msg("render failed")
		c.String(http.StatusInternalServerError, "Interner Fehler")
	}
}

func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"formatTime": formatTime,
		"json":       jsonEncode,
		"dict":       dict,
		"add":        func(a, b int) int { return a + b },
		"markdown":   markdown,
		"contains":   strings.Contains,
		"join":       strings.Join,
		"appTitle":   appTitle,
		"safeURL":    safeURL,
	}
}

func formatTime(v any) string {
	var t time.Time
	switch val := v.(type) {
	case time.Time:
		t = val
	case *time.Time:
		if val != nil {
			t = *val
		}
	case models.Timestamp:
		t = val.Time
	case *models.Timestamp:
		if val != nil {
			t = val.Time
		}
	}
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("02.01.2006 15:04")
}

// jsonEncode is used to hand server state to the page scripts.
func jsonEncode(v any) template.JS {
	b, err := json.Marshal(v)
	if err != nil {
		return template.JS("null")
	}
	return template.JS(b)
}

func dict(values ...any) (map[string]any, error) {
	if len(values)%2 != 0 {
		return nil, fmt.Errorf("dict needs key/value pairs")
	}
	m := make(map[string]any, len(values)/2)
	for i := 0; i < len(values); i += 2 {
		key, ok := values[i].(string)
		if !ok {
			return nil, fmt.Errorf("dict key %v is not a string", values[i])
		}
		m[key] = values[i+1]
	}
	return m, nil
}

func markdown(src string) template.HTML {
	out, err := services.RenderMarkdown([]byte(src))
	if err != nil {
		return template.HTML(template.HTMLEscapeString(src))
	}
	return out
}

func appTitle(wl *models.WhiteLabelConfig) string {
	if wl == nil || wl.Title == "" {
		return "CortexUI"
	}
	return wl.Title
}

// safeURL lets image data URLs through html/template's URL filter.
func safeURL(s string) template.URL {
	if strings.HasPrefix(s, "data:image/") {
		return template.URL(s)
	}
	return ""
}
