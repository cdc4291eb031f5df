package middleware

import (
	"bytes"
	"context"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/cortexui/dashboard/internal/models"
	"github.com/cortexui/dashboard/internal/session"
	"github.com/cortexui/dashboard/pkg/logger"
	"github.com/gin-gonic/gin"
)

const maxAuditBody = 2000

// AuditRecorder stores audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, e *models.AuditEntry) error
}

// AuditLog records mutating requests (POST/PUT/DELETE) of logged-in users.
func AuditLog(store AuditRecorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		method := c.Request.Method
		if method != "POST" && method != "PUT" && method != "DELETE" {
			c.Next()
			return
		}

		var bodySnippet string
		if c.Request.Body != nil && !strings.HasPrefix(c.ContentType(), "multipart/") {
			bodyBytes, _ := io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			bodySnippet = maskSensitiveFields(string(bodyBytes))
			if len(bodySnippet) > maxAuditBody {
				bodySnippet = bodySnippet[:maxAuditBody] + "...[truncated]"
			}
		}

		c.Next()

		var subject string
		if v, ok := c.Get(ContextApp); ok {
			if u := v.(*session.AppContext).User(); u != nil {
				subject = u.Email
			}
		}

		module, action := parseRouteInfo(c.FullPath(), method)
		entry := &models.AuditEntry{
			Module:    module,
			Action:    action,
			Subject:   subject,
			Method:    method,
			Path:      c.Request.URL.Path,
			Status:    c.Writer.Status(),
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Body:      bodySnippet,
			CreatedAt: time.Now(),
		}

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := store.Record(ctx, entry); err != nil {
			logger.Warn().Err(err).Str("path", entry.Path).Msg("failed to write audit entry")
		}
	}
}

// parseRouteInfo derives module and action from a gin route pattern,
// e.g. "/ui/api/public-keys/:uid" + "PUT" gives "Public Keys", "Update".
func parseRouteInfo(fullPath, method string) (module, action string) {
	path := strings.TrimPrefix(fullPath, "/ui/api/")
	path = strings.TrimPrefix(path, "/")

	parts := strings.SplitN(path, "/", 2)
	module = parts[0]
	if module == "" {
		module = "unknown"
	}

	words := strings.Fields(strings.ReplaceAll(module, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	module = strings.Join(words, " ")

	switch method {
	case "POST":
		action = "Create"
	case "PUT":
		action = "Update"
	case "DELETE":
		action = "Delete"
	default:
		action = method
	}
	return module, action
}

// sensitiveValue matches a JSON string value or a form value of a secret key.
var sensitiveValue = regexp.MustCompile(`(?i)("(?:password|pass|confirmPassword|secretKey|clientSecret|matomoApiKey|apiKey|token|accessToken|code|uri)"\s*:\s*")((?:[^"\\]|\\.)*)(")|((?:^|&)(?:password|pass|secretKey|clientSecret|token|code)=)([^&]*)`)

// maskSensitiveFields replaces every secret value in a JSON or form body.
func maskSensitiveFields(body string) string {
	return sensitiveValue.ReplaceAllStringFunc(body, func(m string) string {
		sub := sensitiveValue.FindStringSubmatch(m)
		if sub[1] != "" {
			return sub[1] + "***" + sub[3]
		}
		return sub[4] + "***"
	})
}
