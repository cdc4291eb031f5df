package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func performRequest(handler gin.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request, _ = http.NewRequest("GET", "/test", nil)
	handler(c)
	return w
}

func parseResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	return resp
}

func TestSuccess(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Success(c, map[string]string{"name": "test"})
	})

	if w.Code != http.StatusOK {
		t.Errorf("expected status %d, got %d", http.StatusOK, w.Code)
	}

	resp := parseResponse(t, w)
	if !resp.IsOk {
		t.Error("expected isOk true")
	}
	if resp.Status != "OK" {
		t.Errorf("expected status 'OK', got %q", resp.Status)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok || data["name"] != "test" {
		t.Errorf("unexpected data %v", resp.Data)
	}
}

func TestSuccessMessage(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		SuccessMessage(c, "Gespeichert", nil)
	})

	resp := parseResponse(t, w)
	if !resp.IsOk || resp.Message != "Gespeichert" {
		t.Errorf("unexpected response %+v", resp)
	}
	if resp.Data != nil {
		t.Errorf("expected no data, got %v", resp.Data)
	}
}

func TestCreated(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Created(c, map[string]int{"id": 1})
	})

	if w.Code != http.StatusCreated {
		t.Errorf("expected status %d, got %d", http.StatusCreated, w.Code)
	}
	if resp := parseResponse(t, w); !resp.IsOk {
		t.Error("expected isOk true")
	}
}

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name       string
		handler    gin.HandlerFunc
		wantCode   int
		wantStatus string
	}{
		{"bad request", func(c *gin.Context) { BadRequest(c, "MISSING_FIELDS", "x") }, http.StatusBadRequest, "MISSING_FIELDS"},
		{"unauthorized", func(c *gin.Context) { Unauthorized(c, "x") }, http.StatusUnauthorized, "UNAUTHORIZED"},
		{"forbidden", func(c *gin.Context) { Forbidden(c, "x") }, http.StatusForbidden, "FORBIDDEN"},
		{"not found", func(c *gin.Context) { NotFound(c, "x") }, http.StatusNotFound, "NOT_FOUND"},
		{"conflict", func(c *gin.Context) { Conflict(c, "IN_FLIGHT", "x") }, http.StatusConflict, "IN_FLIGHT"},
		{"precondition", func(c *gin.Context) { PreconditionFailed(c, "NOT_TESTED", "x") }, http.StatusPreconditionFailed, "NOT_TESTED"},
		{"server error", func(c *gin.Context) { ServerError(c, "x") }, http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(tt.handler)
			if w.Code != tt.wantCode {
				t.Errorf("expected status %d, got %d", tt.wantCode, w.Code)
			}
			resp := parseResponse(t, w)
			if resp.IsOk {
				t.Error("error responses must carry isOk false")
			}
			if resp.Status != tt.wantStatus {
				t.Errorf("expected status %q, got %q", tt.wantStatus, resp.Status)
			}
		})
	}
}

func TestError_WithAppError(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, fmt.Errorf("wrapped: %w", NewBadRequest("MISSING_FIELDS", "validation failed")))
	})

	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status %d, got %d", http.StatusBadRequest, w.Code)
	}

	resp := parseResponse(t, w)
	if resp.Status != "MISSING_FIELDS" {
		t.Errorf("expected status MISSING_FIELDS, got %q", resp.Status)
	}
	if resp.Message != "validation failed" {
		t.Errorf("expected message 'validation failed', got %q", resp.Message)
	}
}

func TestError_WithGenericError(t *testing.T) {
	w := performRequest(func(c *gin.Context) {
		Error(c, errors.New("something went wrong"))
	})

	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.Code)
	}
	if resp := parseResponse(t, w); resp.Status != "INTERNAL_ERROR" {
		t.Errorf("expected INTERNAL_ERROR, got %q", resp.Status)
	}
}

func TestAppError_ErrorInterface(t *testing.T) {
	err := NewNotFound("user not found")
	if err.Error() != "user not found" {
		t.Errorf("expected 'user not found', got %q", err.Error())
	}
}
