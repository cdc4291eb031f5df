package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gin-gonic/gin"
)

func rateLimitedRouter(rl *RateLimiter, extra ...gin.HandlerFunc) *gin.Engine {
	router := gin.New()
	router.Use(extra...)
	router.Use(rl.Middleware())
	router.POST("/login", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func post(router *gin.Engine, remote string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = remote
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name     string
		rps      float64
		burst    int
		requests []string
		want     []int
	}{
		{
			name:     "within burst",
			rps:      10,
			burst:    3,
			requests: []string{"10.0.0.1:1", "10.0.0.1:2", "10.0.0.1:3"},
			want:     []int{200, 200, 200},
		},
		{
			name:     "burst exceeded",
			rps:      0.1,
			burst:    2,
			requests: []string{"10.0.0.1:1", "10.0.0.1:2", "10.0.0.1:3"},
			want:     []int{200, 200, 429},
		},
		{
			name:     "separate budgets per ip",
			rps:      0.1,
			burst:    1,
			requests: []string{"10.0.0.1:1", "10.0.0.2:1", "10.0.0.1:2"},
			want:     []int{200, 200, 429},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(tt.rps, tt.burst)
			defer rl.Stop()
			router := rateLimitedRouter(rl)

			for i, remote := range tt.requests {
				if w := post(router, remote); w.Code != tt.want[i] {
					t.Errorf("request %d from %s: got %d, want %d", i, remote, w.Code, tt.want[i])
				}
			}
		})
	}
}

func TestRateLimit_RetryAfterAndToast(t *testing.T) {
	rl := NewRateLimiter(0.1, 1)
	defer rl.Stop()

	m := newTestManager(&stubBackend{})
	app, _ := m.Resolve(context.Background(), "")
	router := rateLimitedRouter(rl, func(c *gin.Context) {
		c.Set(ContextApp, app)
	})

	post(router, "10.0.0.9:1")
	w := post(router, "10.0.0.9:2")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", w.Code)
	}
	secs, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || secs < 1 || secs > 10 {
		t.Errorf("Retry-After = %q", w.Header().Get("Retry-After"))
	}
	if len(app.Queue.Pending()) != 1 {
		t.Errorf("expected one warning toast, got %d", len(app.Queue.Pending()))
	}
	if rl.Clients() != 1 {
		t.Errorf("Clients() = %d", rl.Clients())
	}
}
