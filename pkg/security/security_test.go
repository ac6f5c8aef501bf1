package security

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(middlewares ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middlewares...)
	r.GET("/api/tests", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func get(r http.Handler, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/tests", nil)
	req.RemoteAddr = "203.0.113.7:5000"
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiterUsesResponseEnvelope(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(2, time.Minute)
	limiter.now = func() time.Time { return now }
	r := newRouter(limiter.Middleware())

	assert.Equal(t, http.StatusOK, get(r, "").Code)
	assert.Equal(t, http.StatusOK, get(r, "").Code)

	w := get(r, "")
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "30", w.Header().Get("Retry-After"))
	var body struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, http.StatusTooManyRequests, body.Code)
	assert.Equal(t, "too many requests", body.Message)

	// 被拒绝的请求不消耗令牌，30 秒后恢复一个
	now = now.Add(30 * time.Second)
	assert.Equal(t, http.StatusOK, get(r, "").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(r, "").Code)
}

func TestRateLimiterSweepsIdleClients(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(10, time.Minute)
	limiter.now = func() time.Time { return now }
	r := newRouter(limiter.Middleware())
	get(r, "")

	assert.Equal(t, 0, limiter.Sweep())
	now = now.Add(4 * time.Minute)
	assert.Equal(t, 1, limiter.Sweep())
}

func TestCORSFollowsOriginPolicy(t *testing.T) {
	policy := NewOriginPolicy([]string{"http://localhost:3000/", " "})
	r := newRouter(CORS(policy), Secure())

	w := get(r, "http://localhost:3000")
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	w = get(r, "http://evil.example")
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	req := httptest.NewRequest(http.MethodOptions, "/api/tests", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestOriginPolicyCheckOrigin(t *testing.T) {
	policy := NewOriginPolicy([]string{"https://app.example.com"})

	req := httptest.NewRequest(http.MethodGet, "http://api.example.com/api/sessions/1/ws", nil)
	assert.True(t, policy.CheckOrigin(req), "non-browser clients send no origin")

	req.Header.Set("Origin", "https://APP.example.com")
	assert.True(t, policy.CheckOrigin(req))

	req.Header.Set("Origin", "http://api.example.com")
	assert.True(t, policy.CheckOrigin(req), "same host")

	req.Header.Set("Origin", "https://evil.example")
	assert.False(t, policy.CheckOrigin(req))

	assert.True(t, NewOriginPolicy([]string{"*"}).Allowed("https://anything.example"))
	assert.False(t, NewOriginPolicy(nil).Allowed(""))
}
