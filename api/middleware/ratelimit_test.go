package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_RefillsOverTime(t *testing.T) {
	l := NewLimiter(4, 2)
	start := time.Unix(0, 0)
	now := start
	l.now = func() time.Time { return now }

	ok, left, _ := l.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 1, left)
	ok, _, _ = l.Allow("a")
	assert.True(t, ok)
	ok, left, wait := l.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, 0, left)
	assert.Equal(t, 250*time.Millisecond, wait)

	now = start.Add(250 * time.Millisecond)
	ok, _, _ = l.Allow("a")
	assert.True(t, ok)

	now = start.Add(time.Hour)
	assert.Equal(t, 2, remaining(l.clients["a"].limiter, now))
}

func TestLimiter_PerKey(t *testing.T) {
	l := NewLimiter(1, 1)
	now := time.Unix(100, 0)
	l.now = func() time.Time { return now }

	ok, _, _ := l.Allow("a")
	assert.True(t, ok)
	ok, _, wait := l.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Second, wait)
	ok, _, _ = l.Allow("b")
	assert.True(t, ok)
}

func TestLimiter_SweepsIdleClients(t *testing.T) {
	l := NewLimiter(1, 1)
	now := time.Unix(100, 0)
	l.now = func() time.Time { return now }
	l.Allow("a")
	require.Len(t, l.clients, 1)

	now = now.Add(idleLimiterTTL + 2*time.Minute)
	l.Allow("b")
	assert.Len(t, l.clients, 1)
	_, kept := l.clients["b"]
	assert.True(t, kept)
}

func TestRateLimit_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewLimiter(1, 2)
	now := time.Unix(100, 0)
	l.now = func() time.Time { return now }

	r := gin.New()
	r.POST("/orders", RateLimit(l), func(c *gin.Context) { c.Status(http.StatusCreated) })

	codes := make([]int, 0, 3)
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders", nil))
		codes = append(codes, w.Code)
		last = w
	}
	assert.Equal(t, []int{http.StatusCreated, http.StatusCreated, http.StatusTooManyRequests}, codes)
	assert.Equal(t, "1", last.Header().Get("Retry-After"))
	assert.Equal(t, "2", last.Header().Get("X-RateLimit-Limit"))
	assert.Contains(t, last.Header().Get("Content-Type"), "application/problem+json")
	assert.Contains(t, last.Body.String(), "rate-limited")
}

func TestRateLimit_NilLimiterPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RateLimit(nil), func(c *gin.Context) { c.Status(http.StatusOK) })
	for i := 0; i < 5; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
