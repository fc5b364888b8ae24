package limiter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_RejectsAfterBurst(t *testing.T) {
	gin.SetMode(gin.TestMode)
	l := NewIPRateLimiter(0, 2)
	router := gin.New()
	router.Use(l.Middleware())
	router.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	codes := make([]int, 0, 3)
	for n := 0; n < 3; n++ {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = "10.1.1.1:1234"
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestSweep_RemovesIdleBuckets(t *testing.T) {
	l := NewIPRateLimiter(1, 1)
	l.GetLimiter("a")
	busy := l.GetLimiter("b")
	require.True(t, busy.Allow())

	removed := l.Sweep(time.Now())
	assert.Equal(t, 1, removed)
	assert.Len(t, l.limits, 1)
}
