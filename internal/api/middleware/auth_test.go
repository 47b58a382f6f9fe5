package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newEngine(h ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(h...)
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	return r
}

func do(r *gin.Engine, header, value string) int {
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	r.ServeHTTP(rr, req)
	return rr.Code
}

func TestAPIKeyAuth(t *testing.T) {
	r := newEngine(APIKeyAuth(AuthConfig{Enabled: true, APIKeys: []string{"sk_test_123456"}}, zap.NewNop()))

	assert.Equal(t, http.StatusUnauthorized, do(r, "", ""))
	assert.Equal(t, http.StatusForbidden, do(r, "X-API-Key", "wrong"))
	assert.Equal(t, http.StatusOK, do(r, "X-API-Key", "sk_test_123456"))
	assert.Equal(t, http.StatusOK, do(r, "Authorization", "Bearer sk_test_123456"))
}

func TestAPIKeyAuth_Disabled(t *testing.T) {
	r := newEngine(APIKeyAuth(AuthConfig{Enabled: false}, zap.NewNop()))
	assert.Equal(t, http.StatusOK, do(r, "", ""))
}

func TestMaskAPIKey(t *testing.T) {
	assert.Equal(t, "****", maskAPIKey("short"))
	assert.Equal(t, "sk_t****3456", maskAPIKey("sk_test_123456"))
}

func TestKnownKey(t *testing.T) {
	keys := [][]byte{[]byte("alpha-key-1"), []byte("beta-key-22")}
	assert.True(t, knownKey(keys, "beta-key-22"))
	assert.False(t, knownKey(keys, "beta-key-2"))
	assert.False(t, knownKey(nil, "alpha-key-1"))
}

func TestRateLimit_PerAPIKey(t *testing.T) {
	r := newEngine(
		APIKeyAuth(AuthConfig{Enabled: true, APIKeys: []string{"sk_test_aaaaaa", "sk_test_bbbbbb"}}, zap.NewNop()),
		RateLimit(RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstSize: 1}),
	)
	assert.Equal(t, http.StatusOK, do(r, "X-API-Key", "sk_test_aaaaaa"))
	assert.Equal(t, http.StatusTooManyRequests, do(r, "X-API-Key", "sk_test_aaaaaa"))
	// 另一个 key 独立计数
	assert.Equal(t, http.StatusOK, do(r, "X-API-Key", "sk_test_bbbbbb"))
}

func TestClientLimiters_EvictsIdle(t *testing.T) {
	now := time.Now()
	l := &clientLimiters{every: 1, burst: 1, buckets: map[string]*bucket{}, lastSweep: now}
	assert.True(t, l.allow("ip:a", now))
	assert.Len(t, l.buckets, 1)

	later := now.Add(2 * limiterIdle)
	assert.True(t, l.allow("ip:b", later))
	assert.Len(t, l.buckets, 1, "空闲的令牌桶应被回收")
}

func TestRateLimit_Burst(t *testing.T) {
	r := newEngine(RateLimit(RateLimitConfig{Enabled: true, RequestsPerMin: 1, BurstSize: 2}))
	assert.Equal(t, http.StatusOK, do(r, "", ""))
	assert.Equal(t, http.StatusOK, do(r, "", ""))
	assert.Equal(t, http.StatusTooManyRequests, do(r, "", ""))
}
