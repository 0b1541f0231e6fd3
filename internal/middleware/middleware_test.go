package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mekongwire/reader-pulse/internal/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestAuthMiddleware(t *testing.T) {
	auth := NewAuthMiddleware(config.AuthConfig{
		Enabled:   true,
		MasterKey: "master-key",
		SkipPaths: []string{"/health", "/analytics/track"},
	}, zap.NewNop())
	handler := auth.Handler(okHandler)

	t.Run("missing key rejected", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/dashboard", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("wrong key rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/analytics/dashboard", nil)
		req.Header.Set(AuthHeaderName, "wrong")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("header key accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/analytics/dashboard", nil)
		req.Header.Set(AuthHeaderName, "master-key")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("query key accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/analytics/dashboard?api_key=master-key", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("skip path bypasses auth", func(t *testing.T) {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analytics/track", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	})
}

func TestAuthMiddlewareDisabled(t *testing.T) {
	auth := NewAuthMiddleware(config.AuthConfig{Enabled: false}, zap.NewNop())
	handler := auth.Handler(okHandler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/dashboard", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimitMiddleware(config.RateLimitConfig{
		Enabled:     true,
		TrackRPS:    1,
		TrackBurst:  1000,
		ReportRPS:   1,
		ReportBurst: 2,
	}, zap.NewNop())
	handler := rl.Handler(okHandler)

	// The report bucket drains after its burst.
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/dashboard", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analytics/dashboard", nil))
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	// The tracking bucket is independent and still has capacity.
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/analytics/track", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRecoveryMiddleware(t *testing.T) {
	rm := NewRecoveryMiddleware(zap.NewNop())
	handler := rm.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:4567"
	require.Equal(t, "10.0.0.1", ClientIP(req))

	req.Header.Set("X-Real-IP", "203.0.113.7")
	require.Equal(t, "203.0.113.7", ClientIP(req))

	req.Header.Set("X-Forwarded-For", "198.51.100.2, 10.0.0.1")
	require.Equal(t, "198.51.100.2", ClientIP(req))
}
