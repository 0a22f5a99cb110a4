package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/calv06/snag/internal/config"
	"github.com/calv06/snag/internal/services"
)

func newTestServer(t *testing.T) *http.Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8080
	cfg.Server.RateLimit = 100
	cfg.Server.RateWindow = time.Minute
	cfg.Download.Dir = t.TempDir()

	srv, limiter := New(cfg, "test", services.NewJobTracker(time.Hour), services.NewRegistry(), zap.NewNop())
	t.Cleanup(limiter.Stop)
	return srv
}

func TestServerMountsStatusAPI(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{"/health", "/api/status", "/api/jobs"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "1.2.3.4:5678"
		rec := httptest.NewRecorder()
		srv.Handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "GET %s", path)
	}
}

func TestServerSetsSecurityHeaders(t *testing.T) {
	srv := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "1.2.3.4:5678"
	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, req)

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "100", rec.Header().Get("X-RateLimit-Limit"))
}

func TestServerAddrAndTimeouts(t *testing.T) {
	srv := newTestServer(t)

	assert.Equal(t, "127.0.0.1:8080", srv.Addr)
	require.NotZero(t, srv.ReadHeaderTimeout)
	require.NotZero(t, srv.WriteTimeout)
	assert.Equal(t, 1<<20, srv.MaxHeaderBytes)
}
