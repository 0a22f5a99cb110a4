package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/calv06/snag/internal/config"
	"github.com/calv06/snag/internal/middleware"
	"github.com/calv06/snag/internal/routes"
	"github.com/calv06/snag/internal/services"
)

// New assembles the status API server. The rate limiter is returned so the
// caller can stop its cleanup loop on shutdown.
func New(cfg *config.Config, version string, jobs *services.JobTracker, registry *services.Registry, log *zap.Logger) (*http.Server, *middleware.RateLimiter) {
	r := chi.NewRouter()

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow)

	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(log.Named("http")))
	r.Use(chimw.Recoverer)
	r.Use(securityHeaders)
	r.Use(middleware.CORS(cfg.Server.CORSOrigins, log))
	r.Use(limiter.Middleware)

	routes.StatusRoutes(r, routes.StatusDeps{
		Version:     version,
		StartedAt:   time.Now(),
		DownloadDir: cfg.Download.Dir,
		Jobs:        jobs,
		Registry:    registry,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
	return srv, limiter
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}
