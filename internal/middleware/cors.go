package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// CORS restricts browser access to the configured origins. With no origins
// configured it falls back to wildcard with credentials disabled.
func CORS(origins []string, log *zap.Logger) func(http.Handler) http.Handler {
	if len(origins) > 0 {
		log.Info("cors restricted", zap.Strings("origins", origins))
		return cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
			MaxAge:           86400,
		})
	}

	log.Warn("cors open, set server.cors_origins to restrict")
	return cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           86400,
	})
}
