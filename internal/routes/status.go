package routes

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/calv06/snag/internal/services"
	"github.com/calv06/snag/internal/util"
)

// StatusDeps carries the read-only views the status API exposes.
type StatusDeps struct {
	Version     string
	StartedAt   time.Time
	DownloadDir string
	Jobs        *services.JobTracker
	Registry    *services.Registry
}

// StatusRoutes mounts the health and monitoring endpoints.
func StatusRoutes(r chi.Router, deps StatusDeps) {
	r.Get("/health", deps.handleHealth)
	r.Get("/api/status", deps.handleStatus)
	r.Get("/api/jobs", deps.handleJobs)
}

func (d StatusDeps) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": d.Version,
	})
}

func (d StatusDeps) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := map[string]interface{}{
		"version":     d.Version,
		"uptime":      time.Since(d.StartedAt).Round(time.Second).String(),
		"activeJobs":  d.Jobs.ActiveCount(),
		"activeFiles": d.Registry.Len(),
	}
	if disk, err := util.DiskSpace(d.DownloadDir); err == nil {
		resp["disk"] = map[string]interface{}{
			"availGB": disk.AvailGB,
			"totalGB": disk.TotalGB,
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func (d StatusDeps) handleJobs(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"jobs": d.Jobs.Snapshot(),
	})
}
