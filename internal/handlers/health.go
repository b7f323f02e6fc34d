package handlers

import (
	"net/http"
	"time"
)

// HealthHandler serves the liveness probe. It answers even when the
// orchestrator refused to start over missing credentials, so deploys can
// distinguish "process down" from "loop disabled".
type HealthHandler struct {
	StartedAt time.Time
	// OrchestratorRunning is false when startup validation disabled the loop.
	OrchestratorRunning bool
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	scheduler := "running"
	if !h.OrchestratorRunning {
		scheduler = "disabled"
	}
	writeJSON(w, map[string]any{
		"status":         "online",
		"uptime_seconds": int(time.Since(h.StartedAt).Seconds()),
		"scheduler":      scheduler,
	})
}
