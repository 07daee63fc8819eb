package httpapi

import (
	"net/http"
	"time"
)

// HealthHandler 存活探针
type HealthHandler struct {
	startTime time.Time
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{startTime: time.Now()}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": apiVersion,
		"uptime":  int(time.Since(h.startTime).Seconds()),
	})
}
