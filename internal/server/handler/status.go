package handler

import (
	"net/http"

	"github.com/alanyoungcy/marketresolver/internal/domain"
)

// StatusHandler serves a summary of the running service.
type StatusHandler struct {
	status func() domain.ServiceStatus
}

// NewStatusHandler creates a StatusHandler that reports whatever status
// returns at request time.
func NewStatusHandler(status func() domain.ServiceStatus) *StatusHandler {
	return &StatusHandler{status: status}
}

// GetStatus responds with the current service status.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.status())
}
