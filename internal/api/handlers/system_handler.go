package handlers

import (
	"net/http"

	"github.com/isdelr/ender-local/internal/monitoring"
)

// SystemHandler reports host capacity.
type SystemHandler struct {
	host monitoring.HostProbe
}

// NewSystemHandler creates a new SystemHandler.
func NewSystemHandler(host monitoring.HostProbe) *SystemHandler {
	return &SystemHandler{host: host}
}

// Get returns host memory and disk figures.
func (h *SystemHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.host.Stats()
	if err != nil {
		writeError(w, err, "Failed to read host stats")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}
