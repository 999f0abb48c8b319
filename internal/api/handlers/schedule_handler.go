package handlers

import (
	"net/http"
	"time"
)

// BackupScheduler is the part of the backup scheduler exposed over HTTP.
type BackupScheduler interface {
	Spec() string
	Next() (time.Time, bool)
	RunNow() (int, error)
}

// ScheduleHandler handles HTTP requests related to the backup schedule.
type ScheduleHandler struct {
	scheduler BackupScheduler
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(scheduler BackupScheduler) *ScheduleHandler {
	return &ScheduleHandler{scheduler: scheduler}
}

type scheduleResponse struct {
	Schedule string     `json:"schedule"`
	Enabled  bool       `json:"enabled"`
	NextRun  *time.Time `json:"nextRun,omitempty"`
}

// Get describes the configured backup schedule.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	resp := scheduleResponse{Schedule: h.scheduler.Spec(), Enabled: h.scheduler.Spec() != ""}
	if next, ok := h.scheduler.Next(); ok {
		resp.NextRun = &next
	}
	writeJSON(w, http.StatusOK, resp)
}

// Run backs up every server now.
func (h *ScheduleHandler) Run(w http.ResponseWriter, r *http.Request) {
	n, err := h.scheduler.RunNow()
	if err != nil {
		writeError(w, err, "Backup run failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"backups": n})
}
