package handlers

import (
	"net/http"

	"github.com/signalscan/scanner/internal/scheduler"
	"github.com/signalscan/scanner/pkg/logger"
)

// JobsHandler serves scheduled-job statistics
type JobsHandler struct {
	scheduler *scheduler.Scheduler
	logger    *logger.Logger
}

// NewJobsHandler creates a new jobs handler
func NewJobsHandler(s *scheduler.Scheduler, log *logger.Logger) *JobsHandler {
	return &JobsHandler{scheduler: s, logger: log}
}

// GetStats returns run statistics for every registered job
// GET /api/jobs
func (h *JobsHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.scheduler.GetJobStats())
}
