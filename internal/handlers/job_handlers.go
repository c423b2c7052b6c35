package handlers

import (
	"context"
	"net/http"

	"feeledger/internal/common"

	"github.com/labstack/echo/v4"
)

// OverdueRefresher is the part of the background scheduler the job endpoints
// drive.
type OverdueRefresher interface {
	JobStatusProvider
	RefreshOverdueSummaries(ctx context.Context) error
}

type JobHandlers struct {
	jobs OverdueRefresher
}

func NewJobHandlers(jobs OverdueRefresher) *JobHandlers {
	return &JobHandlers{jobs: jobs}
}

// GetJobStatus handles GET /jobs
func (h *JobHandlers) GetJobStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, h.jobs.GetJobStatus())
}

// TriggerOverdueRefresh handles POST /jobs/overdue-refresh. It runs the
// refresh synchronously.
func (h *JobHandlers) TriggerOverdueRefresh(c echo.Context) error {
	if err := h.jobs.RefreshOverdueSummaries(c.Request().Context()); err != nil {
		return common.SendError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Overdue summaries refreshed",
	})
}
