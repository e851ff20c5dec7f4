package reviews

import (
	"context"
	"net/http"
	"time"

	"jobflow_backend/platform/httpkit"
	"jobflow_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

// SweepResponse is returned by the time-driven trigger endpoint.
type SweepResponse struct {
	Success   bool `json:"success"`
	Processed int  `json:"processed"`
}

// Handler exposes the sweep as an HTTP trigger.
type Handler struct {
	service *Service
	timeout time.Duration
	log     *logger.Logger
}

// NewHandler creates the sweep trigger handler.
func NewHandler(service *Service, timeout time.Duration, log *logger.Logger) *Handler {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Handler{service: service, timeout: timeout, log: log}
}

// HandleRunSweep runs the review sweep within its wall-clock budget.
// POST /api/v1/jobs/review-sweep
// Completed items stay committed if the budget runs out mid-sweep; the
// remainder is picked up on the next scheduled invocation.
func (h *Handler) HandleRunSweep(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	processed, err := h.service.RunSweep(ctx)
	if err != nil {
		h.log.Error("review sweep failed", "error", err)
		httpkit.Error(c, http.StatusInternalServerError, "review sweep failed", nil)
		return
	}

	c.JSON(http.StatusOK, SweepResponse{Success: true, Processed: processed})
}
