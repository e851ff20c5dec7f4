package payments

import (
	"net/http"

	"jobflow_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Handler handles processor webhook HTTP requests.
type Handler struct {
	service *Service
}

// NewHandler creates a new payments handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleProcessorEvent receives a checkout webhook from the payment
// processor.
// POST /api/v1/webhooks/payments
func (h *Handler) HandleProcessorEvent(c *gin.Context) {
	var evt ProcessorEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid event payload", err.Error())
		return
	}

	result, err := h.service.HandleEvent(c.Request.Context(), evt)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
