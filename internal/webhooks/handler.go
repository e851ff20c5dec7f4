package webhooks

import (
	"net/http"

	"jobflow_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Handler handles inbound webhook HTTP requests.
type Handler struct {
	service *Service
}

// NewHandler creates a new webhook handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleEvent routes a pushed event by its declared type.
// POST /api/v1/webhooks/events
// Always acknowledges with 2xx unless the body itself is unparsable:
// "malformed event" is the only client error, "event we chose not to act on"
// is a success.
func (h *Handler) HandleEvent(c *gin.Context) {
	var evt InboundEvent
	if err := c.ShouldBindJSON(&evt); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid event payload", err.Error())
		return
	}

	result := h.service.Process(c.Request.Context(), evt)
	c.JSON(http.StatusOK, result)
}
