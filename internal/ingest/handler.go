package ingest

import (
	"net/http"

	"jobflow_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Handler handles parsed-record HTTP requests.
type Handler struct {
	service *Service
}

// NewHandler creates a new ingest handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type ingestRequest struct {
	LocationID string       `json:"locationId" binding:"required"`
	Record     ParsedRecord `json:"record" binding:"required"`
}

// HandleParsedRecord receives a structured parse result from the upstream
// notification parser.
// POST /api/v1/webhooks/parsed
func (h *Handler) HandleParsedRecord(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid parsed record", err.Error())
		return
	}

	result, err := h.service.Ingest(c.Request.Context(), req.LocationID, req.Record)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
