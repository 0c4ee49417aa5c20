package followup

import (
	"net/http"

	"exterminador_backend/platform/httpkit"

	"github.com/gin-gonic/gin"
)

// Handler exposes the follow-up run over HTTP.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// HandleRun processes one batch of due follow-ups.
// POST /api/v1/internal/followups/run
func (h *Handler) HandleRun(c *gin.Context) {
	summary, err := h.service.Run(c.Request.Context())
	if err != nil {
		h.service.log.WithContext(c.Request.Context()).Error("followup run failed", "error", err)
		httpkit.HandleError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}
