package insights

import (
	"net/http"

	"exterminador_backend/platform/apperr"
	"exterminador_backend/platform/httpkit"
	"exterminador_backend/platform/logger"
	"exterminador_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type failureResponse struct {
	Error           string `json:"error"`
	Content         string `json:"content"`
	BusinessContext string `json:"business_context"`
	Success         bool   `json:"success"`
}

type Handler struct {
	service *Service
	val     *validator.Validator
	log     *logger.Logger
}

func NewHandler(service *Service, val *validator.Validator, log *logger.Logger) *Handler {
	return &Handler{service: service, val: val, log: log}
}

// HandleAnalyze runs one analysis.
// POST /api/v1/internal/insights
func (h *Handler) HandleAnalyze(c *gin.Context) {
	var req Request
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, validator.FieldErrors(err))
		return
	}

	log := h.log.WithContext(c.Request.Context())
	analysisType := ""
	if req.AnalysisInfo != nil {
		analysisType = req.AnalysisInfo.Type
	}
	log.Info("insights requested", "analysis_type", analysisType, "records_found", req.RecordsFound)

	resp, err := h.service.Analyze(c.Request.Context(), req)
	if err != nil {
		if apperr.Is(err, apperr.KindUnavailable) {
			httpkit.HandleError(c, err)
			return
		}
		log.Error("insights analysis failed", "error", err)
		c.JSON(http.StatusInternalServerError, failureResponse{
			Error:           err.Error(),
			Content:         apology(err),
			BusinessContext: errorBusinessContext,
			Success:         false,
		})
		return
	}

	httpkit.OK(c, resp)
}
