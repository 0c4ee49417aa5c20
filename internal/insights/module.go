package insights

import (
	apphttp "exterminador_backend/internal/http"
	"exterminador_backend/platform/logger"
	"exterminador_backend/platform/validator"
)

// Module is the insights module implementing http.Module.
type Module struct {
	handler *Handler
}

func NewModule(service *Service, val *validator.Validator, log *logger.Logger) *Module {
	return &Module{handler: NewHandler(service, val, log)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "insights"
}

// RegisterRoutes mounts the analysis endpoint on the internal group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Internal.POST("/insights", m.handler.HandleAnalyze)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
