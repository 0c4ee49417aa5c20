package followup

import (
	apphttp "exterminador_backend/internal/http"
)

// Module is the follow-up module implementing http.Module.
type Module struct {
	handler *Handler
}

func NewModule(service *Service) *Module {
	return &Module{handler: NewHandler(service)}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "followup"
}

// RegisterRoutes mounts the manual trigger on the internal group.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Internal.POST("/followups/run", m.handler.HandleRun)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
