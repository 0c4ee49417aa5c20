package ingestion

import (
	"net/http"
	"time"

	apphttp "exterminador_backend/internal/http"
	"exterminador_backend/platform/config"

	"github.com/gin-contrib/cors"
)

const corsMaxAge = 12 * time.Hour

// corsAllowHeaders are the request headers browser clients of the webhook send.
var corsAllowHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}

// Module is the WhatsApp ingestion module implementing http.Module.
type Module struct {
	handler *Handler
	cors    cors.Config
}

// NewModule wires the handler for service.
func NewModule(service *Service, httpCfg config.HTTPConfig, waCfg config.WhatsAppConfig) *Module {
	corsCfg := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: corsAllowHeaders,
		MaxAge:       corsMaxAge,
	}
	if httpCfg.GetCORSAllowAll() || len(httpCfg.GetCORSOrigins()) == 0 {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = httpCfg.GetCORSOrigins()
	}

	return &Module{
		handler: NewHandler(service, waCfg.GetWhatsAppVerifyToken(), waCfg.GetWhatsAppAppSecret(), service.log),
		cors:    corsCfg,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "ingestion"
}

// RegisterRoutes mounts the public webhook routes.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.V1.Group("/webhook/whatsapp")
	group.Use(cors.New(m.cors))
	group.POST("", m.handler.HandleWebhook)
	group.GET("", m.handler.HandleVerify)
	group.OPTIONS("", m.handler.HandlePreflight)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
