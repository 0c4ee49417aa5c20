package ingestion

import (
	"crypto/subtle"
	"io"
	"net/http"

	"exterminador_backend/platform/apperr"
	"exterminador_backend/platform/httpkit"
	"exterminador_backend/platform/logger"

	"github.com/gin-gonic/gin"
)

const (
	maxWebhookBodyBytes = 2 << 20

	hubModeSubscribe = "subscribe"

	msgInvalidSignature = "invalid signature"
	msgForbidden        = "verification failed"
)

// Handler serves the WhatsApp webhook endpoints.
type Handler struct {
	service     *Service
	verifyToken string
	appSecret   string
	log         *logger.Logger
}

// NewHandler creates a webhook handler. An empty appSecret disables the
// signature check; an empty verifyToken rejects every handshake.
func NewHandler(service *Service, verifyToken, appSecret string, log *logger.Logger) *Handler {
	return &Handler{service: service, verifyToken: verifyToken, appSecret: appSecret, log: log}
}

// HandleWebhook ingests a webhook delivery. The body is processed before
// answering, so 200 means every message was stored or skipped.
// POST /api/v1/webhook/whatsapp
func (h *Handler) HandleWebhook(c *gin.Context) {
	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		httpkit.HandleError(c, apperr.BadRequest("invalid webhook format"))
		return
	}

	if h.appSecret != "" && !VerifySignature(h.appSecret, raw, c.GetHeader(SignatureHeader)) {
		h.log.WithContext(c.Request.Context()).Warn("webhook signature rejected", "client_ip", c.ClientIP())
		httpkit.Error(c, http.StatusUnauthorized, msgInvalidSignature, nil)
		return
	}

	if _, err := h.service.ProcessPayload(c.Request.Context(), raw); err != nil {
		if apperr.GetKind(err) == apperr.KindUnknown {
			h.log.WithContext(c.Request.Context()).Error("webhook processing failed", "error", err)
		}
		httpkit.HandleError(c, err)
		return
	}

	c.String(http.StatusOK, "OK")
}

// HandleVerify answers the subscription handshake.
// GET /api/v1/webhook/whatsapp?hub.mode=subscribe&hub.verify_token=...&hub.challenge=...
func (h *Handler) HandleVerify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode != hubModeSubscribe || h.verifyToken == "" ||
		subtle.ConstantTimeCompare([]byte(token), []byte(h.verifyToken)) != 1 {
		httpkit.Error(c, http.StatusForbidden, msgForbidden, nil)
		return
	}

	c.String(http.StatusOK, challenge)
}

// HandlePreflight answers OPTIONS requests that carry no Origin header;
// CORS preflights are answered by the cors middleware before this runs.
func (h *Handler) HandlePreflight(c *gin.Context) {
	c.String(http.StatusOK, "ok")
}
