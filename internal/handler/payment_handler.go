package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/villa-stay/service-booking/internal/application"
	"github.com/villa-stay/service-booking/internal/platform/response"
)

// maxWebhookBody caps the webhook payload read into memory.
const maxWebhookBody = 1 << 20

// SessionCreator opens provider payment sessions.
type SessionCreator interface {
	CreateSession(ctx context.Context, req application.CreateSessionRequest) (*application.SessionDTO, error)
}

// WebhookHandler applies a raw provider delivery.
type WebhookHandler interface {
	Handle(ctx context.Context, body []byte, signature string) (*application.WebhookResult, error)
}

// PaymentHandler handles payment session creation and provider webhooks.
type PaymentHandler struct {
	checkout        SessionCreator
	webhooks        WebhookHandler
	signatureHeader string
	logger          *zap.Logger
}

// NewPaymentHandler creates a new PaymentHandler. signatureHeader names the
// request header carrying the provider's HMAC signature.
func NewPaymentHandler(checkout SessionCreator, webhooks WebhookHandler, signatureHeader string, logger *zap.Logger) *PaymentHandler {
	return &PaymentHandler{
		checkout:        checkout,
		webhooks:        webhooks,
		signatureHeader: signatureHeader,
		logger:          logger,
	}
}

// RegisterRoutes registers payment routes. mw applies to the session route
// only; the provider's webhook calls are never rate limited.
func (h *PaymentHandler) RegisterRoutes(r *gin.RouterGroup, mw ...gin.HandlerFunc) {
	payments := r.Group("/payments")
	{
		session := append(append([]gin.HandlerFunc{}, mw...), h.CreateSession)
		payments.POST("/session", session...)
		payments.POST("/webhook", h.Webhook)
	}
}

// CreateSession handles POST /api/v1/payments/session
func (h *PaymentHandler) CreateSession(c *gin.Context) {
	var req application.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.checkout.CreateSession(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// Webhook handles POST /api/v1/payments/webhook. The body is passed on
// unparsed because the signature covers its exact bytes.
func (h *PaymentHandler) Webhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		response.BadRequest(c, "unreadable webhook body")
		return
	}

	result, err := h.webhooks.Handle(c.Request.Context(), body, c.GetHeader(h.signatureHeader))
	if err != nil {
		h.logger.Warn("webhook rejected", zap.Error(err))
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}
