package handler

import (
	"errors"
	"io"
	"net/http"

	"quickpay/internal/service"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type MpesaWebhookHandler struct {
	payments *service.PaymentService
	logger   *zap.Logger
}

func NewMpesaWebhookHandler(payments *service.PaymentService, logger *zap.Logger) *MpesaWebhookHandler {
	return &MpesaWebhookHandler{
		payments: payments,
		logger:   logger.With(zap.String("component", "mpesa_callback")),
	}
}

// Handle processes a Daraja STK callback. Anything that was handled, including
// payloads without an stkCallback, is answered 200 so Daraja does not retry.
func (h *MpesaWebhookHandler) Handle(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("read callback body failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}
	h.logger.Info("callback received", zap.ByteString("body", body))

	out, err := h.payments.HandleCallback(c.Request.Context(), body, c.Query("token"))
	switch {
	case errors.Is(err, service.ErrUnauthorizedCallback):
		h.logger.Warn("callback rejected: bad token")
		c.String(http.StatusUnauthorized, "Unauthorized")
		return
	case errors.Is(err, service.ErrPaymentNotFound):
		c.String(http.StatusNotFound, "Payment not found")
		return
	case err != nil:
		h.logger.Error("callback processing failed", zap.Error(err))
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}
	if !out.Ignored {
		h.logger.Info("callback handled",
			zap.String("payment_id", out.PaymentID),
			zap.String("status", out.Status),
			zap.Bool("applied", out.Applied))
	}
	c.String(http.StatusOK, "OK")
}
