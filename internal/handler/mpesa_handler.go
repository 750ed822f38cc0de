package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"

	"quickpay/internal/domain"
	"quickpay/internal/models"
	"quickpay/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var registerOnce sync.Once

// RegisterValidators adds the msisdn binding tag to gin's validator engine.
func RegisterValidators() {
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			_ = v.RegisterValidation("msisdn", func(fl validator.FieldLevel) bool {
				return domain.ValidPhone(fl.Field().String())
			})
		}
	})
}

type MpesaHandler struct {
	payments *service.PaymentService
	logger   *zap.Logger
}

func NewMpesaHandler(payments *service.PaymentService, logger *zap.Logger) *MpesaHandler {
	return &MpesaHandler{
		payments: payments,
		logger:   logger.With(zap.String("component", "mpesa_handler")),
	}
}

type initiateRequest struct {
	PhoneNumber string           `json:"phone_number" binding:"required,msisdn"`
	Amount      *decimal.Decimal `json:"amount" binding:"required"`
}

// Initiate sends an STK push for {phone_number, amount}.
func (h *MpesaHandler) Initiate(c *gin.Context) {
	var req initiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": bindErrorMessage(err)})
		return
	}
	if err := domain.ValidateAmount(*req.Amount); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	res, err := h.payments.Initiate(c.Request.Context(), req.PhoneNumber, *req.Amount)
	if err != nil {
		status, msg := initiateErrorResponse(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("stk push initiation failed", zap.Error(err))
		}
		c.JSON(status, gin.H{"success": false, "error": msg})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":             true,
		"message":             res.Message,
		"payment_id":          res.PaymentID,
		"checkout_request_id": res.CheckoutRequestID,
	})
}

func bindErrorMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			switch fe.Field() {
			case "PhoneNumber":
				if fe.Tag() == "required" {
					return "Phone number and amount are required"
				}
				return domain.ErrInvalidPhone.Error()
			case "Amount":
				return "Phone number and amount are required"
			}
		}
	}
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return "Invalid request body"
	}
	return domain.ErrInvalidAmount.Error()
}

// initiateErrorResponse maps service errors to a status and a user-facing message.
// Provider rejections and validation errors are specific; the rest stay generic.
func initiateErrorResponse(err error) (int, string) {
	var rej *service.RejectedError
	switch {
	case errors.Is(err, domain.ErrInvalidPhone), errors.Is(err, domain.ErrInvalidAmount):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &rej):
		return http.StatusBadRequest, rej.Error()
	case errors.Is(err, service.ErrProviderAuth):
		return http.StatusInternalServerError, service.ErrProviderAuth.Error()
	case errors.Is(err, service.ErrProviderUnavailable):
		return http.StatusInternalServerError, service.ErrProviderUnavailable.Error()
	default:
		return http.StatusInternalServerError, "Failed to initiate payment"
	}
}

type paymentStatusResponse struct {
	ID                 string          `json:"id"`
	Status             string          `json:"status"`
	MpesaReceiptNumber *string         `json:"mpesa_receipt_number"`
	CheckoutRequestID  *string         `json:"checkout_request_id"`
	Amount             decimal.Decimal `json:"amount"`
	PhoneNumber        string          `json:"phone_number"`
}

func toStatusResponse(p *models.Payment) paymentStatusResponse {
	return paymentStatusResponse{
		ID:                 p.ID,
		Status:             p.Status,
		MpesaReceiptNumber: p.MpesaReceiptNumber,
		CheckoutRequestID:  p.CheckoutRequestID,
		Amount:             p.Amount,
		PhoneNumber:        p.PhoneNumber,
	}
}

// Status returns the current state of one payment.
func (h *MpesaHandler) Status(c *gin.Context) {
	p, err := h.payments.GetPayment(c.Request.Context(), c.Param("id"))
	if errors.Is(err, service.ErrPaymentNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
		return
	}
	if err != nil {
		h.logger.Error("get payment failed", zap.String("payment_id", c.Param("id")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load payment"})
		return
	}
	c.JSON(http.StatusOK, toStatusResponse(p))
}
