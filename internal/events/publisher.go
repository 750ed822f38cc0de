package events

import (
	"context"
	"encoding/json"
	"time"

	"quickpay/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PaymentStatusEvent is published once per terminal transition, keyed by payment id.
type PaymentStatusEvent struct {
	PaymentID          string          `json:"payment_id"`
	Status             string          `json:"status"`
	PhoneNumber        string          `json:"phone_number"`
	Amount             decimal.Decimal `json:"amount"`
	CheckoutRequestID  *string         `json:"checkout_request_id,omitempty"`
	MpesaReceiptNumber *string         `json:"mpesa_receipt_number,omitempty"`
	ResultCode         *int            `json:"result_code,omitempty"`
	ResultDesc         string          `json:"result_desc,omitempty"`
	OccurredAt         time.Time       `json:"occurred_at"`
}

type StatusPublisher struct {
	producer Producer
	logger   *zap.Logger
	now      func() time.Time
}

func NewStatusPublisher(producer Producer, logger *zap.Logger) *StatusPublisher {
	return &StatusPublisher{
		producer: producer,
		logger:   logger.With(zap.String("component", "status_events")),
		now:      time.Now,
	}
}

// PaymentResolved publishes p. Failures are logged; the payment update already happened.
func (s *StatusPublisher) PaymentResolved(ctx context.Context, p *models.Payment) {
	value, err := json.Marshal(PaymentStatusEvent{
		PaymentID:          p.ID,
		Status:             p.Status,
		PhoneNumber:        p.PhoneNumber,
		Amount:             p.Amount,
		CheckoutRequestID:  p.CheckoutRequestID,
		MpesaReceiptNumber: p.MpesaReceiptNumber,
		ResultCode:         p.ResultCode,
		ResultDesc:         p.ResultDesc,
		OccurredAt:         s.now().UTC(),
	})
	if err != nil {
		s.logger.Error("marshal payment status event failed", zap.String("payment_id", p.ID), zap.Error(err))
		return
	}
	if err := s.producer.Produce(context.WithoutCancel(ctx), p.ID, value); err != nil {
		s.logger.Error("publish payment status event failed", zap.String("payment_id", p.ID), zap.Error(err))
	}
}
