package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Payment struct {
	ID                 string          `gorm:"primaryKey;size:36" json:"id"`
	PhoneNumber        string          `gorm:"size:15;not null;index" json:"phone_number"`
	Amount             decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Status             string          `gorm:"size:20;not null;index" json:"status"` // pending, completed, failed, cancelled
	MerchantRequestID  *string         `gorm:"size:100" json:"merchant_request_id"`
	CheckoutRequestID  *string         `gorm:"size:100;uniqueIndex" json:"checkout_request_id"`
	MpesaReceiptNumber *string         `gorm:"size:50" json:"mpesa_receipt_number"`
	ResultCode         *int            `json:"result_code,omitempty"`
	ResultDesc         string          `gorm:"size:255" json:"result_desc,omitempty"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

func (Payment) TableName() string {
	return "payments"
}

func (p *Payment) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}
