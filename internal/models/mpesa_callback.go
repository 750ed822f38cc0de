package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// MpesaCallback is an append-only audit record of a raw STK callback.
type MpesaCallback struct {
	ID           string         `gorm:"primaryKey;size:36" json:"id"`
	PaymentID    string         `gorm:"size:36;not null;index" json:"payment_id"`
	CallbackData datatypes.JSON `json:"callback_data"`
	CreatedAt    time.Time      `json:"created_at"`

	Payment Payment `gorm:"foreignKey:PaymentID" json:"-"`
}

func (MpesaCallback) TableName() string {
	return "mpesa_callbacks"
}

func (c *MpesaCallback) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}
