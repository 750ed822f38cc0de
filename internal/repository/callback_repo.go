package repository

import (
	"context"

	"quickpay/internal/models"

	"gorm.io/gorm"
)

// CallbackRepository only appends and reads; callback rows are never updated or deleted.
type CallbackRepository struct {
	db *gorm.DB
}

func NewCallbackRepository(db *gorm.DB) *CallbackRepository {
	return &CallbackRepository{db: db}
}

func (r *CallbackRepository) Append(ctx context.Context, c *models.MpesaCallback) error {
	return r.db.WithContext(ctx).Create(c).Error
}

func (r *CallbackRepository) ListByPaymentID(ctx context.Context, paymentID string) ([]models.MpesaCallback, error) {
	var list []models.MpesaCallback
	err := r.db.WithContext(ctx).Where("payment_id = ?", paymentID).Order("created_at ASC").Find(&list).Error
	return list, err
}
