package repository

import (
	"context"
	"time"

	"quickpay/internal/domain"
	"quickpay/internal/models"

	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) GetByID(ctx context.Context, id string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).Where("checkout_request_id = ?", checkoutRequestID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AttachCorrelation stores the ids Daraja assigned to an accepted STK push.
func (r *PaymentRepository) AttachCorrelation(ctx context.Context, id, merchantRequestID, checkoutRequestID string) error {
	res := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"merchant_request_id": merchantRequestID,
			"checkout_request_id": checkoutRequestID,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Resolution is the terminal outcome written to a pending payment.
type Resolution struct {
	Status     string
	Receipt    *string
	ResultCode *int
	ResultDesc string
}

// Resolve moves a pending payment into a terminal status. It reports false when
// the payment was no longer pending; terminal rows are never rewritten.
func (r *PaymentRepository) Resolve(ctx context.Context, id string, res Resolution) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ?", id, domain.StatusPending).
		Updates(map[string]interface{}{
			"status":               res.Status,
			"mpesa_receipt_number": res.Receipt,
			"result_code":          res.ResultCode,
			"result_desc":          res.ResultDesc,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

// AttachReceipt sets the receipt of a completed payment that has none yet.
// Status is left untouched.
func (r *PaymentRepository) AttachReceipt(ctx context.Context, id, receipt string) (bool, error) {
	tx := r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("id = ? AND status = ? AND mpesa_receipt_number IS NULL", id, domain.StatusCompleted).
		Update("mpesa_receipt_number", receipt)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected == 1, nil
}

// ListStalePending returns pending payments created before cutoff, oldest first.
func (r *PaymentRepository) ListStalePending(ctx context.Context, cutoff time.Time, limit int) ([]models.Payment, error) {
	var list []models.Payment
	err := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", domain.StatusPending, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&list).Error
	return list, err
}
