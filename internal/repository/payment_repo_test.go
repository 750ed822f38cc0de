package repository_test

import (
	"context"
	"testing"
	"time"

	"quickpay/internal/database"
	"quickpay/internal/domain"
	"quickpay/internal/models"
	"quickpay/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func newPayment() *models.Payment {
	return &models.Payment{
		PhoneNumber: "254712345678",
		Amount:      decimal.NewFromInt(50),
		Status:      domain.StatusPending,
	}
}

func TestPaymentRepository_CreateAndCorrelate(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPaymentRepository(database.NewTestDB(t))

	p := newPayment()
	require.NoError(t, repo.Create(ctx, p))
	require.NotEmpty(t, p.ID)

	require.NoError(t, repo.AttachCorrelation(ctx, p.ID, "29115-34620561-1", "ws_CO_191220191020363925"))

	got, err := repo.GetByCheckoutRequestID(ctx, "ws_CO_191220191020363925")
	require.NoError(t, err)
	assert.Equal(t, p.ID, got.ID)
	require.NotNil(t, got.MerchantRequestID)
	assert.Equal(t, "29115-34620561-1", *got.MerchantRequestID)
	assert.True(t, got.Amount.Equal(decimal.NewFromInt(50)))

	_, err = repo.GetByCheckoutRequestID(ctx, "ws_CO_missing")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	assert.ErrorIs(t, repo.AttachCorrelation(ctx, "missing", "a", "b"), gorm.ErrRecordNotFound)
}

func TestPaymentRepository_ResolveOnlyFromPending(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPaymentRepository(database.NewTestDB(t))
	p := newPayment()
	require.NoError(t, repo.Create(ctx, p))

	receipt := "NLJ7RT61SV"
	code := 0
	ok, err := repo.Resolve(ctx, p.ID, repository.Resolution{Status: domain.StatusCompleted, Receipt: &receipt, ResultCode: &code})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Resolve(ctx, p.ID, repository.Resolution{Status: domain.StatusFailed})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.MpesaReceiptNumber)
	assert.Equal(t, receipt, *got.MpesaReceiptNumber)
}

func TestPaymentRepository_AttachReceipt(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewPaymentRepository(database.NewTestDB(t))
	p := newPayment()
	require.NoError(t, repo.Create(ctx, p))

	ok, err := repo.AttachReceipt(ctx, p.ID, "NLJ7RT61SV")
	require.NoError(t, err)
	assert.False(t, ok, "pending payments take receipts through Resolve")

	code := 0
	_, err = repo.Resolve(ctx, p.ID, repository.Resolution{Status: domain.StatusCompleted, ResultCode: &code})
	require.NoError(t, err)
	ok, err = repo.AttachReceipt(ctx, p.ID, "NLJ7RT61SV")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.AttachReceipt(ctx, p.ID, "OTHER999")
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	require.NotNil(t, got.MpesaReceiptNumber)
	assert.Equal(t, "NLJ7RT61SV", *got.MpesaReceiptNumber)
}

func TestPaymentRepository_ListStalePending(t *testing.T) {
	ctx := context.Background()
	db := database.NewTestDB(t)
	repo := repository.NewPaymentRepository(db)

	old := newPayment()
	old.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, old))
	fresh := newPayment()
	require.NoError(t, repo.Create(ctx, fresh))
	done := newPayment()
	done.Status = domain.StatusCompleted
	done.CreatedAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.Create(ctx, done))

	list, err := repo.ListStalePending(ctx, time.Now().Add(-10*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, old.ID, list[0].ID)
}

func TestCallbackRepository_Append(t *testing.T) {
	ctx := context.Background()
	db := database.NewTestDB(t)
	payments := repository.NewPaymentRepository(db)
	callbacks := repository.NewCallbackRepository(db)

	p := newPayment()
	require.NoError(t, payments.Create(ctx, p))
	require.NoError(t, callbacks.Append(ctx, &models.MpesaCallback{
		PaymentID:    p.ID,
		CallbackData: datatypes.JSON(`{"Body":{"stkCallback":{"ResultCode":0}}}`),
	}))

	list, err := callbacks.ListByPaymentID(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.JSONEq(t, `{"Body":{"stkCallback":{"ResultCode":0}}}`, string(list[0].CallbackData))
}
