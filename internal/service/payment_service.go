package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"quickpay/config"
	"quickpay/internal/auth"
	"quickpay/internal/domain"
	"quickpay/internal/models"
	"quickpay/internal/repository"
	"quickpay/pkg/payment"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrProviderAuth         = errors.New("failed to authenticate with M-Pesa")
	ErrProviderRejected     = errors.New("STK push rejected")
	ErrProviderUnavailable  = errors.New("failed to reach M-Pesa, please try again")
	ErrStorage              = errors.New("failed to record payment")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrUnauthorizedCallback = errors.New("callback token missing or invalid")
)

// RejectedError is returned when Daraja refuses an STK push. The payment it
// refers to has been marked failed.
type RejectedError struct {
	PaymentID string
	Code      string
	Reason    string
}

func (e *RejectedError) Error() string {
	return "STK Push failed: " + e.Reason
}

func (e *RejectedError) Unwrap() error { return ErrProviderRejected }

// StatusListener is told about every payment that reaches a terminal status.
type StatusListener interface {
	PaymentResolved(ctx context.Context, p *models.Payment)
}

type PaymentService struct {
	cfg       *config.MpesaConfig
	payments  *repository.PaymentRepository
	callbacks *repository.CallbackRepository
	provider  payment.Provider
	signer    *auth.CallbackSigner
	listeners []StatusListener
	logger    *zap.Logger
}

func NewPaymentService(
	cfg *config.MpesaConfig,
	payments *repository.PaymentRepository,
	callbacks *repository.CallbackRepository,
	provider payment.Provider,
	signer *auth.CallbackSigner,
	logger *zap.Logger,
	listeners ...StatusListener,
) *PaymentService {
	return &PaymentService{
		cfg:       cfg,
		payments:  payments,
		callbacks: callbacks,
		provider:  provider,
		signer:    signer,
		listeners: listeners,
		logger:    logger,
	}
}

type InitiateResult struct {
	PaymentID         string
	CheckoutRequestID string
	Message           string
}

// Initiate records a pending payment and sends the STK prompt to phone.
// Concurrent calls for the same phone create independent payments.
func (s *PaymentService) Initiate(ctx context.Context, phone string, amount decimal.Decimal) (*InitiateResult, error) {
	if !domain.ValidPhone(phone) {
		return nil, domain.ErrInvalidPhone
	}
	if err := domain.ValidateAmount(amount); err != nil {
		return nil, err
	}
	msisdn := domain.NormalizePhone(phone)

	if err := s.provider.Authenticate(ctx); err != nil {
		s.logger.Error("mpesa authentication failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrProviderAuth, err)
	}

	p := &models.Payment{
		PhoneNumber: msisdn,
		Amount:      amount,
		Status:      domain.StatusPending,
	}
	if err := s.payments.Create(ctx, p); err != nil {
		s.logger.Error("create payment failed", zap.String("phone", msisdn), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrStorage, err)
	}
	log := s.logger.With(zap.String("payment_id", p.ID))

	callbackURL, err := s.callbackURL(p.ID)
	if err != nil {
		log.Error("build callback url failed", zap.Error(err))
		return nil, fmt.Errorf("build callback url: %w", err)
	}

	res, err := s.provider.STKPush(ctx, payment.STKPushRequest{
		Amount:           domain.ProviderAmount(amount),
		PhoneNumber:      msisdn,
		CallbackURL:      callbackURL,
		AccountReference: p.ID,
		Description:      s.cfg.Description,
	})
	if err != nil {
		log.Error("mpesa authentication failed during stk push", zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrProviderAuth, err)
	}

	switch r := res.(type) {
	case payment.Accepted:
		if err := s.payments.AttachCorrelation(ctx, p.ID, r.MerchantRequestID, r.CheckoutRequestID); err != nil {
			log.Error("attach correlation ids failed", zap.String("checkout_request_id", r.CheckoutRequestID), zap.Error(err))
			return nil, fmt.Errorf("%w: %v", ErrStorage, err)
		}
		log.Info("stk push accepted",
			zap.String("checkout_request_id", r.CheckoutRequestID),
			zap.String("merchant_request_id", r.MerchantRequestID))
		return &InitiateResult{
			PaymentID:         p.ID,
			CheckoutRequestID: r.CheckoutRequestID,
			Message:           "STK Push sent successfully",
		}, nil

	case payment.Rejected:
		log.Warn("stk push rejected", zap.String("code", r.Code), zap.String("reason", r.Reason))
		if _, err := s.resolve(ctx, p.ID, repository.Resolution{
			Status:     domain.StatusFailed,
			ResultDesc: truncate("STK push rejected: "+r.Reason, 255),
		}); err != nil {
			log.Error("mark rejected payment failed", zap.Error(err))
		}
		return nil, &RejectedError{PaymentID: p.ID, Code: r.Code, Reason: r.Reason}

	case payment.TransportError:
		// The prompt may still have reached the phone; the reconciler settles it.
		log.Error("stk push transport error", zap.Error(r))
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, r)

	default:
		return nil, fmt.Errorf("unexpected stk result %T", res)
	}
}

func (s *PaymentService) callbackURL(paymentID string) (string, error) {
	if s.signer == nil {
		return s.cfg.CallbackURL, nil
	}
	token, err := s.signer.Sign(paymentID)
	if err != nil {
		return "", err
	}
	u, err := url.Parse(s.cfg.CallbackURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// CallbackOutcome describes what HandleCallback did with a payload.
type CallbackOutcome struct {
	Ignored   bool // no stkCallback in the payload
	PaymentID string
	Status    string
	Applied   bool // false when the payment was already terminal
}

// HandleCallback records a raw Daraja callback and moves the matching payment
// out of pending. token is the ?token= query of the callback URL.
func (s *PaymentService) HandleCallback(ctx context.Context, raw []byte, token string) (*CallbackOutcome, error) {
	var tokenPaymentID string
	if s.signer != nil {
		id, err := s.signer.Verify(token)
		if err != nil {
			return nil, ErrUnauthorizedCallback
		}
		tokenPaymentID = id
	}

	var env payment.CallbackEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		s.logger.Warn("callback is not valid json, acknowledging", zap.Error(err))
		return &CallbackOutcome{Ignored: true}, nil
	}
	cb := env.STKCallback()
	if cb == nil {
		s.logger.Warn("callback without stkCallback, acknowledging")
		return &CallbackOutcome{Ignored: true}, nil
	}
	log := s.logger.With(zap.String("checkout_request_id", cb.CheckoutRequestID))

	if cb.CheckoutRequestID == "" {
		log.Warn("callback without CheckoutRequestID")
		return nil, ErrPaymentNotFound
	}
	p, err := s.payments.GetByCheckoutRequestID(ctx, cb.CheckoutRequestID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn("payment not found for callback")
		return nil, ErrPaymentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("lookup payment: %w", err)
	}
	if s.signer != nil && tokenPaymentID != p.ID {
		log.Warn("callback token issued for another payment", zap.String("payment_id", p.ID), zap.String("token_payment_id", tokenPaymentID))
		return nil, ErrUnauthorizedCallback
	}
	log = log.With(zap.String("payment_id", p.ID))

	if err := s.callbacks.Append(ctx, &models.MpesaCallback{
		PaymentID:    p.ID,
		CallbackData: datatypes.JSON(raw),
	}); err != nil {
		return nil, fmt.Errorf("append callback: %w", err)
	}

	// Only an explicit 0 completes a payment; a missing code is a failure.
	res := repository.Resolution{
		Status:     domain.StatusFailed,
		ResultDesc: truncate(cb.ResultDesc, 255),
	}
	if cb.ResultCode != nil {
		code := int(*cb.ResultCode)
		res.Status = domain.StatusForResultCode(code)
		res.ResultCode = &code
	} else {
		log.Warn("callback without ResultCode, marking failed")
	}
	if res.Status == domain.StatusCompleted {
		if receipt, ok := cb.Item(domain.ReceiptItemName); ok {
			res.Receipt = &receipt
		}
	}

	out := &CallbackOutcome{PaymentID: p.ID, Status: res.Status}
	if domain.IsTerminal(p.Status) {
		out.Status = p.Status
		if p.Status == domain.StatusCompleted && p.MpesaReceiptNumber == nil &&
			res.Status == domain.StatusCompleted && res.Receipt != nil {
			// Completed by an STK query, which carries no receipt.
			if err := s.attachReceipt(ctx, p.ID, *res.Receipt); err != nil {
				return nil, fmt.Errorf("attach receipt: %w", err)
			}
			log.Info("receipt attached to completed payment")
			return out, nil
		}
		log.Warn("payment already resolved, callback recorded only", zap.String("status", p.Status), zap.String("callback_status", res.Status))
		return out, nil
	}
	applied, err := s.resolve(ctx, p.ID, res)
	if err != nil {
		return nil, fmt.Errorf("update payment: %w", err)
	}
	out.Applied = applied
	log.Info("payment resolved by callback", zap.String("status", res.Status), zap.Bool("applied", applied))
	return out, nil
}

func (s *PaymentService) attachReceipt(ctx context.Context, id, receipt string) error {
	attached, err := s.payments.AttachReceipt(ctx, id, receipt)
	if err != nil || !attached {
		return err
	}
	s.notify(ctx, id)
	return nil
}

// GetPayment returns the payment with id.
func (s *PaymentService) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	p, err := s.payments.GetByID(ctx, id)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPaymentNotFound
	}
	return p, err
}

// ReconcileStale settles pending payments created before cutoff. Payments
// with a checkout id are checked with an STK query; payments Daraja never
// acknowledged are marked failed. It returns how many payments it resolved.
func (s *PaymentService) ReconcileStale(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	stale, err := s.payments.ListStalePending(ctx, cutoff, limit)
	if err != nil {
		return 0, fmt.Errorf("list stale payments: %w", err)
	}
	resolved := 0
	for i := range stale {
		p := &stale[i]
		log := s.logger.With(zap.String("payment_id", p.ID))
		var res repository.Resolution
		if p.CheckoutRequestID == nil {
			res = repository.Resolution{Status: domain.StatusFailed, ResultDesc: "STK push was not acknowledged by M-Pesa"}
		} else {
			q, err := s.provider.STKQuery(ctx, *p.CheckoutRequestID)
			if err != nil {
				log.Warn("stk query failed", zap.Error(err))
				continue
			}
			if q.Pending {
				continue
			}
			code := q.ResultCode
			res = repository.Resolution{
				Status:     domain.StatusForResultCode(code),
				ResultCode: &code,
				ResultDesc: truncate(q.ResultDesc, 255),
			}
		}
		applied, err := s.resolve(ctx, p.ID, res)
		if err != nil {
			log.Error("reconcile update failed", zap.Error(err))
			continue
		}
		if applied {
			resolved++
			log.Info("payment resolved by reconciliation", zap.String("status", res.Status))
		}
	}
	return resolved, nil
}

// resolve writes a terminal status to a pending payment and notifies listeners.
func (s *PaymentService) resolve(ctx context.Context, id string, res repository.Resolution) (bool, error) {
	applied, err := s.payments.Resolve(ctx, id, res)
	if err != nil || !applied {
		return applied, err
	}
	s.notify(ctx, id)
	return true, nil
}

func (s *PaymentService) notify(ctx context.Context, id string) {
	p, err := s.payments.GetByID(ctx, id)
	if err != nil {
		s.logger.Warn("reload resolved payment failed", zap.String("payment_id", id), zap.Error(err))
		return
	}
	for _, l := range s.listeners {
		l.PaymentResolved(ctx, p)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
