// Package poller watches a payment until it reaches a terminal status or the
// check budget runs out.
package poller

import (
	"context"
	"sync"
	"time"

	"quickpay/internal/domain"
	"quickpay/pkg/client"

	"go.uber.org/zap"
)

// Reader loads the stored state of a payment.
type Reader interface {
	PaymentStatus(ctx context.Context, id string) (*client.PaymentStatus, error)
}

type Config struct {
	InitialDelay time.Duration
	Interval     time.Duration
	MaxAttempts  int
}

func DefaultConfig() Config {
	return Config{
		InitialDelay: 5 * time.Second,
		Interval:     10 * time.Second,
		MaxAttempts:  30,
	}
}

// Outcome is the last thing a poll observed. Status is a terminal payment
// status, domain.StatusUnknown after MaxAttempts checks, or empty when stopped.
type Outcome struct {
	Status   string
	Receipt  string
	Attempts int
	Stopped  bool
}

type Poller struct {
	reader Reader
	cfg    Config
	logger *zap.Logger
}

func New(reader Reader, cfg Config, logger *zap.Logger) *Poller {
	def := DefaultConfig()
	if cfg.InitialDelay < 0 {
		cfg.InitialDelay = def.InitialDelay
	}
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Poller{reader: reader, cfg: cfg, logger: logger.With(zap.String("component", "poller"))}
}

// Handle owns one running poll.
type Handle struct {
	cancel  context.CancelFunc
	done    chan struct{}
	mu      sync.Mutex
	outcome Outcome
}

// Stop cancels any scheduled check and waits for the poll to exit. notify is
// not called for a stopped poll. Stop is safe to call more than once.
func (h *Handle) Stop() {
	h.cancel()
	<-h.done
}

func (h *Handle) Done() <-chan struct{} { return h.done }

// Outcome is valid once Done is closed.
func (h *Handle) Outcome() Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.outcome
}

// Start begins polling paymentID. notify runs once, on the poll goroutine,
// when a terminal status is seen or the attempts are exhausted.
func (p *Poller) Start(ctx context.Context, paymentID string, notify func(Outcome)) *Handle {
	ctx, cancel := context.WithCancel(ctx)
	h := &Handle{cancel: cancel, done: make(chan struct{})}
	go p.run(ctx, h, paymentID, notify)
	return h
}

func (p *Poller) run(ctx context.Context, h *Handle, paymentID string, notify func(Outcome)) {
	defer close(h.done)
	log := p.logger.With(zap.String("payment_id", paymentID))

	timer := time.NewTimer(p.cfg.InitialDelay)
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			h.finish(Outcome{Attempts: attempt - 1, Stopped: true})
			return
		case <-timer.C:
		}

		st, err := p.reader.PaymentStatus(ctx, paymentID)
		switch {
		case err != nil:
			if ctx.Err() != nil {
				h.finish(Outcome{Attempts: attempt, Stopped: true})
				return
			}
			log.Warn("payment status check failed", zap.Int("attempt", attempt), zap.Error(err))
		case domain.IsTerminal(st.Status):
			out := Outcome{Status: st.Status, Attempts: attempt}
			if st.MpesaReceiptNumber != nil {
				out.Receipt = *st.MpesaReceiptNumber
			}
			log.Info("payment reached terminal status", zap.String("status", st.Status), zap.Int("attempt", attempt))
			h.finish(out)
			notify(out)
			return
		}

		if attempt >= p.cfg.MaxAttempts {
			out := Outcome{Status: domain.StatusUnknown, Attempts: attempt}
			log.Warn("payment still pending after last check", zap.Int("attempts", attempt))
			h.finish(out)
			notify(out)
			return
		}
		timer.Reset(p.cfg.Interval)
	}
}

func (h *Handle) finish(o Outcome) {
	h.mu.Lock()
	h.outcome = o
	h.mu.Unlock()
}
