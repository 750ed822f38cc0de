package payment

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// StubProvider accepts every STK push without contacting Daraja. Queries report
// the prompt as still pending. Use it for local development without credentials.
type StubProvider struct {
	seq atomic.Int64
}

func (s *StubProvider) Authenticate(ctx context.Context) error { return nil }

func (s *StubProvider) STKPush(ctx context.Context, req STKPushRequest) (STKResult, error) {
	n := s.seq.Add(1)
	stamp := time.Now().Format(timestampLayout)
	return Accepted{
		MerchantRequestID: fmt.Sprintf("stub-%d-%s", n, stamp),
		CheckoutRequestID: fmt.Sprintf("ws_CO_stub_%s%d", stamp, n),
		CustomerMessage:   "Success. Request accepted for processing",
	}, nil
}

func (s *StubProvider) STKQuery(ctx context.Context, checkoutRequestID string) (*QueryResult, error) {
	return &QueryResult{Pending: true, ResultDesc: "stub provider"}, nil
}
