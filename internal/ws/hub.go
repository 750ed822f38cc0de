package ws

import (
	"context"
	"encoding/json"
	"sync"

	"quickpay/internal/models"

	"github.com/shopspring/decimal"
)

// Client is one websocket connection watching a single payment.
type Client struct {
	PaymentID string
	Send      chan []byte
	Hub       *Hub // set by Register so Close can unregister
	mu        sync.Mutex
	closed    bool
}

func NewClient(paymentID string) *Client {
	return &Client{
		PaymentID: paymentID,
		Send:      make(chan []byte, 16),
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.Hub != nil {
		c.Hub.unregister(c)
	}
	close(c.Send)
}

// Hub fans payment status changes out to the clients watching each payment.
type Hub struct {
	mu        sync.RWMutex
	byPayment map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{byPayment: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.Hub = h
	if h.byPayment[c.PaymentID] == nil {
		h.byPayment[c.PaymentID] = make(map[*Client]struct{})
	}
	h.byPayment[c.PaymentID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.byPayment[c.PaymentID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byPayment, c.PaymentID)
		}
	}
}

// StatusMessage is what watchers receive, once on connect and after every resolution.
type StatusMessage struct {
	Type               string          `json:"type"`
	PaymentID          string          `json:"payment_id"`
	Status             string          `json:"status"`
	MpesaReceiptNumber *string         `json:"mpesa_receipt_number"`
	Amount             decimal.Decimal `json:"amount"`
}

func NewStatusMessage(p *models.Payment) StatusMessage {
	return StatusMessage{
		Type:               "payment_status",
		PaymentID:          p.ID,
		Status:             p.Status,
		MpesaReceiptNumber: p.MpesaReceiptNumber,
		Amount:             p.Amount,
	}
}

// PaymentResolved broadcasts p to its watchers. Slow clients miss the message.
func (h *Hub) PaymentResolved(ctx context.Context, p *models.Payment) {
	h.BroadcastToPayment(p.ID, NewStatusMessage(p))
}

func (h *Hub) BroadcastToPayment(paymentID string, payload interface{}) {
	data, _ := json.Marshal(payload)
	h.mu.RLock()
	m := h.byPayment[paymentID]
	clients := make([]*Client, 0, len(m))
	for c := range m {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.trySend(data)
	}
}

// sendSnapshot queues the message built by load ahead of any broadcast.
// Broadcasts to c wait while load runs, so none can slip in between the read
// and the queueing of a stale snapshot. c must already be registered.
func (c *Client) sendSnapshot(load func() ([]byte, error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	data, err := load()
	if err != nil {
		return err
	}
	c.Send <- data
	return nil
}

func (c *Client) trySend(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

func (h *Hub) ClientCount(paymentID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.byPayment[paymentID])
}
