package ws

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"quickpay/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errMissing = errors.New("missing")

type mapReader map[string]*models.Payment

func (m mapReader) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	p, ok := m[id]
	if !ok {
		return nil, errMissing
	}
	return p, nil
}

func TestHub_BroadcastOnlyToWatchers(t *testing.T) {
	h := NewHub()
	a := NewClient("pay-a")
	b := NewClient("pay-b")
	h.Register(a)
	h.Register(b)

	h.PaymentResolved(context.Background(), &models.Payment{ID: "pay-a", Status: "completed"})

	select {
	case msg := <-a.Send:
		assert.Contains(t, string(msg), `"status":"completed"`)
	default:
		t.Fatal("watcher did not receive update")
	}
	assert.Empty(t, b.Send)

	a.Close()
	assert.Equal(t, 0, h.ClientCount("pay-a"))
	h.PaymentResolved(context.Background(), &models.Payment{ID: "pay-a", Status: "failed"})
	a.Close()
}

func TestUpgradePaymentWS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHub()
	p := &models.Payment{ID: "pay-1", Status: "pending", Amount: decimal.NewFromInt(50)}
	r := gin.New()
	r.GET("/ws/payments/:id", UpgradePaymentWS(h, mapReader{"pay-1": p}, errMissing, zap.NewNop()))
	srv := httptest.NewServer(r)
	defer srv.Close()

	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest("GET", "/ws/payments/nope", nil))
	assert.Equal(t, 404, resp.Code)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/payments/pay-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg StatusMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pending", msg.Status)
	assert.Equal(t, "pay-1", msg.PaymentID)

	require.Eventually(t, func() bool { return h.ClientCount("pay-1") == 1 }, time.Second, 10*time.Millisecond)
	receipt := "NLJ7RT61SV"
	h.PaymentResolved(context.Background(), &models.Payment{ID: "pay-1", Status: "completed", MpesaReceiptNumber: &receipt})

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "completed", msg.Status)
	require.NotNil(t, msg.MpesaReceiptNumber)
	assert.Equal(t, receipt, *msg.MpesaReceiptNumber)
}

// resolvingReader resolves the payment from another goroutine while the
// snapshot read is still in flight, then returns the stale pending row.
type resolvingReader struct {
	hub *Hub
}

func (r resolvingReader) GetPayment(ctx context.Context, id string) (*models.Payment, error) {
	go r.hub.PaymentResolved(context.Background(), &models.Payment{ID: id, Status: "completed"})
	time.Sleep(50 * time.Millisecond)
	return &models.Payment{ID: id, Status: "pending"}, nil
}

func TestUpgradePaymentWS_ResolvedDuringSnapshot(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewHub()
	r := gin.New()
	r.GET("/ws/payments/:id", UpgradePaymentWS(h, resolvingReader{hub: h}, errMissing, zap.NewNop()))
	srv := httptest.NewServer(r)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/payments/pay-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg StatusMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "pending", msg.Status)
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "completed", msg.Status)
}
