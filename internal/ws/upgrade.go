package ws

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"quickpay/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// PaymentReader loads the current state of a payment.
type PaymentReader interface {
	GetPayment(ctx context.Context, id string) (*models.Payment, error)
}

// UpgradePaymentWS streams status updates for the payment in the :id path
// parameter. The current status is the first message after the upgrade.
func UpgradePaymentWS(hub *Hub, payments PaymentReader, notFound error, logger *zap.Logger) gin.HandlerFunc {
	logger = logger.With(zap.String("component", "ws"))
	return func(c *gin.Context) {
		id := c.Param("id")
		client := NewClient(id)
		hub.Register(client)
		defer client.Close()

		err := client.sendSnapshot(func() ([]byte, error) {
			p, err := payments.GetPayment(c.Request.Context(), id)
			if err != nil {
				return nil, err
			}
			return json.Marshal(NewStatusMessage(p))
		})
		if errors.Is(err, notFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "payment not found"})
			return
		}
		if err != nil {
			logger.Error("load payment for ws failed", zap.String("payment_id", id), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load payment"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		go writePump(client, conn)
		readPump(conn)
	}
}

// writePump copies messages from client.Send to the connection.
func writePump(c *Client, conn *websocket.Conn) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-c.Send:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump drains the connection until the peer goes away.
func readPump(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}
