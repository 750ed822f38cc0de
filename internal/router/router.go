package router

import (
	"net/http"
	"strings"

	"quickpay/config"
	"quickpay/internal/handler"
	"quickpay/internal/middleware"
	"quickpay/internal/service"
	"quickpay/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const callbackPath = "/api/v1/payments/mpesa/callback"

func Setup(cfg *config.Config, payments *service.PaymentService, hub *ws.Hub, logger *zap.Logger) *gin.Engine {
	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	handler.RegisterValidators()

	r := gin.New()
	r.HandleMethodNotAllowed = true
	r.Use(gin.Recovery())
	r.NoMethod(methodNotAllowed)

	mpesaHandler := handler.NewMpesaHandler(payments, logger)
	mpesaWebhookHandler := handler.NewMpesaWebhookHandler(payments, logger)

	var initiateMw []gin.HandlerFunc
	if cfg.RateLimit.PerMinute > 0 {
		initiateMw = append(initiateMw, middleware.RateLimit(middleware.NewIPRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)))
	}

	api := r.Group("/api/v1")
	{
		// Daraja calls the callback server to server; it gets no CORS headers.
		api.POST("/payments/mpesa/callback", mpesaWebhookHandler.Handle)

		browser := api.Group("/payments", middleware.CORS())
		{
			browser.POST("/mpesa/stkpush", append(initiateMw, mpesaHandler.Initiate)...)
			browser.OPTIONS("/mpesa/stkpush", func(c *gin.Context) { c.Status(http.StatusOK) })
			browser.GET("/:id", mpesaHandler.Status)
		}
	}

	r.GET("/ws/payments/:id", ws.UpgradePaymentWS(hub, payments, service.ErrPaymentNotFound, logger))

	return r
}

// methodNotAllowed answers the callback route in plain text, like its other
// responses, and everything else in JSON.
func methodNotAllowed(c *gin.Context) {
	if strings.HasPrefix(c.Request.URL.Path, callbackPath) {
		c.String(http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	middleware.SetCORSHeaders(c)
	c.JSON(http.StatusMethodNotAllowed, gin.H{"error": "Method not allowed"})
}
