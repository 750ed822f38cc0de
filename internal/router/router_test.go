package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"quickpay/config"
	"quickpay/internal/database"
	"quickpay/internal/repository"
	"quickpay/internal/service"
	"quickpay/internal/ws"
	"quickpay/pkg/payment"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedProvider struct {
	authErr error
	result  payment.STKResult
}

func (p *scriptedProvider) Authenticate(ctx context.Context) error { return p.authErr }

func (p *scriptedProvider) STKPush(ctx context.Context, req payment.STKPushRequest) (payment.STKResult, error) {
	return p.result, nil
}

func (p *scriptedProvider) STKQuery(ctx context.Context, id string) (*payment.QueryResult, error) {
	return &payment.QueryResult{Pending: true}, nil
}

func newTestRouter(t *testing.T, provider payment.Provider) *gin.Engine {
	gin.SetMode(gin.TestMode)
	db := database.NewTestDB(t)
	cfg := &config.Config{
		Server:    config.ServerConfig{Env: "test"},
		Mpesa:     config.MpesaConfig{CallbackURL: "https://pay.example.com/api/v1/payments/mpesa/callback"},
		RateLimit: config.RateLimitConfig{PerMinute: 600, Burst: 100},
	}
	hub := ws.NewHub()
	svc := service.NewPaymentService(&cfg.Mpesa,
		repository.NewPaymentRepository(db),
		repository.NewCallbackRepository(db),
		provider, nil, zap.NewNop(), hub)
	return Setup(cfg, svc, hub, zap.NewNop())
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &m), w.Body.String())
	return m
}

func TestPaymentLifecycle(t *testing.T) {
	r := newTestRouter(t, &scriptedProvider{result: payment.Accepted{MerchantRequestID: "29115-1", CheckoutRequestID: "ws_CO_191220191020363925"}})

	w := do(r, http.MethodPost, "/api/v1/payments/mpesa/stkpush", `{"phone_number":"0712345678","amount":50}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "STK Push sent successfully", body["message"])
	assert.Equal(t, "ws_CO_191220191020363925", body["checkout_request_id"])
	paymentID, _ := body["payment_id"].(string)
	require.NotEmpty(t, paymentID)

	w = do(r, http.MethodGet, "/api/v1/payments/"+paymentID, "")
	require.Equal(t, http.StatusOK, w.Code)
	status := decode(t, w)
	assert.Equal(t, "pending", status["status"])
	assert.Equal(t, "254712345678", status["phone_number"])
	assert.Nil(t, status["mpesa_receipt_number"])

	callback := `{"Body":{"stkCallback":{"MerchantRequestID":"29115-1","CheckoutRequestID":"ws_CO_191220191020363925","ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[{"Name":"Amount","Value":50.00},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"},{"Name":"TransactionDate","Value":20191219102115},{"Name":"PhoneNumber","Value":254712345678}]}}}}`
	w = do(r, http.MethodPost, "/api/v1/payments/mpesa/callback", callback)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))

	w = do(r, http.MethodGet, "/api/v1/payments/"+paymentID, "")
	require.Equal(t, http.StatusOK, w.Code)
	status = decode(t, w)
	assert.Equal(t, "completed", status["status"])
	assert.Equal(t, "NLJ7RT61SV", status["mpesa_receipt_number"])
}

func TestInitiate_Validation(t *testing.T) {
	r := newTestRouter(t, &scriptedProvider{result: payment.Accepted{CheckoutRequestID: "x"}})
	cases := []struct {
		body string
		want string
	}{
		{`{"phone_number":"12345","amount":10}`, "please enter a valid Kenyan phone number (e.g., 0700000000)"},
		{`{"phone_number":"0600000000","amount":10}`, "please enter a valid Kenyan phone number (e.g., 0700000000)"},
		{`{"phone_number":"0700000000","amount":0}`, "please enter a valid amount (minimum KES 1)"},
		{`{"phone_number":"0700000000","amount":-5}`, "please enter a valid amount (minimum KES 1)"},
		{`{"phone_number":"0700000000","amount":"abc"}`, "please enter a valid amount (minimum KES 1)"},
		{`{"phone_number":"","amount":10}`, "Phone number and amount are required"},
		{`{"phone_number":"0700000000"}`, "Phone number and amount are required"},
		{`{`, "Invalid request body"},
	}
	for _, tc := range cases {
		w := do(r, http.MethodPost, "/api/v1/payments/mpesa/stkpush", tc.body)
		assert.Equal(t, http.StatusBadRequest, w.Code, tc.body)
		body := decode(t, w)
		assert.Equal(t, false, body["success"], tc.body)
		assert.Equal(t, tc.want, body["error"], tc.body)
	}
}

func TestInitiate_AcceptsInternationalFormats(t *testing.T) {
	r := newTestRouter(t, &scriptedProvider{result: payment.Accepted{CheckoutRequestID: "x"}})
	w := do(r, http.MethodPost, "/api/v1/payments/mpesa/stkpush", `{"phone_number":"+254 112 345 678","amount":"1500.5"}`)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}

func TestInitiate_ProviderFailures(t *testing.T) {
	r := newTestRouter(t, &scriptedProvider{result: payment.Rejected{Code: "400.002.02", Reason: "Bad Request - Invalid PhoneNumber"}})
	w := do(r, http.MethodPost, "/api/v1/payments/mpesa/stkpush", `{"phone_number":"0712345678","amount":50}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "STK Push failed: Bad Request - Invalid PhoneNumber", decode(t, w)["error"])

	r = newTestRouter(t, &scriptedProvider{authErr: payment.ErrCredentialsMissing})
	w = do(r, http.MethodPost, "/api/v1/payments/mpesa/stkpush", `{"phone_number":"0712345678","amount":50}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "failed to authenticate with M-Pesa", decode(t, w)["error"])

	r = newTestRouter(t, &scriptedProvider{result: payment.TransportError{Detail: "timeout"}})
	w = do(r, http.MethodPost, "/api/v1/payments/mpesa/stkpush", `{"phone_number":"0712345678","amount":50}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, false, decode(t, w)["success"])
}

func TestCallback_Responses(t *testing.T) {
	r := newTestRouter(t, &scriptedProvider{result: payment.Accepted{CheckoutRequestID: "ws_CO_1"}})

	w := do(r, http.MethodPost, "/api/v1/payments/mpesa/callback", `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_missing","ResultCode":0}}}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Payment not found", w.Body.String())

	w = do(r, http.MethodPost, "/api/v1/payments/mpesa/callback", `{"hello":"world"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())

	w = do(r, http.MethodPost, "/api/v1/payments/mpesa/callback", `not json`)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestMethodsAndPreflight(t *testing.T) {
	r := newTestRouter(t, &scriptedProvider{})

	w := do(r, http.MethodOptions, "/api/v1/payments/mpesa/stkpush", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "authorization, x-client-info, apikey, content-type", w.Header().Get("Access-Control-Allow-Headers"))

	w = do(r, http.MethodGet, "/api/v1/payments/mpesa/stkpush", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "Method not allowed", decode(t, w)["error"])

	w = do(r, http.MethodGet, "/api/v1/payments/mpesa/callback", "")
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "Method not allowed", w.Body.String())

	w = do(r, http.MethodGet, "/api/v1/payments/does-not-exist", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
