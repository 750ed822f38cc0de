package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	tokenPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	// Daraja answers an STK query with this error code until the customer acts.
	queryStillProcessing = "500.001.1001"
)

// DarajaConfig configures a DarajaProvider.
type DarajaConfig struct {
	BaseURL         string
	ConsumerKey     string
	ConsumerSecret  string
	Shortcode       string
	Passkey         string
	TransactionType string
	Timeout         time.Duration
}

// DarajaProvider implements Provider against the Safaricom Daraja API.
// Each outbound call is bounded by Timeout; nothing is retried.
type DarajaProvider struct {
	cfg    DarajaConfig
	client *http.Client
	now    func() time.Time
	logger *zap.Logger

	mu    sync.Mutex
	token *oauth2.Token
}

func NewDarajaProvider(cfg DarajaConfig, logger *zap.Logger) *DarajaProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://sandbox.safaricom.co.ke"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.TransactionType == "" {
		cfg.TransactionType = "CustomerPayBillOnline"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &DarajaProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
		logger: logger,
	}
	return p
}

// accessToken returns the cached token, fetching a new one with ctx once it
// is within oauth2's expiry margin. Concurrent callers share one fetch.
func (p *DarajaProvider) accessToken(ctx context.Context) (*oauth2.Token, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	tok, err := oauth2.ReuseTokenSource(p.token, &darajaTokenSource{
		ctx:            ctx,
		url:            p.cfg.BaseURL + tokenPath,
		consumerKey:    p.cfg.ConsumerKey,
		consumerSecret: p.cfg.ConsumerSecret,
		client:         p.client,
		now:            time.Now,
	}).Token()
	if err != nil {
		return nil, err
	}
	p.token = tok
	return tok, nil
}

type stkPushBody struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// darajaResponse covers both the success and the error shapes Daraja returns.
type darajaResponse struct {
	MerchantRequestID   string   `json:"MerchantRequestID"`
	CheckoutRequestID   string   `json:"CheckoutRequestID"`
	ResponseCode        string   `json:"ResponseCode"`
	ResponseDescription string   `json:"ResponseDescription"`
	CustomerMessage     string   `json:"CustomerMessage"`
	ResultCode          *FlexInt `json:"ResultCode"`
	ResultDesc          string   `json:"ResultDesc"`
	RequestID           string   `json:"requestId"`
	ErrorCode           string   `json:"errorCode"`
	ErrorMessage        string   `json:"errorMessage"`
}

func (p *DarajaProvider) Authenticate(ctx context.Context) error {
	_, err := p.accessToken(ctx)
	return err
}

func (p *DarajaProvider) STKPush(ctx context.Context, req STKPushRequest) (STKResult, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	timestamp := Timestamp(p.now())
	body := stkPushBody{
		BusinessShortCode: p.cfg.Shortcode,
		Password:          Password(p.cfg.Shortcode, p.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		TransactionType:   p.cfg.TransactionType,
		Amount:            req.Amount,
		PartyA:            req.PhoneNumber,
		PartyB:            p.cfg.Shortcode,
		PhoneNumber:       req.PhoneNumber,
		CallBackURL:       req.CallbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.Description,
	}
	p.logger.Info("submitting stk push",
		zap.String("account_reference", req.AccountReference),
		zap.Int64("amount", req.Amount),
		zap.String("phone", req.PhoneNumber))

	out, status, err := p.post(ctx, stkPushPath, token.AccessToken, body)
	if err != nil {
		return TransportError{Detail: "stk push request failed", Err: err}, nil
	}
	if out == nil {
		return TransportError{Detail: fmt.Sprintf("stk push: unreadable response (HTTP %d)", status)}, nil
	}
	if out.ResponseCode == "0" {
		return Accepted{
			MerchantRequestID: out.MerchantRequestID,
			CheckoutRequestID: out.CheckoutRequestID,
			CustomerMessage:   out.CustomerMessage,
		}, nil
	}
	rej := Rejected{Code: out.ErrorCode, Reason: out.ErrorMessage}
	if rej.Code == "" {
		rej.Code = out.ResponseCode
	}
	if rej.Reason == "" {
		rej.Reason = out.ResponseDescription
	}
	if rej.Reason == "" {
		rej.Reason = "Unknown error"
	}
	return rej, nil
}

type stkQueryBody struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

func (p *DarajaProvider) STKQuery(ctx context.Context, checkoutRequestID string) (*QueryResult, error) {
	token, err := p.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	timestamp := Timestamp(p.now())
	out, status, err := p.post(ctx, stkQueryPath, token.AccessToken, stkQueryBody{
		BusinessShortCode: p.cfg.Shortcode,
		Password:          Password(p.cfg.Shortcode, p.cfg.Passkey, timestamp),
		Timestamp:         timestamp,
		CheckoutRequestID: checkoutRequestID,
	})
	if err != nil {
		return nil, fmt.Errorf("stk query: %w", err)
	}
	if out == nil {
		return nil, fmt.Errorf("stk query: unreadable response (HTTP %d)", status)
	}
	if out.ErrorCode == queryStillProcessing {
		return &QueryResult{Pending: true, ResultDesc: out.ErrorMessage}, nil
	}
	if out.ResponseCode != "0" {
		return nil, fmt.Errorf("stk query rejected: %s %s", out.ErrorCode, out.ErrorMessage)
	}
	if out.ResultCode == nil {
		return nil, fmt.Errorf("stk query: no ResultCode in response")
	}
	return &QueryResult{ResultCode: int(*out.ResultCode), ResultDesc: out.ResultDesc}, nil
}

// post sends body as JSON with a bearer token. A nil response with a nil error
// means the server answered with something that is not a Daraja JSON body.
func (p *DarajaProvider) post(ctx context.Context, path, accessToken string, body interface{}) (*darajaResponse, int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.BaseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+accessToken)
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	p.logger.Debug("daraja response", zap.String("path", path), zap.Int("status", resp.StatusCode), zap.ByteString("body", raw))
	var out darajaResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, resp.StatusCode, nil
	}
	return &out, resp.StatusCode, nil
}
