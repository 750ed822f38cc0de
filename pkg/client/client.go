// Package client talks to the quickpay HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 40 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// APIError is a non-2xx answer from the server. Message is the server's
// "error" field when present.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("quickpay: HTTP %d: %s", e.StatusCode, e.Message)
}

type InitiateResponse struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	PaymentID         string `json:"payment_id"`
	CheckoutRequestID string `json:"checkout_request_id"`
	Error             string `json:"error"`
}

type PaymentStatus struct {
	ID                 string          `json:"id"`
	Status             string          `json:"status"`
	MpesaReceiptNumber *string         `json:"mpesa_receipt_number"`
	CheckoutRequestID  *string         `json:"checkout_request_id"`
	Amount             decimal.Decimal `json:"amount"`
	PhoneNumber        string          `json:"phone_number"`
}

// Initiate asks the server to send an STK push to phone.
func (c *Client) Initiate(ctx context.Context, phone string, amount decimal.Decimal) (*InitiateResponse, error) {
	payload, err := json.Marshal(map[string]interface{}{
		"phone_number": phone,
		"amount":       amount,
	})
	if err != nil {
		return nil, err
	}
	var out InitiateResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/payments/mpesa/stkpush", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PaymentStatus reads the stored state of payment id.
func (c *Client) PaymentStatus(ctx context.Context, id string) (*PaymentStatus, error) {
	var out PaymentStatus
	if err := c.do(ctx, http.MethodGet, "/api/v1/payments/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out interface{}) error {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			apiErr.Message = e.Error
		}
		return apiErr
	}
	return json.Unmarshal(raw, out)
}
