// Package payment is a client for the Safaricom Daraja M-Pesa Express (STK push) API.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// STKPushRequest is a payment prompt to send to a customer's phone.
type STKPushRequest struct {
	Amount           int64  // whole shillings
	PhoneNumber      string // 2547XXXXXXXX
	CallbackURL      string
	AccountReference string
	Description      string
}

// STKResult is one of Accepted, Rejected or TransportError.
type STKResult interface {
	isSTKResult()
}

// Accepted means Daraja queued the prompt (ResponseCode "0").
type Accepted struct {
	MerchantRequestID string
	CheckoutRequestID string
	CustomerMessage   string
}

// Rejected means Daraja answered but refused the request.
type Rejected struct {
	Code   string
	Reason string
}

// TransportError means no usable answer was received; the prompt may or may not have been sent.
type TransportError struct {
	Detail string
	Err    error
}

func (Accepted) isSTKResult()       {}
func (Rejected) isSTKResult()       {}
func (TransportError) isSTKResult() {}

func (e TransportError) Error() string {
	if e.Err != nil {
		return e.Detail + ": " + e.Err.Error()
	}
	return e.Detail
}

func (e TransportError) Unwrap() error { return e.Err }

// QueryResult is the answer to an STK push status query.
type QueryResult struct {
	Pending    bool // still waiting for the customer
	ResultCode int
	ResultDesc string
}

// Provider submits and queries STK pushes. The error return is reserved for
// authentication and query failures; submission outcomes are in STKResult.
type Provider interface {
	// Authenticate obtains (or reuses) an access token without submitting anything.
	Authenticate(ctx context.Context) error
	STKPush(ctx context.Context, req STKPushRequest) (STKResult, error)
	STKQuery(ctx context.Context, checkoutRequestID string) (*QueryResult, error)
}

var ErrCredentialsMissing = errors.New("M-Pesa credentials not configured")

// AuthError is a failed OAuth token request.
type AuthError struct {
	StatusCode int
	Status     string
	Body       string
	Err        error
}

func (e *AuthError) Error() string {
	if e.Err != nil {
		return "mpesa token request: " + e.Err.Error()
	}
	return fmt.Sprintf("mpesa token request: %s: %s", e.Status, e.Body)
}

func (e *AuthError) Unwrap() error { return e.Err }

// FlexInt decodes integers Daraja sends either as JSON numbers or as numeric
// strings. Use *FlexInt where an absent value must be told apart from 0.
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	b = bytes.Trim(b, `"`)
	if len(b) == 0 {
		return errors.New("empty integer")
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid integer %s: %w", b, err)
	}
	*f = FlexInt(n)
	return nil
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(int64(f))
}
