package payment

import (
	"fmt"
	"strconv"
)

// CallbackEnvelope is the body Daraja POSTs to the STK callback URL.
type CallbackEnvelope struct {
	Body *struct {
		STKCallback *STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// STKCallback returns the nested result, or nil when the envelope does not carry one.
func (e *CallbackEnvelope) STKCallback() *STKCallback {
	if e == nil || e.Body == nil {
		return nil
	}
	return e.Body.STKCallback
}

type STKCallback struct {
	MerchantRequestID string            `json:"MerchantRequestID"`
	CheckoutRequestID string            `json:"CheckoutRequestID"`
	ResultCode        *FlexInt          `json:"ResultCode"`
	ResultDesc        string            `json:"ResultDesc"`
	CallbackMetadata  *CallbackMetadata `json:"CallbackMetadata,omitempty"`
}

type CallbackMetadata struct {
	Item []CallbackItem `json:"Item"`
}

// CallbackItem values are strings or numbers depending on Name.
type CallbackItem struct {
	Name  string      `json:"Name"`
	Value interface{} `json:"Value,omitempty"`
}

// Item returns the metadata value named name as a string.
func (c *STKCallback) Item(name string) (string, bool) {
	if c.CallbackMetadata == nil {
		return "", false
	}
	for _, it := range c.CallbackMetadata.Item {
		if it.Name != name || it.Value == nil {
			continue
		}
		switch v := it.Value.(type) {
		case string:
			return v, true
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64), true
		default:
			return fmt.Sprint(v), true
		}
	}
	return "", false
}
