package mpesa

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

var ErrMalformedCallback = errors.New("malformed mpesa callback")

// CallbackItem is one entry of CallbackMetadata. Value is a string or a number.
type CallbackItem struct {
	Name  string          `json:"Name"`
	Value json.RawMessage `json:"Value,omitempty"`
}

type STKCallback struct {
	MerchantRequestID string `json:"MerchantRequestID"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
	ResultCode        Code   `json:"ResultCode"`
	ResultDesc        string `json:"ResultDesc"`
	CallbackMetadata  *struct {
		Item []CallbackItem `json:"Item"`
	} `json:"CallbackMetadata,omitempty"`
}

// Callback is the payload posted to CallBackURL once the customer answers.
type Callback struct {
	Body struct {
		STKCallback STKCallback `json:"stkCallback"`
	} `json:"Body"`
}

// Metadata returns the raw value of a CallbackMetadata item, such as
// "MpesaReceiptNumber".
func (s STKCallback) Metadata(name string) (string, bool) {
	if s.CallbackMetadata == nil {
		return "", false
	}

	for _, it := range s.CallbackMetadata.Item {
		if it.Name != name {
			continue
		}

		var str string
		if err := json.Unmarshal(it.Value, &str); err == nil {
			return str, true
		}

		return string(it.Value), len(it.Value) > 0
	}

	return "", false
}

// DecodeCallback reads a callback and checks the fields needed to reconcile it.
func DecodeCallback(r io.Reader) (*STKCallback, error) {
	var cb Callback
	if err := json.NewDecoder(r).Decode(&cb); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedCallback, err)
	}

	stk := cb.Body.STKCallback
	if stk.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: missing CheckoutRequestID", ErrMalformedCallback)
	}

	if stk.ResultCode == "" {
		return nil, fmt.Errorf("%w: missing ResultCode", ErrMalformedCallback)
	}

	return &stk, nil
}
