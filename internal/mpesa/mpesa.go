// Package mpesa is a client for the M-Pesa Daraja STK push API.
package mpesa

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

const (
	// CodeProcessing is returned by the status query while the customer has
	// not yet answered the prompt.
	CodeProcessing = "500.001.1001"

	// ResultSuccess marks a settled payment.
	ResultSuccess = "0"

	// ResultCancelledByUser is the result code for a prompt dismissed by the customer.
	ResultCancelledByUser = "1032"

	TransactionTypePayBill = "CustomerPayBillOnline"
)

var (
	ErrAuthentication = errors.New("mpesa authentication failed")
	ErrInitiation     = errors.New("mpesa payment initiation failed")
	ErrProcessing     = errors.New("mpesa transaction still processing")
)

// Error is an error body returned by the API.
type Error struct {
	StatusCode int    `json:"-"`
	RequestID  string `json:"requestId"`
	Code       string `json:"errorCode"`
	Message    string `json:"errorMessage"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("mpesa: %s: %s (http %d)", e.Code, e.Message, e.StatusCode)
}

// Is matches ErrProcessing for the in-progress error code.
func (e *Error) Is(target error) bool {
	return target == ErrProcessing && e.Code == CodeProcessing
}

// Endpoints are the API URLs for one environment.
type Endpoints struct {
	OAuthURL   string
	ProcessURL string
	QueryURL   string
}

const timestampLayout = "20060102150405"

// Timestamp formats t the way the API expects, in UTC to the second.
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Password derives the request password from the shortcode, pass key and timestamp.
func Password(shortCode, passKey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passKey + timestamp))
}

// Code is a result code. The API sends it as a string in query responses and
// as a number in callbacks.
type Code string

func (c *Code) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}

	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}

		*c = Code(s)

		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("result code: %w", err)
	}

	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("result code %s is not an integer", n)
	}

	*c = Code(n.String())

	return nil
}

func (c Code) String() string {
	return string(c)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// PaymentRequest is the STK push request body.
type PaymentRequest struct {
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

type PaymentResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type StatusQuery struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID"`
}

// StatusResponse is the status query result. ResultCode is empty while the
// API has no definitive answer.
type StatusResponse struct {
	ResponseCode        string `json:"ResponseCode,omitempty"`
	ResponseDescription string `json:"ResponseDescription,omitempty"`
	MerchantRequestID   string `json:"MerchantRequestID,omitempty"`
	CheckoutRequestID   string `json:"CheckoutRequestID,omitempty"`
	ResultCode          Code   `json:"ResultCode,omitempty"`
	ResultDesc          string `json:"ResultDesc,omitempty"`
}

// Settled reports whether the response carries a definitive result.
func (r *StatusResponse) Settled() bool {
	return r != nil && r.ResultCode != ""
}
