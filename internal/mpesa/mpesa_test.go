package mpesa_test

import (
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrJamesThe3rd/mpesaflow/internal/mpesa"
)

func TestTimestamp(t *testing.T) {
	nairobi := time.FixedZone("EAT", 3*60*60)
	ts := time.Date(2024, 3, 9, 17, 4, 5, 987_000_000, nairobi)

	assert.Equal(t, "20240309140405", mpesa.Timestamp(ts))
}

func TestPassword(t *testing.T) {
	got := mpesa.Password("174379", "passkey", "20240309140405")

	raw, err := base64.StdEncoding.DecodeString(got)
	require.NoError(t, err)
	assert.Equal(t, "174379passkey20240309140405", string(raw))
}

func TestCode_UnmarshalJSON(t *testing.T) {
	type testCase struct {
		name    string
		input   string
		want    mpesa.Code
		wantErr bool
	}

	tests := []testCase{
		{name: "String", input: `"1032"`, want: "1032"},
		{name: "Number", input: `0`, want: "0"},
		{name: "Null", input: `null`, want: ""},
		{name: "Fraction", input: `1.5`, wantErr: true},
		{name: "Object", input: `{}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var c mpesa.Code

			err := json.Unmarshal([]byte(tt.input), &c)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, c)
		})
	}
}

func TestError_IsProcessing(t *testing.T) {
	processing := &mpesa.Error{StatusCode: 500, Code: mpesa.CodeProcessing}
	other := &mpesa.Error{StatusCode: 400, Code: "400.002.02"}

	assert.ErrorIs(t, processing, mpesa.ErrProcessing)
	assert.NotErrorIs(t, other, mpesa.ErrProcessing)
}

func TestDecodeCallback(t *testing.T) {
	type testCase struct {
		name     string
		body     string
		wantCode mpesa.Code
		wantErr  bool
	}

	tests := []testCase{
		{
			name: "NumericResultCode",
			body: `{"Body":{"stkCallback":{"MerchantRequestID":"m1","CheckoutRequestID":"ws_CO_1","ResultCode":0,"ResultDesc":"The service request is processed successfully.",
				"CallbackMetadata":{"Item":[{"Name":"Amount","Value":1},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"}]}}}}`,
			wantCode: "0",
		},
		{
			name:     "StringResultCode",
			body:     `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":"1032","ResultDesc":"Request cancelled by user"}}}`,
			wantCode: "1032",
		},
		{name: "NotJSON", body: `not json`, wantErr: true},
		{name: "MissingEnvelope", body: `{"ResultCode":0}`, wantErr: true},
		{name: "MissingResultCode", body: `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1"}}}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cb, err := mpesa.DecodeCallback(strings.NewReader(tt.body))
			if tt.wantErr {
				assert.ErrorIs(t, err, mpesa.ErrMalformedCallback)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "ws_CO_1", cb.CheckoutRequestID)
			assert.Equal(t, tt.wantCode, cb.ResultCode)
		})
	}
}

func TestSTKCallback_Metadata(t *testing.T) {
	body := `{"Body":{"stkCallback":{"CheckoutRequestID":"ws_CO_1","ResultCode":0,
		"CallbackMetadata":{"Item":[{"Name":"Amount","Value":10},{"Name":"MpesaReceiptNumber","Value":"NLJ7RT61SV"}]}}}}`

	cb, err := mpesa.DecodeCallback(strings.NewReader(body))
	require.NoError(t, err)

	receipt, ok := cb.Metadata("MpesaReceiptNumber")
	assert.True(t, ok)
	assert.Equal(t, "NLJ7RT61SV", receipt)

	amount, ok := cb.Metadata("Amount")
	assert.True(t, ok)
	assert.Equal(t, "10", amount)

	_, ok = cb.Metadata("PhoneNumber")
	assert.False(t, ok)
}
