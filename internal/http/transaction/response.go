package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/mpesaflow/internal/mpesa"
	"github.com/MrJamesThe3rd/mpesaflow/internal/payment"
	"github.com/MrJamesThe3rd/mpesaflow/internal/transaction"
)

const pendingMessage = "Transaction is still being processed. Please check back later."

type paymentResponse struct {
	TransactionID  uuid.UUID             `json:"transactionId"`
	MpesaRequestID string                `json:"mpesaRequestId"`
	Status         payment.OutcomeKind   `json:"status"`
	MpesaStatus    *mpesa.StatusResponse `json:"mpesaStatus,omitempty"`
	Message        string                `json:"message,omitempty"`
}

func toPaymentResponse(res *payment.PayResult) paymentResponse {
	resp := paymentResponse{
		TransactionID:  res.TransactionID,
		MpesaRequestID: res.RequestID,
		Status:         res.Outcome.Kind,
		MpesaStatus:    res.Outcome.Status,
	}

	if res.Outcome.Kind == payment.OutcomePending {
		resp.Message = pendingMessage
	}

	return resp
}

type transactionResponse struct {
	TransactionID     uuid.UUID          `json:"transactionId"`
	MpesaRequestID    string             `json:"mpesaRequestId"`
	BusinessShortCode string             `json:"businessShortCode"`
	Amount            decimal.Decimal    `json:"amount"`
	PhoneNumber       string             `json:"phoneNumber"`
	AccountReference  string             `json:"accountReference"`
	TransactionDesc   string             `json:"transactionDesc"`
	Status            transaction.Status `json:"status"`
	ResultDesc        string             `json:"resultDesc,omitempty"`
	CreatedAt         time.Time          `json:"createdAt"`
	UpdatedAt         *time.Time         `json:"updatedAt,omitempty"`
}

func toResponse(tx *transaction.Transaction) transactionResponse {
	return transactionResponse{
		TransactionID:     tx.ID,
		MpesaRequestID:    tx.RequestID,
		BusinessShortCode: tx.BusinessShortCode,
		Amount:            tx.Amount,
		PhoneNumber:       tx.PhoneNumber,
		AccountReference:  tx.AccountReference,
		TransactionDesc:   tx.Description,
		Status:            tx.Status,
		ResultDesc:        tx.ResultDesc,
		CreatedAt:         tx.CreatedAt,
		UpdatedAt:         tx.UpdatedAt,
	}
}

func toResponseList(txs []*transaction.Transaction) []transactionResponse {
	resp := make([]transactionResponse, len(txs))
	for i, tx := range txs {
		resp[i] = toResponse(tx)
	}

	return resp
}
