package transaction

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status represents the lifecycle state of a transaction.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// ResultCodeSuccess is the provider result code for a settled payment.
const ResultCodeSuccess = "0"

var (
	ErrNotFound       = errors.New("transaction not found")
	ErrStatusConflict = errors.New("conflicting terminal status")
	ErrInvalidStatus  = errors.New("invalid transaction status")
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusFailed:
		return true
	}

	return false
}

// Terminal reports whether s can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// StatusFromResultCode maps a definitive provider result code to a ledger status.
func StatusFromResultCode(code string) Status {
	if code == ResultCodeSuccess {
		return StatusCompleted
	}

	return StatusFailed
}

// Transaction is a single payment attempt recorded in the ledger.
type Transaction struct {
	ID                uuid.UUID
	RequestID         string // CheckoutRequestID assigned by the provider
	KeyID             string
	OwnerID           string
	BusinessShortCode string
	Amount            decimal.Decimal
	PhoneNumber       string
	AccountReference  string
	Description       string
	Status            Status
	ResultDesc        string
	CreatedAt         time.Time
	UpdatedAt         *time.Time
}

// Ref addresses a transaction either by its own ID or by the provider request ID.
type Ref struct {
	ID        uuid.UUID
	RequestID string
}

func ByID(id uuid.UUID) Ref {
	return Ref{ID: id}
}

func ByRequestID(requestID string) Ref {
	return Ref{RequestID: requestID}
}

// IsRequestID reports whether the reference uses the provider request ID.
func (r Ref) IsRequestID() bool {
	return r.RequestID != ""
}

func (r Ref) String() string {
	if r.IsRequestID() {
		return "request:" + r.RequestID
	}

	return "id:" + r.ID.String()
}
