package payment

import (
	"context"

	"github.com/MrJamesThe3rd/mpesaflow/internal/mpesa"
)

//go:generate mockgen -source=provider.go -destination=provider_mock.go -package=payment

// StatusQuerier asks the provider for the result of an initiated payment.
type StatusQuerier interface {
	QueryStatus(ctx context.Context, token string, q mpesa.StatusQuery) (*mpesa.StatusResponse, error)
}

// Provider is the subset of the M-Pesa API a payment needs.
type Provider interface {
	StatusQuerier
	Token(ctx context.Context, consumerKey, consumerSecret string) (string, error)
	Initiate(ctx context.Context, token string, req mpesa.PaymentRequest) (*mpesa.PaymentResponse, error)
}
