// Package payment runs a payment from initiation to a recorded outcome and
// reconciles provider callbacks against the ledger.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/mpesaflow/internal/auth"
	"github.com/MrJamesThe3rd/mpesaflow/internal/metrics"
	"github.com/MrJamesThe3rd/mpesaflow/internal/mpesa"
	"github.com/MrJamesThe3rd/mpesaflow/internal/transaction"
)

var ErrValidation = errors.New("invalid payment request")

// ValidationError is a caller mistake. Message is safe to return.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

var ErrCredentialsMissing = &ValidationError{Message: "M-Pesa credentials not found or incomplete."}

// Ledger records transactions. *transaction.Service satisfies it.
type Ledger interface {
	Create(ctx context.Context, params transaction.CreateParams) (*transaction.Transaction, error)
	UpdateStatus(ctx context.Context, ref transaction.Ref, status transaction.Status, resultDesc string) (transaction.Transition, error)
	Get(ctx context.Context, ref transaction.Ref) (*transaction.Transaction, error)
}

type PayRequest struct {
	Amount           decimal.Decimal
	PhoneNumber      string
	AccountReference string
	TransactionDesc  string
	CallbackURL      string
}

func (r PayRequest) validate() error {
	switch {
	case !r.Amount.IsPositive():
		return &ValidationError{Message: "amount must be greater than zero"}
	case !r.Amount.Equal(r.Amount.Truncate(0)):
		return &ValidationError{Message: "amount must be a whole number"}
	case r.PhoneNumber == "":
		return &ValidationError{Message: "phoneNumber is required"}
	case r.CallbackURL == "":
		return &ValidationError{Message: "callback url is required"}
	}

	return nil
}

type PayResult struct {
	TransactionID uuid.UUID
	RequestID     string
	Outcome       Outcome
}

type Service struct {
	resolver Resolver
	ledger   Ledger
	poller   *Poller
	now      func() time.Time
}

func NewService(resolver Resolver, ledger Ledger, poller *Poller) *Service {
	return &Service{
		resolver: resolver,
		ledger:   ledger,
		poller:   poller,
		now:      time.Now,
	}
}

// Pay takes one payment through credential lookup, token, STK push, ledger
// record and status polling. The ledger row exists as pending before the
// first status query.
func (s *Service) Pay(ctx context.Context, caller auth.Identity, req PayRequest) (*PayResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	profile, err := s.resolver.Resolve(ctx, caller)
	if err != nil {
		return nil, err
	}

	creds := profile.Credentials
	if !creds.Complete() {
		return nil, ErrCredentialsMissing
	}

	token, err := profile.Provider.Token(ctx, creds.ConsumerKey, creds.ConsumerSecret)
	if err != nil {
		return nil, err
	}

	timestamp := mpesa.Timestamp(s.now())
	password := mpesa.Password(creds.BusinessShortCode, creds.PassKey, timestamp)
	txID := uuid.New()

	initiated, err := profile.Provider.Initiate(ctx, token, mpesa.PaymentRequest{
		BusinessShortCode: creds.BusinessShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   mpesa.TransactionTypePayBill,
		Amount:            req.Amount.IntPart(),
		PartyA:            req.PhoneNumber,
		PartyB:            creds.BusinessShortCode,
		PhoneNumber:       req.PhoneNumber,
		CallBackURL:       req.CallbackURL,
		AccountReference:  req.AccountReference,
		TransactionDesc:   req.TransactionDesc,
	})
	if err != nil {
		return nil, err
	}

	log := slog.With("transaction_id", txID, "checkout_request_id", initiated.CheckoutRequestID, "key_id", caller.KeyID)

	_, err = s.ledger.Create(ctx, transaction.CreateParams{
		ID:                txID,
		RequestID:         initiated.CheckoutRequestID,
		KeyID:             caller.KeyID,
		OwnerID:           caller.OwnerID,
		BusinessShortCode: creds.BusinessShortCode,
		Amount:            req.Amount,
		PhoneNumber:       req.PhoneNumber,
		AccountReference:  req.AccountReference,
		Description:       req.TransactionDesc,
	})
	if err != nil {
		log.Error("initiated payment could not be recorded", "error", err)
		return nil, fmt.Errorf("recording transaction: %w", err)
	}

	outcome, err := s.poller.Poll(ctx, profile.Provider, token, mpesa.StatusQuery{
		BusinessShortCode: creds.BusinessShortCode,
		Password:          password,
		Timestamp:         timestamp,
		CheckoutRequestID: initiated.CheckoutRequestID,
	})
	if err != nil {
		return nil, fmt.Errorf("polling status: %w", err)
	}

	transition, err := s.ledger.UpdateStatus(ctx, transaction.ByID(txID), outcome.LedgerStatus(), outcome.ResultDesc())

	switch {
	case errors.Is(err, transaction.ErrStatusConflict):
		log.Warn("poll outcome disagrees with recorded status", "outcome", outcome.Kind, "error", err)

		current, err := s.ledger.Get(ctx, transaction.ByID(txID))
		if err != nil {
			return nil, fmt.Errorf("loading recorded transaction: %w", err)
		}

		outcome = recordedOutcome(current, outcome.Attempts)
	case err != nil:
		return nil, fmt.Errorf("updating transaction: %w", err)
	default:
		log.Info("payment processed", "outcome", outcome.Kind, "attempts", outcome.Attempts, "transition", transition)
	}

	metrics.PaymentOutcomes.WithLabelValues(string(outcome.Kind)).Inc()

	return &PayResult{
		TransactionID: txID,
		RequestID:     initiated.CheckoutRequestID,
		Outcome:       outcome,
	}, nil
}

// recordedOutcome reports what the ledger holds once a callback settled the
// transaction first. The ledger is authoritative for the response.
func recordedOutcome(tx *transaction.Transaction, attempts int) Outcome {
	status := &mpesa.StatusResponse{
		CheckoutRequestID: tx.RequestID,
		ResultDesc:        tx.ResultDesc,
	}

	switch tx.Status {
	case transaction.StatusCompleted:
		status.ResultCode = mpesa.ResultSuccess
		return Outcome{Kind: OutcomeCompleted, Status: status, Attempts: attempts}
	case transaction.StatusFailed:
		return Outcome{Kind: OutcomeFailed, Status: status, Attempts: attempts}
	}

	return Outcome{Kind: OutcomePending, Attempts: attempts}
}

// Reconcile applies a provider callback. Repeated callbacks for the same
// result are harmless.
func (s *Service) Reconcile(ctx context.Context, cb *mpesa.STKCallback) (transaction.Transition, error) {
	status := transaction.StatusFromResultCode(cb.ResultCode.String())

	transition, err := s.ledger.UpdateStatus(ctx, transaction.ByRequestID(cb.CheckoutRequestID), status, cb.ResultDesc)
	if err != nil {
		metrics.Callbacks.WithLabelValues("error").Inc()
		return transition, fmt.Errorf("reconciling %s: %w", cb.CheckoutRequestID, err)
	}

	metrics.Callbacks.WithLabelValues(string(transition)).Inc()

	return transition, nil
}
