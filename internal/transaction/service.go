package transaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/mpesaflow/internal/metrics"
)

//go:generate mockgen -source=service.go -destination=repository_mock.go -package=transaction
type Repository interface {
	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransaction(ctx context.Context, ref Ref) (*Transaction, error)
	ListTransactions(ctx context.Context, filter ListFilter) ([]*Transaction, error)

	// SetStatusIfPending updates status and result description only while the
	// stored status is still pending. It reports whether a row was changed.
	SetStatusIfPending(ctx context.Context, ref Ref, status Status, resultDesc string) (bool, error)
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

type CreateParams struct {
	ID                uuid.UUID
	RequestID         string
	KeyID             string
	OwnerID           string
	BusinessShortCode string
	Amount            decimal.Decimal
	PhoneNumber       string
	AccountReference  string
	Description       string
}

type ListFilter struct {
	KeyID  *string
	Status *Status
}

// Transition describes what an UpdateStatus call did to the stored record.
type Transition string

const (
	TransitionApplied   Transition = "applied"
	TransitionDuplicate Transition = "duplicate"
	TransitionStale     Transition = "stale"
	TransitionRejected  Transition = "rejected"
)

// Create records a new pending transaction. Every transaction starts pending.
func (s *Service) Create(ctx context.Context, params CreateParams) (*Transaction, error) {
	if params.ID == uuid.Nil {
		params.ID = uuid.New()
	}

	tx := &Transaction{
		ID:                params.ID,
		RequestID:         params.RequestID,
		KeyID:             params.KeyID,
		OwnerID:           params.OwnerID,
		BusinessShortCode: params.BusinessShortCode,
		Amount:            params.Amount,
		PhoneNumber:       params.PhoneNumber,
		AccountReference:  params.AccountReference,
		Description:       params.Description,
		Status:            StatusPending,
	}
	if err := s.repo.CreateTransaction(ctx, tx); err != nil {
		return nil, err
	}

	return tx, nil
}

func (s *Service) Get(ctx context.Context, ref Ref) (*Transaction, error) {
	return s.repo.GetTransaction(ctx, ref)
}

func (s *Service) List(ctx context.Context, filter ListFilter) ([]*Transaction, error) {
	return s.repo.ListTransactions(ctx, filter)
}

// UpdateStatus moves a pending transaction to status. The poller and the
// callback receiver may both report the same payment, so the write is a
// compare-and-set on pending:
//   - the same terminal status twice is a no-op (TransitionDuplicate)
//   - pending after settlement is ignored (TransitionStale)
//   - a different terminal status is refused with ErrStatusConflict
func (s *Service) UpdateStatus(ctx context.Context, ref Ref, status Status, resultDesc string) (Transition, error) {
	if !status.Valid() {
		return TransitionRejected, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	changed, err := s.repo.SetStatusIfPending(ctx, ref, status, resultDesc)
	if err != nil {
		return TransitionRejected, fmt.Errorf("setting status: %w", err)
	}

	if changed {
		return TransitionApplied, nil
	}

	current, err := s.repo.GetTransaction(ctx, ref)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return TransitionRejected, err
		}

		return TransitionRejected, fmt.Errorf("loading current status: %w", err)
	}

	switch {
	case current.Status == status:
		slog.Debug("duplicate status update", "ref", ref.String(), "status", status)
		return TransitionDuplicate, nil
	case status == StatusPending:
		slog.Info("ignoring pending update on settled transaction",
			"ref", ref.String(), "current", current.Status)

		return TransitionStale, nil
	}

	metrics.LedgerConflicts.Inc()
	slog.Warn("conflicting status update",
		"ref", ref.String(),
		"transaction_id", current.ID,
		"current", current.Status,
		"attempted", status,
		"attempted_desc", resultDesc,
	)

	return TransitionRejected, fmt.Errorf("%w: %s is %s, refusing %s", ErrStatusConflict, ref, current.Status, status)
}
