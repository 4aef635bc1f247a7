package payment

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrJamesThe3rd/mpesaflow/internal/metrics"
	"github.com/MrJamesThe3rd/mpesaflow/internal/mpesa"
	"github.com/MrJamesThe3rd/mpesaflow/internal/retry"
	"github.com/MrJamesThe3rd/mpesaflow/internal/transaction"
)

// OutcomeKind classifies what polling learned about a payment.
type OutcomeKind string

const (
	OutcomeCompleted OutcomeKind = "completed"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeCancelled OutcomeKind = "cancelled"
	OutcomePending   OutcomeKind = "pending"
)

const PendingResultDesc = "Transaction status could not be determined after multiple attempts"

var errNotSettled = errors.New("status response carried no result code")

// Outcome is the result of polling. Status is nil for OutcomePending.
type Outcome struct {
	Kind     OutcomeKind
	Status   *mpesa.StatusResponse
	Attempts int
}

// LedgerStatus maps the outcome onto the transaction lifecycle. A cancelled
// prompt is a failed payment.
func (o Outcome) LedgerStatus() transaction.Status {
	switch o.Kind {
	case OutcomeCompleted:
		return transaction.StatusCompleted
	case OutcomeFailed, OutcomeCancelled:
		return transaction.StatusFailed
	}

	return transaction.StatusPending
}

func (o Outcome) ResultDesc() string {
	if o.Status == nil {
		return PendingResultDesc
	}

	return o.Status.ResultDesc
}

func outcomeFor(resp *mpesa.StatusResponse) OutcomeKind {
	switch resp.ResultCode.String() {
	case mpesa.ResultSuccess:
		return OutcomeCompleted
	case mpesa.ResultCancelledByUser:
		return OutcomeCancelled
	}

	return OutcomeFailed
}

// Poller queries payment status until the provider gives a definitive
// answer, the attempts run out or the overall timeout passes.
type Poller struct {
	policy  retry.Policy
	timeout time.Duration
}

func NewPoller(policy retry.Policy, timeout time.Duration) *Poller {
	return &Poller{policy: policy, timeout: timeout}
}

func isStillProcessing(err error) bool {
	return errors.Is(err, mpesa.ErrProcessing) || errors.Is(err, errNotSettled)
}

// Poll returns OutcomePending with a nil error when no answer arrived in
// time. Errors other than the in-progress signal end polling at once.
func (p *Poller) Poll(ctx context.Context, q StatusQuerier, token string, query mpesa.StatusQuery) (Outcome, error) {
	pollCtx := ctx

	if p.timeout > 0 {
		var cancel context.CancelFunc

		pollCtx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	attempts := 0

	resp, err := retry.Do(pollCtx, p.policy, func(ctx context.Context, attempt int) (*mpesa.StatusResponse, error) {
		attempts = attempt

		resp, err := q.QueryStatus(ctx, token, query)

		switch {
		case err != nil && errors.Is(err, mpesa.ErrProcessing):
			metrics.PollAttempts.WithLabelValues("processing").Inc()
			slog.Debug("transaction still processing",
				"checkout_request_id", query.CheckoutRequestID,
				"attempt", attempt,
				"max_attempts", p.policy.MaxAttempts,
			)

			return nil, err
		case err != nil:
			metrics.PollAttempts.WithLabelValues("error").Inc()
			return nil, err
		case !resp.Settled():
			metrics.PollAttempts.WithLabelValues("processing").Inc()
			return nil, errNotSettled
		}

		metrics.PollAttempts.WithLabelValues("settled").Inc()

		return resp, nil
	}, isStillProcessing)

	switch {
	case err == nil:
		return Outcome{Kind: outcomeFor(resp), Status: resp, Attempts: attempts}, nil
	case errors.Is(err, retry.ErrExhausted):
		return Outcome{Kind: OutcomePending, Attempts: attempts}, nil
	case ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) && pollCtx.Err() != nil:
		slog.Info("status polling timed out", "checkout_request_id", query.CheckoutRequestID, "attempts", attempts)
		return Outcome{Kind: OutcomePending, Attempts: attempts}, nil
	}

	return Outcome{Attempts: attempts}, err
}
