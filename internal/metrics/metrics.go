package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ProviderRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpesa_provider_requests_total",
			Help: "Requests sent to the M-Pesa API, by response code and method.",
		},
		[]string{"code", "method"},
	)

	PollAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpesa_status_poll_attempts_total",
			Help: "Status queries issued while waiting for a payment result.",
		},
		[]string{"result"},
	)

	PaymentOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_outcomes_total",
			Help: "Outcome of initiated payments as observed by the poller.",
		},
		[]string{"outcome"},
	)

	Callbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mpesa_callbacks_total",
			Help: "Provider callbacks received, by reconciliation result.",
		},
		[]string{"result"},
	)

	LedgerConflicts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_status_conflicts_total",
			Help: "Status updates rejected because the transaction already settled differently.",
		},
	)
)

func init() {
	prometheus.MustRegister(ProviderRequests, PollAttempts, PaymentOutcomes, Callbacks, LedgerConflicts)
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// InstrumentTransport counts outgoing provider requests.
func InstrumentTransport(next http.RoundTripper) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}

	return promhttp.InstrumentRoundTripperCounter(ProviderRequests, next)
}
