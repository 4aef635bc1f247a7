package transaction

import (
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/MrJamesThe3rd/mpesaflow/internal/auth"
	"github.com/MrJamesThe3rd/mpesaflow/internal/http/render"
	"github.com/MrJamesThe3rd/mpesaflow/internal/http/request"
	"github.com/MrJamesThe3rd/mpesaflow/internal/mpesa"
	"github.com/MrJamesThe3rd/mpesaflow/internal/payment"
	"github.com/MrJamesThe3rd/mpesaflow/internal/transaction"
)

const callbackPath = "/api/v1/transactions/mpesa-callback"

type Handler struct {
	payments     *payment.Service
	transactions *transaction.Service
	publicURL    string
}

// NewHandler builds the transaction handler. When publicURL is empty the
// provider callback URL is derived from each incoming request.
func NewHandler(payments *payment.Service, transactions *transaction.Service, publicURL string) *Handler {
	return &Handler{
		payments:     payments,
		transactions: transactions,
		publicURL:    strings.TrimRight(publicURL, "/"),
	}
}

// Routes expects the caller's Identity to be in the request context.
func (h *Handler) Routes(r chi.Router) {
	r.With(auth.RequireEnvironment(auth.EnvironmentDevelopment)).Post("/create", h.pay)
	r.With(auth.RequireEnvironment(auth.EnvironmentProduction)).Post("/paybill", h.pay)

	r.Group(func(r chi.Router) {
		r.Use(auth.RequireApp())
		r.Get("/status/{transactionId}", h.status)
		r.Get("/list", h.list)
	})
}

type payRequest struct {
	Amount           decimal.Decimal `json:"amount"`
	PhoneNumber      string          `json:"phoneNumber" validate:"required,numeric,len=12,startswith=254"`
	AccountReference string          `json:"accountReference" validate:"required,max=12"`
	TransactionDesc  string          `json:"transactionDesc" validate:"required,max=13"`
}

func (h *Handler) pay(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())

	var req payRequest
	if err := request.Decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	res, err := h.payments.Pay(r.Context(), caller, payment.PayRequest{
		Amount:           req.Amount,
		PhoneNumber:      req.PhoneNumber,
		AccountReference: req.AccountReference,
		TransactionDesc:  req.TransactionDesc,
		CallbackURL:      h.callbackURL(r),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if res.Outcome.Kind == payment.OutcomePending {
		status = http.StatusAccepted
	}

	render.JSON(w, status, toPaymentResponse(res))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "transactionId"))
	if err != nil {
		render.Error(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	tx, err := h.transactions.Get(r.Context(), transaction.ByID(id))

	switch {
	case errors.Is(err, transaction.ErrNotFound):
		render.Error(w, http.StatusNotFound, "Transaction not found")
		return
	case err != nil:
		writeError(w, err)
		return
	}

	// Keys only see their own transactions.
	if tx.KeyID != caller.KeyID {
		render.Error(w, http.StatusNotFound, "Transaction not found")
		return
	}

	render.JSON(w, http.StatusOK, toResponse(tx))
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())

	filter := transaction.ListFilter{KeyID: new(caller.KeyID)}

	if s := r.URL.Query().Get("status"); s != "" {
		status := transaction.Status(s)
		if !status.Valid() {
			render.Error(w, http.StatusBadRequest, "status must be one of pending, completed, failed")
			return
		}

		filter.Status = new(status)
	}

	txs, err := h.transactions.List(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}

	render.JSON(w, http.StatusOK, toResponseList(txs))
}

func (h *Handler) callbackURL(r *http.Request) string {
	if h.publicURL != "" {
		return h.publicURL + callbackPath
	}

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}

	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host + path.Dir(r.URL.Path) + "/mpesa-callback"
}

func writeError(w http.ResponseWriter, err error) {
	var (
		reqErr *request.Error
		valErr *payment.ValidationError
	)

	switch {
	case errors.As(err, &reqErr):
		render.Error(w, http.StatusBadRequest, reqErr.Message)
	case errors.As(err, &valErr):
		render.Error(w, http.StatusBadRequest, valErr.Message)
	case errors.Is(err, mpesa.ErrAuthentication):
		render.Error(w, http.StatusUnauthorized, "Failed to authenticate with M-Pesa. Please check your credentials.")
	case errors.Is(err, mpesa.ErrInitiation):
		slog.Error("failed to initiate payment", "error", err)
		render.ErrorCode(w, http.StatusInternalServerError, "initiation_failed", "Failed to initiate M-Pesa transaction.")
	default:
		slog.Error("failed to handle transaction request", "error", err)
		render.ErrorCode(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
