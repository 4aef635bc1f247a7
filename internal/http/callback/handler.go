package callback

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MrJamesThe3rd/mpesaflow/internal/http/render"
	"github.com/MrJamesThe3rd/mpesaflow/internal/mpesa"
	"github.com/MrJamesThe3rd/mpesaflow/internal/payment"
)

type ack struct {
	ResultCode string `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

type Handler struct {
	svc *payment.Service
}

func NewHandler(svc *payment.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/mpesa-callback", h.receive)
}

// receive acknowledges every well-formed callback. Ledger failures are
// logged and left to the status poller.
func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	cb, err := mpesa.DecodeCallback(r.Body)
	if err != nil {
		slog.Error("failed to decode mpesa callback", "error", err)
		render.JSON(w, http.StatusInternalServerError, ack{ResultCode: "1", ResultDesc: "Error processing callback"})

		return
	}

	log := slog.With("checkout_request_id", cb.CheckoutRequestID, "result_code", cb.ResultCode.String())
	if receipt, ok := cb.Metadata("MpesaReceiptNumber"); ok {
		log = log.With("receipt", receipt)
	}

	transition, err := h.svc.Reconcile(r.Context(), cb)
	if err != nil {
		log.Error("failed to reconcile mpesa callback", "error", err)
	} else {
		log.Info("mpesa callback received", "transition", transition)
	}

	render.JSON(w, http.StatusOK, ack{ResultCode: "0", ResultDesc: "Callback received successfully"})
}
