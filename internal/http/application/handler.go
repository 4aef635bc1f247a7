package application

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MrJamesThe3rd/mpesaflow/internal/application"
	"github.com/MrJamesThe3rd/mpesaflow/internal/auth"
	"github.com/MrJamesThe3rd/mpesaflow/internal/http/render"
	"github.com/MrJamesThe3rd/mpesaflow/internal/http/request"
)

type Handler struct {
	svc *application.Service
}

func NewHandler(svc *application.Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) Routes(r chi.Router) {
	r.Use(auth.RequireRoot())

	r.Post("/", h.create)
	r.Get("/", h.list)
	r.Delete("/{appId}", h.delete)
}

type createApplicationRequest struct {
	Name              string                  `json:"name" validate:"required,max=100"`
	Environment       application.Environment `json:"environment" validate:"required,oneof=sandbox production"`
	ConsumerKey       string                  `json:"consumerKey"`
	ConsumerSecret    string                  `json:"consumerSecret"`
	PassKey           string                  `json:"passKey"`
	BusinessShortCode string                  `json:"businessShortCode" validate:"omitempty,numeric"`
}

type createApplicationResponse struct {
	ApplicationID uuid.UUID `json:"applicationId"`
	Message       string    `json:"message"`
}

// applicationResponse never carries consumer secrets or pass keys.
type applicationResponse struct {
	ID                uuid.UUID               `json:"id"`
	Name              string                  `json:"name"`
	Environment       application.Environment `json:"environment"`
	BusinessShortCode string                  `json:"businessShortCode,omitempty"`
	HasCredentials    bool                    `json:"hasCredentials"`
	CreatedAt         time.Time               `json:"createdAt"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())

	var req createApplicationRequest
	if err := request.Decode(r, &req); err != nil {
		writeError(w, err)
		return
	}

	app, err := h.svc.Create(r.Context(), application.CreateParams{
		OwnerID:           caller.OwnerID,
		Name:              req.Name,
		Environment:       req.Environment,
		ConsumerKey:       req.ConsumerKey,
		ConsumerSecret:    req.ConsumerSecret,
		PassKey:           req.PassKey,
		BusinessShortCode: req.BusinessShortCode,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	render.JSON(w, http.StatusCreated, createApplicationResponse{
		ApplicationID: app.ID,
		Message:       "Application created successfully",
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())

	apps, err := h.svc.List(r.Context(), caller.OwnerID)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := make([]applicationResponse, len(apps))
	for i, app := range apps {
		resp[i] = applicationResponse{
			ID:                app.ID,
			Name:              app.Name,
			Environment:       app.Environment,
			BusinessShortCode: app.BusinessShortCode,
			HasCredentials:    app.HasCredentials(),
			CreatedAt:         app.CreatedAt,
		}
	}

	render.JSON(w, http.StatusOK, resp)
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	caller, _ := auth.FromContext(r.Context())

	id, err := uuid.Parse(chi.URLParam(r, "appId"))
	if err != nil {
		render.Error(w, http.StatusBadRequest, "invalid application id")
		return
	}

	if err := h.svc.Delete(r.Context(), caller.OwnerID, id); err != nil {
		writeError(w, err)
		return
	}

	render.JSON(w, http.StatusOK, messageResponse{Message: "Application deleted successfully"})
}

func writeError(w http.ResponseWriter, err error) {
	var (
		reqErr *request.Error
		valErr *application.ValidationError
	)

	switch {
	case errors.As(err, &reqErr):
		render.Error(w, http.StatusBadRequest, reqErr.Message)
	case errors.As(err, &valErr):
		render.Error(w, http.StatusBadRequest, valErr.Message)
	case errors.Is(err, application.ErrNotFound):
		render.Error(w, http.StatusNotFound, "Application not found")
	default:
		slog.Error("failed to handle application request", "error", err)
		render.ErrorCode(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}
