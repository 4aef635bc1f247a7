package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/mpesaflow/internal/auth"
	"github.com/MrJamesThe3rd/mpesaflow/internal/http/application"
	"github.com/MrJamesThe3rd/mpesaflow/internal/http/callback"
	"github.com/MrJamesThe3rd/mpesaflow/internal/http/transaction"
	"github.com/MrJamesThe3rd/mpesaflow/internal/metrics"
)

// Options carries the router settings that come from configuration.
type Options struct {
	AllowedOrigin string
	// AppAPIID and RootAPIID name the key sets for tenant app keys and
	// account root keys.
	AppAPIID  string
	RootAPIID string
}

func New(
	opts Options,
	verifier auth.Verifier,
	transactionsV1 *transaction.Handler,
	callbackV1 *callback.Handler,
	applicationsV1 *application.Handler,
) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{opts.AllowedOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	router.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("OK"))
	})
	router.Handle("/metrics", metrics.Handler())

	jsonOnly := middleware.AllowContentType("application/json")

	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/transactions", func(r chi.Router) {
			// The provider posts callbacks with whatever content type it likes.
			callbackV1.Routes(r)

			r.Group(func(r chi.Router) {
				r.Use(jsonOnly)
				r.Use(auth.Authenticate(verifier, opts.AppAPIID))
				transactionsV1.Routes(r)
			})
		})

		r.Route("/apps", func(r chi.Router) {
			r.Use(jsonOnly)
			r.Use(auth.Authenticate(verifier, opts.RootAPIID))
			applicationsV1.Routes(r)
		})
	})

	return router
}
