package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"

	"github.com/MrJamesThe3rd/mpesaflow/internal/http/render"
)

const (
	msgAppKeyRequired  = "Unauthorized. Valid app-specific API key required."
	msgRootKeyRequired = "Unauthorized. Root key required."
)

func bearerKey(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}

	return ""
}

// Authenticate verifies the bearer key against apiID and stores the
// resulting Identity in the request context.
func Authenticate(v Verifier, apiID string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := bearerKey(r)
			if key == "" {
				render.Error(w, http.StatusUnauthorized, "Unauthorized. API key required.")
				return
			}

			id, err := v.Verify(r.Context(), apiID, key)
			if err != nil {
				if errors.Is(err, ErrInvalidKey) {
					render.Error(w, http.StatusUnauthorized, "Unauthorized. Invalid API key.")
					return
				}

				slog.Error("failed to verify api key", "error", err)
				render.ErrorCode(w, http.StatusInternalServerError, "internal_error", "internal error")

				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func guard(allow func(Identity) bool, message string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := FromContext(r.Context())
			if !ok || !allow(id) {
				render.Error(w, http.StatusUnauthorized, message)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireEnvironment admits keys issued for one of envs.
func RequireEnvironment(envs ...Environment) func(http.Handler) http.Handler {
	return guard(func(id Identity) bool { return slices.Contains(envs, id.Environment) }, msgAppKeyRequired)
}

// RequireApp admits app keys, optionally limited to envs.
func RequireApp(envs ...Environment) func(http.Handler) http.Handler {
	return guard(func(id Identity) bool { return id.AllowsApp(envs...) }, msgAppKeyRequired)
}

func RequireRoot() func(http.Handler) http.Handler {
	return guard(Identity.IsRoot, msgRootKeyRequired)
}
