package handlers

import (
	"errors"
	"net/http"

	"github.com/dropDatabas3/hellojane/internal/app"
	"github.com/dropDatabas3/hellojane/internal/domain/repository"
	"github.com/dropDatabas3/hellojane/internal/http/httpx"
	"github.com/dropDatabas3/hellojane/internal/http/middlewares"
	"github.com/dropDatabas3/hellojane/internal/jwt"
)

type MeResponse struct {
	ID       string   `json:"id"`
	Email    string   `json:"email,omitempty"`
	Username string   `json:"username"`
	Role     string   `json:"role"`
	Scopes   []string `json:"scopes"`
}

// NewMeHandler devuelve el perfil del dueño del bearer token. Requiere
// user-read-private; el email solo sale con user-read-email.
func NewMeHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "invalid_request", "solo GET", 1000)
			return
		}
		claims := middlewares.GetClaims(r.Context())
		if claims == nil || claims.Kind != jwt.RefUser {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_request", "se requiere un token de usuario", 2405)
			return
		}

		acc, err := c.Accounts.FindByUsername(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid_grant", "la cuenta ya no existe", 2406)
				return
			}
			httpx.WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "error de storage, reintentá", 2500)
			return
		}

		resp := MeResponse{
			ID:       acc.ID.String(),
			Username: acc.Username,
			Role:     acc.Role,
			Scopes:   claims.Scopes,
		}
		for _, sc := range claims.Scopes {
			if sc == "user-read-email" {
				resp.Email = acc.Email
				break
			}
		}
		httpx.WriteJSON(w, http.StatusOK, resp)
	}
}
