package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/hellojane/internal/app"
	"github.com/dropDatabas3/hellojane/internal/domain/repository"
	"github.com/dropDatabas3/hellojane/internal/http/httpx"
	"github.com/dropDatabas3/hellojane/internal/security/password"
)

type SignupRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type AccountResponse struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// NewAuthSignupHandler da de alta una cuenta con rol user. Los roles
// superiores se asignan por el comando seed o a mano.
func NewAuthSignupHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "invalid_request", "solo POST", 1000)
			return
		}
		var req SignupRequest
		if !httpx.ReadJSON(w, r, &req) {
			return
		}
		req.Email = strings.TrimSpace(req.Email)
		req.Username = strings.TrimSpace(req.Username)
		if req.Email == "" || req.Username == "" || req.Password == "" {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "email, username y password son obligatorios", 2510)
			return
		}
		if len(req.Password) < 8 {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "password demasiado corta (mínimo 8)", 2511)
			return
		}

		hash, err := password.Hash(password.Default, req.Password)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo procesar la password", 2501)
			return
		}

		acc, err := c.Accounts.Create(r.Context(), repository.CreateAccountInput{
			Email:        req.Email,
			Username:     req.Username,
			PasswordHash: hash,
		})
		if err != nil {
			if errors.Is(err, repository.ErrConflict) {
				httpx.WriteError(w, http.StatusConflict, "conflict", "username o email ya registrados", 2512)
				return
			}
			httpx.WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "error de storage, reintentá", 2500)
			return
		}

		httpx.WriteJSON(w, http.StatusCreated, AccountResponse{
			ID:       acc.ID.String(),
			Email:    acc.Email,
			Username: acc.Username,
			Role:     acc.Role,
		})
	}
}
