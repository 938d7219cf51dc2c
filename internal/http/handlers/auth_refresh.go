package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/hellojane/internal/app"
	"github.com/dropDatabas3/hellojane/internal/domain/repository"
	"github.com/dropDatabas3/hellojane/internal/http/httpx"
	"github.com/dropDatabas3/hellojane/internal/jwt"
	"github.com/dropDatabas3/hellojane/internal/observability/logger"
	"go.uber.org/zap"
)

// NewAuthRefreshHandler rota refresh tokens:
//   - token vencido o de UA distinto: la sesión se destruye y el caller
//     vuelve a autenticarse (un token robado usado desde otro client
//     quema la sesión legítima, fail closed)
//   - rotación: el token viejo muere en el instante en que se emite el
//     nuevo, incluso si la respuesta se pierde en el camino
func NewAuthRefreshHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "invalid_request", "solo POST", 1000)
			return
		}
		if !httpx.ReadForm(w, r) {
			return
		}

		if gt := strings.TrimSpace(r.PostForm.Get("grant_type")); gt != "refresh_token" {
			httpx.WriteError(w, http.StatusBadRequest, "unsupported_grant_type", "grant_type debe ser refresh_token", 2300)
			return
		}

		raw := strings.TrimSpace(r.PostForm.Get("refresh_token"))
		if raw == "" {
			// Fallback browser: cookie httponly seteada en la respuesta
			// anterior.
			if ck, err := r.Cookie("refresh_token"); err == nil {
				raw = ck.Value
			}
		}
		token, err := uuid.Parse(raw)
		if err != nil {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_grant", "refresh token inválido", 2301)
			return
		}

		ctx := r.Context()
		sess, err := c.Sessions.GetByToken(ctx, token)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid_grant", "refresh token inválido", 2301)
				return
			}
			httpx.WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "error de storage, reintentá", 2500)
			return
		}

		now := time.Now().UTC()
		if now.After(sess.ExpiresAt) {
			_ = c.Sessions.Delete(ctx, sess.ID)
			httpx.WriteError(w, http.StatusUnauthorized, "expired_grant", "la sesión expiró", 2302)
			return
		}
		if sess.UserAgent != r.UserAgent() {
			// Defensa anti session-fixation: UA distinto quema la sesión.
			_ = c.Sessions.Delete(ctx, sess.ID)
			logger.From(ctx).Warn("refresh: user-agent no coincide, sesión destruida",
				zap.String("account_id", sess.AccountID.String()))
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_grant", "refresh token inválido", 2303)
			return
		}

		acc, err := c.Accounts.FindByID(ctx, sess.AccountID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				_ = c.Sessions.Delete(ctx, sess.ID)
				httpx.WriteError(w, http.StatusUnauthorized, "invalid_grant", "refresh token inválido", 2304)
				return
			}
			httpx.WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "error de storage, reintentá", 2500)
			return
		}

		granted := strings.Fields(sess.Scope)
		access, _, err := c.Codec.Mint(acc.Username, granted, jwt.RefUser, c.Policy.AccessTTL)
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo emitir el access token", 2501)
			return
		}

		fresh, err := c.Sessions.Rotate(ctx, sess.ID, repository.CreateSessionInput{
			AccountID: sess.AccountID,
			UserAgent: sess.UserAgent,
			ClientIP:  clientIP(r),
			Scope:     sess.Scope,
			ExpiresAt: now.Add(c.Policy.RefreshTTL),
		})
		if err != nil {
			httpx.WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "error de storage, reintentá", 2500)
			return
		}

		setRefreshCookie(w, c, fresh.RefreshToken.String(), fresh.ExpiresAt)
		writeTokens(w, Tokens{
			AccessToken:  access,
			TokenType:    "bearer",
			ExpiresIn:    int64(c.Policy.AccessTTL.Seconds()),
			RefreshToken: fresh.RefreshToken.String(),
			Scope:        sess.Scope,
		})
	}
}
