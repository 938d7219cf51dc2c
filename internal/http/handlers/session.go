package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/dropDatabas3/hellojane/internal/app"
	"github.com/dropDatabas3/hellojane/internal/domain/repository"
	tokens "github.com/dropDatabas3/hellojane/internal/security/token"
)

// Las sesiones de login (cookie → cuenta) viven en el cache con TTL.
// Solo existen para que /auth/authorize sepa quién está logueado en el
// browser; no son refresh sessions.
const sidPrefix = "sid:"

func newLoginSession(ctx context.Context, c *app.Container, accountID uuid.UUID) (string, error) {
	sid, err := tokens.GenerateOpaqueToken(32)
	if err != nil {
		return "", err
	}
	key := sidPrefix + tokens.SHA256Base64URL(sid)
	if err := c.Cache.Set(ctx, key, []byte(accountID.String()), c.Policy.SessionCookieTTL); err != nil {
		return "", err
	}
	return sid, nil
}

// resolveLoginSession devuelve la cuenta logueada en el browser, o nil
// si no hay cookie, la sesión venció o la cuenta ya no existe.
func resolveLoginSession(r *http.Request, c *app.Container) *repository.Account {
	ck, err := r.Cookie(c.Policy.SessionCookieName)
	if err != nil || ck.Value == "" {
		return nil
	}
	key := sidPrefix + tokens.SHA256Base64URL(ck.Value)
	b, err := c.Cache.Get(r.Context(), key)
	if err != nil {
		// No distinguimos sesión vencida de cache caído: en ambos casos
		// el browser pasa por el login de nuevo.
		return nil
	}
	id, err := uuid.Parse(string(b))
	if err != nil {
		return nil
	}
	acc, err := c.Accounts.FindByID(r.Context(), id)
	if err != nil {
		return nil
	}
	return acc
}
