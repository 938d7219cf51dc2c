package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/dropDatabas3/hellojane/internal/app"
	"github.com/dropDatabas3/hellojane/internal/codes"
	"github.com/dropDatabas3/hellojane/internal/domain/repository"
	"github.com/dropDatabas3/hellojane/internal/http/httpx"
	"github.com/dropDatabas3/hellojane/internal/jwt"
	"github.com/dropDatabas3/hellojane/internal/observability/logger"
	"go.uber.org/zap"
)

// NewOAuthAuthorizeHandler arranca el flujo de authorization code (o
// implicit con response_type=token).
//
// Los errores de validación se responden como JSON al caller, NO como
// redirect: hasta no validar el redirect_uri contra el registro no
// mandamos a nadie a ningún lado.
func NewOAuthAuthorizeHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "invalid_request", "solo GET", 1000)
			return
		}
		q := r.URL.Query()
		clientID := strings.TrimSpace(q.Get("client_id"))
		responseType := strings.TrimSpace(q.Get("response_type"))
		redirectURI := strings.TrimSpace(q.Get("redirect_uri"))
		state := q.Get("state")
		scope := strings.TrimSpace(q.Get("scope"))
		challengeMethod := strings.TrimSpace(q.Get("code_challenge_method"))
		challenge := strings.TrimSpace(q.Get("code_challenge"))

		if clientID == "" || redirectURI == "" {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "client_id y redirect_uri son obligatorios", 2101)
			return
		}
		if responseType != "code" && responseType != "token" {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "response_type debe ser code o token", 2102)
			return
		}

		ctx := r.Context()
		cl, err := c.Clients.FindByClientID(ctx, clientID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "client desconocido", 2103)
				return
			}
			httpx.WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "error de storage, reintentá", 2500)
			return
		}
		if !cl.AllowsRedirect(redirectURI) {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "redirect_uri no registrado para el client", 2104)
			return
		}
		// Registrado no implica parseable: un URI roto en el registro no
		// puede tirar abajo el handler.
		dest, err := url.Parse(redirectURI)
		if err != nil {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "redirect_uri inválido", 2108)
			return
		}

		// Todos los scopes pedidos tienen que existir en el catálogo.
		requested := strings.Fields(scope)
		for _, sc := range requested {
			if !c.Scopes.InCatalog(sc) {
				httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "scope desconocido: "+sc, 2105)
				return
			}
		}

		// PKCE: solo S256. "plain" no existe acá.
		if challengeMethod != "" && challengeMethod != "S256" {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "code_challenge_method debe ser S256", 2106)
			return
		}
		if challengeMethod != "" && challenge == "" {
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "falta code_challenge", 2107)
			return
		}

		acc := resolveLoginSession(r, c)
		if acc == nil {
			// Sin sesión: al login, preservando el query completo para
			// retomar el flujo después.
			http.Redirect(w, r, "/login?"+r.URL.RawQuery, http.StatusFound)
			return
		}

		if responseType == "token" {
			// Implicit: token directo en el redirect, sin refresh.
			access, _, err := c.Codec.Mint(acc.Username, requested, jwt.RefUser, c.Policy.AccessTTL)
			if err != nil {
				httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo emitir el access token", 2501)
				return
			}
			dq := dest.Query()
			dq.Set("access_token", access)
			dq.Set("token_type", "bearer")
			dq.Set("expires_in", strconv.FormatInt(int64(c.Policy.AccessTTL.Seconds()), 10))
			if state != "" {
				dq.Set("state", state)
			}
			dest.RawQuery = dq.Encode()
			http.Redirect(w, r, dest.String(), http.StatusFound)
			return
		}

		code, err := codes.NewCode()
		if err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "no se pudo generar el code", 2502)
			return
		}
		rec := codes.Record{
			UserID:        acc.ID.String(),
			Scope:         scope,
			RedirectURI:   redirectURI,
			CodeChallenge: challenge,
		}
		if err := c.Codes.Put(ctx, code, rec); err != nil {
			logger.From(ctx).Error("authorize: no se pudo guardar el code", zap.Error(err))
			httpx.WriteError(w, http.StatusServiceUnavailable, "store_unavailable", "error de storage, reintentá", 2500)
			return
		}

		dq := dest.Query()
		dq.Set("code", code)
		if state != "" {
			dq.Set("state", state)
		}
		dest.RawQuery = dq.Encode()
		http.Redirect(w, r, dest.String(), http.StatusFound)
	}
}
