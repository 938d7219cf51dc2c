package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dropDatabas3/hellojane/internal/app"
	"github.com/dropDatabas3/hellojane/internal/domain/repository"
	"github.com/dropDatabas3/hellojane/internal/http/httpx"
	"github.com/dropDatabas3/hellojane/internal/jwt"
	"github.com/dropDatabas3/hellojane/internal/observability/metrics"
	"github.com/dropDatabas3/hellojane/internal/security/password"
	tokens "github.com/dropDatabas3/hellojane/internal/security/token"
	"github.com/dropDatabas3/hellojane/internal/scopes"
)

// NewOAuthTokenHandler es el dispatcher de grants: una transición por
// request, sin estado entre requests. grant_type ausente cuenta como
// password (comportamiento histórico de los clientes viejos).
func NewOAuthTokenHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			httpx.WriteError(w, http.StatusMethodNotAllowed, "invalid_request", "solo POST", 1000)
			return
		}
		if !httpx.ReadForm(w, r) {
			return
		}
		grantType := strings.TrimSpace(r.PostForm.Get("grant_type"))

		switch grantType {
		case "", "password":
			handlePasswordGrant(w, r, c)
		case "client_credentials":
			handleClientCredentials(w, r, c)
		case "authorization_code":
			handleAuthorizationCode(w, r, c)
		default:
			metrics.RecordTokenRequest(grantType, "error")
			httpx.WriteError(w, http.StatusBadRequest, "unsupported_grant_type", "grant_type no soportado", 2200)
		}
	}
}

func tokenFail(w http.ResponseWriter, grant string, status int, code, desc string, errCode int) {
	metrics.RecordTokenRequest(grant, "error")
	httpx.WriteError(w, status, code, desc, errCode)
}

// ───────────────────────── password ─────────────────────────

func handlePasswordGrant(w http.ResponseWriter, r *http.Request, c *app.Container) {
	const grant = "password"
	username := strings.TrimSpace(r.PostForm.Get("username"))
	pass := r.PostForm.Get("password")
	clientID := strings.TrimSpace(r.PostForm.Get("client_id"))

	if username == "" || pass == "" {
		tokenFail(w, grant, http.StatusBadRequest, "invalid_request", "username y password son obligatorios", 2202)
		return
	}

	ctx := r.Context()
	if c.Policy.RequireClientID {
		if clientID == "" {
			tokenFail(w, grant, http.StatusBadRequest, "invalid_request", "client_id es obligatorio", 2203)
			return
		}
		if _, err := c.Clients.FindByClientID(ctx, clientID); err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				tokenFail(w, grant, http.StatusBadRequest, "invalid_client", "client desconocido", 2204)
				return
			}
			tokenFail(w, grant, http.StatusServiceUnavailable, "store_unavailable", "error de storage, reintentá", 2500)
			return
		}
	}

	acc, err := c.Accounts.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Mismo error que password incorrecto: no filtramos qué
			// usernames existen.
			tokenFail(w, grant, http.StatusBadRequest, "invalid_grant", "credenciales inválidas", 2205)
			return
		}
		tokenFail(w, grant, http.StatusServiceUnavailable, "store_unavailable", "error de storage, reintentá", 2500)
		return
	}
	if !acc.IsActive {
		tokenFail(w, grant, http.StatusForbidden, "inactive_account", "la cuenta está desactivada", 2206)
		return
	}
	if acc.PasswordHash == nil || !password.Verify(pass, *acc.PasswordHash) {
		tokenFail(w, grant, http.StatusBadRequest, "invalid_grant", "credenciales inválidas", 2205)
		return
	}

	granted := c.Scopes.ScopesFor(scopes.AccountPrincipal(acc))
	issueUserTokens(w, r, c, grant, acc, granted)
}

// issueUserTokens es el tramo común de los grants user-bound: access
// corto + refresh session con la higiene de cap/dedup.
func issueUserTokens(w http.ResponseWriter, r *http.Request, c *app.Container, grant string, acc *repository.Account, granted []string) {
	access, _, err := c.Codec.Mint(acc.Username, granted, jwt.RefUser, c.Policy.AccessTTL)
	if err != nil {
		tokenFail(w, grant, http.StatusInternalServerError, "server_error", "no se pudo emitir el access token", 2501)
		return
	}

	scope := strings.Join(granted, " ")
	sess, err := c.Sessions.CreateWithEviction(r.Context(), repository.CreateSessionInput{
		AccountID: acc.ID,
		UserAgent: r.UserAgent(),
		ClientIP:  clientIP(r),
		Scope:     scope,
		ExpiresAt: time.Now().UTC().Add(c.Policy.RefreshTTL),
	}, c.Policy.MaxSessions)
	if err != nil {
		tokenFail(w, grant, http.StatusServiceUnavailable, "store_unavailable", "error de storage, reintentá", 2500)
		return
	}

	metrics.RecordTokenRequest(grant, "ok")
	writeTokens(w, Tokens{
		AccessToken:  access,
		TokenType:    "bearer",
		ExpiresIn:    int64(c.Policy.AccessTTL.Seconds()),
		RefreshToken: sess.RefreshToken.String(),
		Scope:        scope,
	})
}

// ───────────────────────── client_credentials ─────────────────────────

func handleClientCredentials(w http.ResponseWriter, r *http.Request, c *app.Container) {
	const grant = "client_credentials"

	// Basic auth tiene prioridad; body como fallback.
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID = strings.TrimSpace(r.PostForm.Get("client_id"))
		clientSecret = r.PostForm.Get("client_secret")
	}
	if clientID == "" || clientSecret == "" {
		tokenFail(w, grant, http.StatusBadRequest, "invalid_request", "client_id y client_secret son obligatorios", 2210)
		return
	}

	cl, err := c.Clients.FindByClientID(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			tokenFail(w, grant, http.StatusUnauthorized, "invalid_client", "client o secret inválidos", 2211)
			return
		}
		tokenFail(w, grant, http.StatusServiceUnavailable, "store_unavailable", "error de storage, reintentá", 2500)
		return
	}
	if subtle.ConstantTimeCompare([]byte(cl.ClientSecret), []byte(clientSecret)) != 1 {
		tokenFail(w, grant, http.StatusUnauthorized, "invalid_client", "client o secret inválidos", 2211)
		return
	}

	// Token de máquina: scopes explícitos del client, TTL largo, sin
	// refresh (el client se re-autentica cuando vence).
	granted := c.Scopes.ScopesFor(scopes.ClientPrincipal(cl))
	access, _, err := c.Codec.Mint(cl.ClientID, granted, jwt.RefApp, c.Policy.ClientTTL)
	if err != nil {
		tokenFail(w, grant, http.StatusInternalServerError, "server_error", "no se pudo emitir el access token", 2501)
		return
	}

	metrics.RecordTokenRequest(grant, "ok")
	writeTokens(w, Tokens{
		AccessToken: access,
		TokenType:   "bearer",
		ExpiresIn:   int64(c.Policy.ClientTTL.Seconds()),
		Scope:       strings.Join(granted, " "),
	})
}

// ───────────────────────── authorization_code ─────────────────────────

func handleAuthorizationCode(w http.ResponseWriter, r *http.Request, c *app.Container) {
	const grant = "authorization_code"
	code := strings.TrimSpace(r.PostForm.Get("code"))
	redirectURI := strings.TrimSpace(r.PostForm.Get("redirect_uri"))
	codeVerifier := strings.TrimSpace(r.PostForm.Get("code_verifier"))

	// Las credenciales del client pueden venir por Basic auth o por el
	// body, igual que en client_credentials.
	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID = strings.TrimSpace(r.PostForm.Get("client_id"))
		clientSecret = r.PostForm.Get("client_secret")
	}

	if code == "" || redirectURI == "" || clientID == "" {
		tokenFail(w, grant, http.StatusBadRequest, "invalid_request", "code, redirect_uri y client_id son obligatorios", 2220)
		return
	}

	ctx := r.Context()
	cl, err := c.Clients.FindByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			tokenFail(w, grant, http.StatusUnauthorized, "invalid_client", "client desconocido", 2221)
			return
		}
		tokenFail(w, grant, http.StatusServiceUnavailable, "store_unavailable", "error de storage, reintentá", 2500)
		return
	}

	// Consumo single-use: si dos canjes concurrentes llegan acá, solo
	// uno recibe el record.
	rec, err := c.Codes.Take(ctx, code)
	if err != nil {
		tokenFail(w, grant, http.StatusServiceUnavailable, "store_unavailable", "error de storage, reintentá", 2500)
		return
	}
	if rec == nil {
		tokenFail(w, grant, http.StatusBadRequest, "invalid_grant", "authorization code inválido o vencido", 2222)
		return
	}

	// Match exacto contra lo registrado al autorizar; nada de prefijos.
	if rec.RedirectURI != redirectURI {
		tokenFail(w, grant, http.StatusBadRequest, "invalid_grant", "redirect_uri no coincide", 2223)
		return
	}

	if rec.CodeChallenge != "" {
		// Rama PKCE: challenge == base64url(sha256(verifier)) sin padding.
		if codeVerifier == "" || tokens.SHA256Base64URL(codeVerifier) != rec.CodeChallenge {
			tokenFail(w, grant, http.StatusBadRequest, "invalid_grant", "code_verifier inválido", 2224)
			return
		}
	} else {
		if clientSecret == "" || subtle.ConstantTimeCompare([]byte(cl.ClientSecret), []byte(clientSecret)) != 1 {
			tokenFail(w, grant, http.StatusUnauthorized, "invalid_client", "client_secret inválido", 2225)
			return
		}
	}

	accountID, err := uuid.Parse(rec.UserID)
	if err != nil {
		tokenFail(w, grant, http.StatusBadRequest, "invalid_grant", "authorization code inválido o vencido", 2222)
		return
	}
	acc, err := c.Accounts.FindByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			tokenFail(w, grant, http.StatusBadRequest, "invalid_grant", "authorization code inválido o vencido", 2222)
			return
		}
		tokenFail(w, grant, http.StatusServiceUnavailable, "store_unavailable", "error de storage, reintentá", 2500)
		return
	}

	// El token queda scoped a lo que se autorizó, no al set completo de
	// la cuenta.
	issueUserTokens(w, r, c, grant, acc, strings.Fields(rec.Scope))
}
