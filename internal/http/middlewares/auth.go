package middlewares

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dropDatabas3/hellojane/internal/http/httpx"
	jwtx "github.com/dropDatabas3/hellojane/internal/jwt"
	"github.com/dropDatabas3/hellojane/internal/scopes"
)

type ctxKeyClaims struct{}

// RequireAuth valida Authorization: Bearer <JWT> y guarda las claims en
// el contexto. Distingue token vencido de token malformado: un vencido
// es un cliente sano que debe refrescar, un malformado es otra cosa.
func RequireAuth(codec *jwtx.Codec) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ah := strings.TrimSpace(r.Header.Get("Authorization"))
			if ah == "" || !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="missing bearer token"`)
				httpx.WriteError(w, http.StatusUnauthorized, "invalid_request", "falta el bearer token", 2401)
				return
			}
			raw := strings.TrimSpace(ah[len("Bearer "):])

			claims, err := codec.Decode(raw)
			if err != nil {
				if errors.Is(err, jwtx.ErrExpiredToken) {
					w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token", error_description="token expired"`)
					httpx.WriteError(w, http.StatusUnauthorized, "expired_token", "el token expiró", 2402)
					return
				}
				w.Header().Set("WWW-Authenticate", `Bearer realm="api", error="invalid_token"`)
				httpx.WriteError(w, http.StatusUnauthorized, "malformed_token", "token inválido", 2403)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyClaims{}, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireScope corta con 401 si el token no trae todos los scopes
// pedidos. Debe ir después de RequireAuth.
func RequireScope(required ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				httpx.WriteError(w, http.StatusUnauthorized, "invalid_request", "falta el bearer token", 2401)
				return
			}
			if err := scopes.Check(required, claims.Scopes); err != nil {
				httpx.WriteError(w, http.StatusUnauthorized, "insufficient_scope", "el token no alcanza para esta operación", 2404)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClaims devuelve las claims del contexto (nil si no hay).
func GetClaims(ctx context.Context) *jwtx.Claims {
	if v, ok := ctx.Value(ctxKeyClaims{}).(*jwtx.Claims); ok {
		return v
	}
	return nil
}
