package handlers

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/hellojane/internal/app"
	"github.com/dropDatabas3/hellojane/internal/http/httpx"
)

// Tokens es la respuesta estándar del endpoint de token.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	Scope        string `json:"scope,omitempty"`
}

// writeTokens manda el par con los headers anti-cache obligatorios para
// respuestas que contienen credenciales.
func writeTokens(w http.ResponseWriter, t Tokens) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
	httpx.WriteJSON(w, http.StatusOK, t)
}

// clientIP corta el puerto de RemoteAddr; detrás de un proxy preferimos
// el primer hop de X-Forwarded-For.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// setRefreshCookie deja el refresh token también como cookie httponly,
// para el flujo de browser. El body lo incluye igual (clientes API).
func setRefreshCookie(w http.ResponseWriter, c *app.Container, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     "refresh_token",
		Value:    token,
		Path:     "/auth/refresh",
		Expires:  expires,
		HttpOnly: true,
		Secure:   c.Policy.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}

// setSessionCookie asocia el browser con una sesión de login para
// /auth/authorize.
func setSessionCookie(w http.ResponseWriter, c *app.Container, sid string) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.Policy.SessionCookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   int(c.Policy.SessionCookieTTL.Seconds()),
		HttpOnly: true,
		Secure:   c.Policy.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
