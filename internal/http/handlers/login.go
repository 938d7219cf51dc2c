package handlers

import (
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"strings"

	"github.com/dropDatabas3/hellojane/internal/app"
	"github.com/dropDatabas3/hellojane/internal/domain/repository"
	"github.com/dropDatabas3/hellojane/internal/http/httpx"
	"github.com/dropDatabas3/hellojane/internal/observability/logger"
	"github.com/dropDatabas3/hellojane/internal/security/password"
	"go.uber.org/zap"
)

// La página de login existe solo para el flujo de authorize en browser.
// El query original de /auth/authorize viaja en el action del form y
// vuelve intacto después de autenticar.
var loginTmpl = template.Must(template.New("login").Parse(`<!doctype html>
<html lang="es">
<head>
  <meta charset="utf-8">
  <title>hellojane · login</title>
  <style>
    body { font-family: system-ui, sans-serif; display: flex; justify-content: center; padding-top: 10vh; background: #f5f5f5; }
    form { background: #fff; padding: 2rem; border-radius: 8px; box-shadow: 0 1px 4px rgba(0,0,0,.15); width: 280px; }
    input { width: 100%; margin: .4rem 0 1rem; padding: .5rem; box-sizing: border-box; }
    button { width: 100%; padding: .6rem; }
    .err { color: #b00020; margin-bottom: 1rem; }
  </style>
</head>
<body>
  <form method="post" action="/login{{if .Query}}?{{.Query}}{{end}}">
    <h2>Iniciar sesión</h2>
    {{if .Error}}<div class="err">{{.Error}}</div>{{end}}
    <label>Usuario</label>
    <input name="username" autocomplete="username" autofocus>
    <label>Password</label>
    <input name="password" type="password" autocomplete="current-password">
    <button type="submit">Entrar</button>
  </form>
</body>
</html>`))

type loginView struct {
	Query string
	Error string
}

func renderLogin(w http.ResponseWriter, status int, v loginView) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = loginTmpl.Execute(w, v)
}

// NewLoginHandler sirve el form (GET) y procesa credenciales (POST).
// Con login OK setea la cookie de sesión y, si el query trae un flujo
// de authorize pendiente, lo retoma; si no, 204.
func NewLoginHandler(c *app.Container) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			renderLogin(w, http.StatusOK, loginView{Query: r.URL.RawQuery})

		case http.MethodPost:
			if !httpx.ReadForm(w, r) {
				return
			}
			username := strings.TrimSpace(r.PostForm.Get("username"))
			pass := r.PostForm.Get("password")
			if username == "" || pass == "" {
				renderLogin(w, http.StatusBadRequest, loginView{Query: r.URL.RawQuery, Error: "Completá usuario y password"})
				return
			}

			ctx := r.Context()
			acc, err := c.Accounts.FindByUsername(ctx, username)
			if err != nil {
				if errors.Is(err, repository.ErrNotFound) {
					// Mismo mensaje que password incorrecta.
					renderLogin(w, http.StatusUnauthorized, loginView{Query: r.URL.RawQuery, Error: "Usuario o password incorrectos"})
					return
				}
				renderLogin(w, http.StatusServiceUnavailable, loginView{Query: r.URL.RawQuery, Error: "Error interno, probá de nuevo"})
				return
			}
			if !acc.IsActive {
				renderLogin(w, http.StatusForbidden, loginView{Query: r.URL.RawQuery, Error: "La cuenta está desactivada"})
				return
			}
			if acc.PasswordHash == nil || !password.Verify(pass, *acc.PasswordHash) {
				renderLogin(w, http.StatusUnauthorized, loginView{Query: r.URL.RawQuery, Error: "Usuario o password incorrectos"})
				return
			}

			sid, err := newLoginSession(ctx, c, acc.ID)
			if err != nil {
				logger.From(ctx).Error("login: no se pudo crear la sesión", zap.Error(err))
				renderLogin(w, http.StatusServiceUnavailable, loginView{Query: r.URL.RawQuery, Error: "Error interno, probá de nuevo"})
				return
			}
			setSessionCookie(w, c, sid)

			// Retomar el authorize pendiente si el query lo trae.
			if q := r.URL.RawQuery; q != "" {
				if vals, err := url.ParseQuery(q); err == nil && vals.Get("client_id") != "" {
					http.Redirect(w, r, "/auth/authorize?"+q, http.StatusFound)
					return
				}
			}
			w.WriteHeader(http.StatusNoContent)

		default:
			httpx.WriteError(w, http.StatusMethodNotAllowed, "invalid_request", "solo GET o POST", 1000)
		}
	}
}
