// Package http arma el router y el server del servicio.
package http

import (
	stdhttp "net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dropDatabas3/hellojane/internal/app"
	"github.com/dropDatabas3/hellojane/internal/http/handlers"
	"github.com/dropDatabas3/hellojane/internal/http/middlewares"
	"github.com/dropDatabas3/hellojane/internal/observability/metrics"
)

// RateConfig son los límites efectivos por endpoint sensible.
type RateConfig struct {
	Enabled     bool
	LoginLimit  int
	LoginWindow time.Duration
	TokenLimit  int
	TokenWindow time.Duration
}

// NewRouter cablea rutas, middlewares y handlers.
func NewRouter(c *app.Container, rates RateConfig) stdhttp.Handler {
	r := chi.NewRouter()

	// Health
	r.Get("/healthz", func(w stdhttp.ResponseWriter, _ *stdhttp.Request) {
		w.WriteHeader(stdhttp.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/readyz", newReadyz(c))

	noLimit := func(h stdhttp.Handler) stdhttp.Handler { return h }
	tokenLimit, loginLimit := middlewares.Middleware(noLimit), middlewares.Middleware(noLimit)
	if rates.Enabled {
		tokenLimit = middlewares.RateLimit(c.Limiter, "token", rates.TokenLimit, rates.TokenWindow)
		loginLimit = middlewares.RateLimit(c.Limiter, "login", rates.LoginLimit, rates.LoginWindow)
	}

	// OAuth2
	r.Method(stdhttp.MethodGet, "/auth/authorize", middlewares.ChainFunc(handlers.NewOAuthAuthorizeHandler(c)))
	r.Method(stdhttp.MethodPost, "/auth/token", middlewares.ChainFunc(handlers.NewOAuthTokenHandler(c), tokenLimit))
	r.Method(stdhttp.MethodPost, "/auth/refresh", middlewares.ChainFunc(handlers.NewAuthRefreshHandler(c), tokenLimit))

	// Cuentas
	r.Method(stdhttp.MethodPost, "/auth/signup", middlewares.ChainFunc(handlers.NewAuthSignupHandler(c), loginLimit))
	r.Method(stdhttp.MethodGet, "/auth/me", middlewares.ChainFunc(
		handlers.NewMeHandler(c),
		middlewares.RequireAuth(c.Codec),
		middlewares.RequireScope("user-read-private"),
	))

	// Login de browser para el flujo de authorize
	login := middlewares.ChainFunc(handlers.NewLoginHandler(c), loginLimit)
	r.Method(stdhttp.MethodGet, "/login", login)
	r.Method(stdhttp.MethodPost, "/login", login)

	return middlewares.Chain(r,
		middlewares.RequestID(),
		middlewares.Logging(),
		metricsMiddleware(),
	)
}

func metricsMiddleware() middlewares.Middleware {
	return func(next stdhttp.Handler) stdhttp.Handler {
		return metrics.WithHTTP(next)
	}
}

// readyz chequea los colaboradores externos (cache por ahora; el pool
// de pg se valida en el arranque).
func newReadyz(c *app.Container) stdhttp.HandlerFunc {
	return func(w stdhttp.ResponseWriter, r *stdhttp.Request) {
		if err := c.Cache.Ping(r.Context()); err != nil {
			w.WriteHeader(stdhttp.StatusServiceUnavailable)
			_, _ = w.Write([]byte("cache unavailable"))
			return
		}
		w.WriteHeader(stdhttp.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
