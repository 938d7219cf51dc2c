package middlewares

import (
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dropDatabas3/hellojane/internal/http/httpx"
	"github.com/dropDatabas3/hellojane/internal/observability/logger"
	"github.com/dropDatabas3/hellojane/internal/rate"
)

// RateLimit limita por IP con ventana fija. Un error del limiter se
// loguea y deja pasar; el login no puede caerse porque Redis parpadeó.
func RateLimit(limiter rate.Limiter, name string, limit int, window time.Duration) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				ip = host
			}
			res, err := limiter.Allow(r.Context(), name+":"+ip, limit, window)
			if err != nil {
				logger.From(r.Context()).Warn("rate: limiter falló, se deja pasar", zap.Error(err))
			}
			if !res.Allowed {
				if res.RetryAfter > 0 {
					w.Header().Set("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())))
				}
				httpx.WriteError(w, http.StatusTooManyRequests, "rate_limited", "demasiados intentos, esperá un rato", 1101)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
