package httpserver

import (
	"net/http"
	"time"

	"github.com/andrebq/turnstile/internal/logutil"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
)

// WithLogging attaches a request scoped logger (with a request id) to every
// request and writes one access log line per response.
func WithLogging(log zerolog.Logger, next http.Handler) http.Handler {
	h := exposeLogger(next)
	h = hlog.AccessHandler(func(r *http.Request, status, size int, duration time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("size", size).
			Dur("duration", duration).
			Msg("Request handled")
	})(h)
	h = hlog.RequestIDHandler("req_id", "X-Request-Id")(h)
	h = hlog.NewHandler(log)(h)
	return h
}

// exposeLogger copies the hlog logger into the context key used by
// logutil, so packages below the http layer log with the request id.
func exposeLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logutil.WithLogger(r.Context(), *hlog.FromRequest(r))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
