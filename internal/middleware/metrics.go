package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/ashureev/vish/internal/metrics"
)

// Metrics records request counts and latency per chi route pattern, so that
// path parameters such as document ids do not explode label cardinality.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		metrics.RequestCount.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
