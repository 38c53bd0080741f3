package middleware

import (
	"net/http"
	"time"

	"github.com/davidbz/codeassist/internal/observability"
)

// Trace injects trace, span, request and session IDs into every request and
// logs its start and end. An incoming X-Request-Id is kept.
func Trace() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			traceID := observability.GenerateTraceID()
			requestID := r.Header.Get("X-Request-Id")
			if requestID == "" {
				requestID = observability.GenerateRequestID()
			}

			ctx = observability.WithTraceID(ctx, traceID)
			ctx = observability.WithSpanID(ctx, observability.GenerateSpanID())
			ctx = observability.WithRequestID(ctx, requestID)
			ctx = observability.WithSessionID(ctx, r.Header.Get("X-Session-Id"))

			w.Header().Set("X-Trace-Id", traceID)
			w.Header().Set("X-Request-Id", requestID)

			logger := observability.FromContext(ctx)
			logger.Info("request started",
				observability.String("method", r.Method),
				observability.String("path", r.URL.Path),
				observability.String("remote_addr", r.RemoteAddr),
			)

			started := time.Now()
			next.ServeHTTP(w, r.WithContext(ctx))

			logger.Info("request completed",
				observability.Duration("elapsed", time.Since(started)))
		})
	}
}
