package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type contextKey string

const (
	callerKey contextKey = "caller"
	loggerKey contextKey = "logger"
)

// IdentifyCaller records the identity a fronting proxy asserted, if any.
// Requests without one are still served.
func IdentifyCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller := r.Header.Get("X-Auth-User")
		if caller == "" {
			caller = r.Header.Get("X-Forwarded-User")
		}
		if caller == "" {
			caller = r.Header.Get("Remote-User")
		}

		if caller != "" {
			r = r.WithContext(context.WithValue(r.Context(), callerKey, caller))
		}
		next.ServeHTTP(w, r)
	})
}

func CallerFrom(ctx context.Context) string {
	caller, _ := ctx.Value(callerKey).(string)
	return caller
}

// RequestLogger logs one line per request and leaves a request-scoped logger
// in the context.
func RequestLogger(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqLogger := logger.With(zap.String("request_id", middleware.GetReqID(r.Context())))
			if caller := CallerFrom(r.Context()); caller != "" {
				reqLogger = reqLogger.With(zap.String("caller", caller))
			}

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), loggerKey, reqLogger)))

			reqLogger.Info("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("duration", time.Since(start)),
			)
		})
	}
}

func LoggerFrom(ctx context.Context) *zap.Logger {
	if l, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return l
	}
	return zap.NewNop()
}
