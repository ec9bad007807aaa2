package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/m-mizutani/ctxlog"
)

// LoggingMiddleware puts a request scoped logger (request_id, delivery) into
// the request context and logs one line per request.
func LoggingMiddleware(ctx context.Context) func(next http.Handler) http.Handler {
	base := ctxlog.From(ctx)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			logger := base.With(
				slog.String("request_id", middleware.GetReqID(r.Context())),
			)
			if delivery := r.Header.Get("X-GitHub-Delivery"); delivery != "" {
				logger = logger.With(slog.String("delivery", delivery))
			}
			r = r.WithContext(ctxlog.With(r.Context(), logger))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			logger.Info("HTTP request",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", ww.Status()),
				slog.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error, status int) {
	writeJSON(w, r, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		ctxlog.From(r.Context()).Error("Failed to encode response", "error", err)
	}
}
