package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/samber/lo"

	"github.com/okian/stomp/internal/adapters/ws"
	"github.com/okian/stomp/internal/auth"
	"github.com/okian/stomp/pkg/logger"
	"github.com/okian/stomp/pkg/metrics"
)

const corsMaxAge = 600

// MetricsMiddleware records Prometheus metrics and logs one line per request.
// Requests are labelled by route pattern so ids never become label values.
func MetricsMiddleware(lg logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// The wrapper keeps http.Hijacker so websocket upgrades still work.
			wrapped := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(wrapped, r)

			status := wrapped.Status()
			if status == 0 {
				status = http.StatusOK
			}
			endpoint := routePattern(r)
			statusCode := strconv.Itoa(status)
			elapsed := time.Since(start)

			metrics.RecordHTTPRequest(endpoint, r.Method, statusCode)
			metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCode, float64(elapsed.Milliseconds()))
			if status >= http.StatusBadRequest {
				metrics.RecordHTTPError(endpoint, r.Method, statusCode)
			}

			fields := []logger.Field{
				logger.String("method", r.Method),
				logger.String("route", endpoint),
				logger.Int("status", status),
				logger.Duration("duration", elapsed),
				logger.String("request_id", middleware.GetReqID(r.Context())),
			}
			if status >= http.StatusInternalServerError {
				lg.Error(r.Context(), "request failed", fields...)
				return
			}
			lg.Debug(r.Context(), "request served", fields...)
		})
	}
}

func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}

// CORS answers preflight requests and sets the allow headers for the
// configured origins. "*" allows any origin; the request origin is echoed
// back so credentialed requests keep working.
func CORS(origins []string) func(http.Handler) http.Handler {
	allowAll := len(origins) == 0 || lo.Contains(origins, "*")
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(_ *http.Request, origin string) bool {
			return allowAll || lo.Contains(origins, origin)
		},
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           corsMaxAge,
	})
}

// Authenticate requires a valid bearer token and stores the caller in the
// request context.
func Authenticate(tokens ws.TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := auth.TokenFromRequest(r)
			if raw == "" {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, auth.ErrInvalidToken)
				return
			}
			claims, err := tokens.Parse(raw)
			if err != nil {
				w.Header().Set("WWW-Authenticate", "Bearer")
				writeError(w, err)
				return
			}
			p := auth.Principal{Actor: claims.Actor(), Email: claims.Subject}
			next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(r.Context(), p)))
		})
	}
}
