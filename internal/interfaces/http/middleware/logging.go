// Package middleware holds the HTTP middleware of the API server.
package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Arisex96/bio-mat-new/internal/infrastructure/monitoring/logging"
)

// LoggingConfig tunes RequestLogging.
type LoggingConfig struct {
	// SkipPaths are served without an access log line.
	SkipPaths []string
	// Requests slower than SlowThreshold log at warn. Zero disables it.
	SlowThreshold time.Duration
}

func DefaultLoggingConfig() LoggingConfig {
	return LoggingConfig{
		SkipPaths:     []string{"/healthz", "/readyz", "/metrics"},
		SlowThreshold: 3 * time.Second,
	}
}

// statusOf treats a handler that never wrote a header as 200.
func statusOf(ww chimw.WrapResponseWriter) int {
	if s := ww.Status(); s != 0 {
		return s
	}
	return http.StatusOK
}

// RequestLogging writes one access log line per request after it is served.
// Server errors log at error, client errors and slow requests at warn.
func RequestLogging(logger logging.Logger, cfg LoggingConfig) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(cfg.SkipPaths))
	for _, p := range cfg.SkipPaths {
		skip[p] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			began := time.Now()
			next.ServeHTTP(ww, r)
			took := time.Since(began)
			status := statusOf(ww)

			fields := make([]logging.Field, 0, 8)
			fields = append(fields,
				logging.String("method", r.Method),
				logging.String("path", r.URL.Path),
				logging.Int("status", status),
				logging.Duration("duration", took),
				logging.Int("bytes", ww.BytesWritten()),
				logging.String("remote_addr", r.RemoteAddr),
			)
			if id := chimw.GetReqID(r.Context()); id != "" {
				fields = append(fields, logging.String("request_id", id))
			}
			if ua := r.UserAgent(); ua != "" {
				fields = append(fields, logging.String("user_agent", ua))
			}

			log := logger.Info
			msg := "request served"
			switch {
			case status >= http.StatusInternalServerError:
				log, msg = logger.Error, "request failed"
			case status >= http.StatusBadRequest:
				log, msg = logger.Warn, "request rejected"
			case cfg.SlowThreshold > 0 && took >= cfg.SlowThreshold:
				log, msg = logger.Warn, "slow request"
			}
			log(msg, fields...)
		})
	}
}
