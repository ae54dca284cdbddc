// Package api exposes a pipeline session over HTTP for a browser front-end.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"media-transcript-go/internal/logger"
)

// NewRouter wires the session endpoints behind the shared middleware stack.
func NewRouter(h *Handler, allowedOrigins []string, log *logger.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(log))
	r.Use(cors.Handler(corsOptions(allowedOrigins)))

	r.Get("/healthz", h.Health)

	r.Get("/session", h.GetSession)
	r.Get("/session/events", h.Events)
	r.Get("/session/export", h.Export)
	r.Post("/session/upload", h.Upload)
	r.Post("/session/reset", h.Reset)

	r.Group(func(r chi.Router) {
		r.Use(maxBodySize(1 << 20))
		r.Post("/session/url", h.SubmitURL)
		r.Post("/session/transcribe", h.Transcribe)
		r.Post("/session/translate", h.Translate)
	})

	return r
}

func corsOptions(allowedOrigins []string) cors.Options {
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	// Credentials are never sent to a wildcard origin.
	allowCreds := true
	for _, o := range allowedOrigins {
		if o == "*" {
			allowCreds = false
			break
		}
	}

	return cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: allowCreds,
		MaxAge:           300,
	}
}

type wrappedWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *wrappedWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// silentPaths are polling endpoints that are only logged on errors.
var silentPaths = map[string]bool{
	"/healthz":        true,
	"/session/events": true,
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := &wrappedWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)
			if silentPaths[r.URL.Path] && wrapped.statusCode < 400 {
				return
			}
			entry := log.WithRequest(r).
				WithField("status", wrapped.statusCode).
				WithField("duration_ms", time.Since(start).Milliseconds())
			if wrapped.statusCode >= 500 {
				entry.Warn("request failed")
				return
			}
			entry.Info("request handled")
		})
	}
}

// maxBodySize limits JSON request bodies; uploads use their own limit.
func maxBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
