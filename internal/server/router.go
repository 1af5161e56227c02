package server

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/diewo77/bilan-portal/internal/handlers"
	"github.com/diewo77/bilan-portal/internal/httpx"
	"github.com/diewo77/bilan-portal/internal/services"
)

// APIPrefix is the alias under which every route is also served.
const APIPrefix = "/api"

// New constructs the root http.Handler with all routes and middlewares applied.
func New(clients *services.ClientService, imports *services.ImportService, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	mux := http.NewServeMux()

	health := handlers.NewHealthHandler(clients, log)
	mux.HandleFunc("GET /health", health.Check)

	ch := handlers.NewClientHandler(clients, log)
	mux.HandleFunc("GET /clients", ch.List)
	mux.HandleFunc("POST /clients", ch.Create)
	mux.HandleFunc("GET /clients/{id}", ch.View)
	mux.HandleFunc("PUT /clients/{id}", ch.Update)
	mux.HandleFunc("DELETE /clients/{id}", ch.Delete)

	ih := handlers.NewImportHandler(imports, log)
	mux.HandleFunc("POST /imports", ih.Submit)

	return withRecover(log, withLogging(log, withAPIPrefix(mux)))
}

// withAPIPrefix serves /api/... as /... so the dashboard can keep its base URL.
func withAPIPrefix(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := strings.TrimPrefix(r.URL.Path, APIPrefix); p != r.URL.Path && (p == "" || p[0] == '/') {
			r2 := r.Clone(r.Context())
			if p == "" {
				p = "/"
			}
			r2.URL.Path = p
			r2.URL.RawPath = ""
			next.ServeHTTP(w, r2)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func withLogging(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func withRecover(log *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("panic serving request", zap.Any("panic", rec), zap.String("path", r.URL.Path), zap.Stack("stack"))
				httpx.JSONError(w, http.StatusInternalServerError, "internal_error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
