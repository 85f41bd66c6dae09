package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"sjsage522/purchasewatcher/config"
	"sjsage522/purchasewatcher/internal/monitor"
	"sjsage522/purchasewatcher/logger"
	"sjsage522/purchasewatcher/services/store"
	"sjsage522/purchasewatcher/services/worker"
)

// BulkRunner runs every configured site
type BulkRunner interface {
	RunAll(ctx context.Context) []*monitor.Result
	Sites() []config.Site
}

// Options configures the HTTP handlers
type Options struct {
	Runner          worker.Runner
	Bulk            BulkRunner
	Store           store.Store // nil when no database is configured
	ProductURL      string
	IntervalMinutes int
	Now             func() time.Time
}

// Server serves the trigger and inspection endpoints
type Server struct {
	opts Options
	log  *logger.Logger
}

// New creates a server
func New(opts Options) *Server {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Server{opts: opts, log: logger.ForServer()}
}

// Handler returns the router with every route mounted at / and /api
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(s.logRequests)

	s.routes(r)
	s.routes(r.PathPrefix("/api").Subrouter())
	return r
}

func (s *Server) routes(r *mux.Router) {
	r.HandleFunc("/", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/trigger", s.handleTrigger).Methods(http.MethodPost)
	r.HandleFunc("/trigger/all", s.handleTriggerAll).Methods(http.MethodPost)
	r.HandleFunc("/export", s.handleExport).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("Request served")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.LogError("server", err, "Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
