// Package httpapi exposes the cat registry and mission engine over a JSON
// REST API.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"spycats/internal/core"
)

// Server routes API requests to a core.Service.
type Server struct {
	svc      *core.Service
	logger   core.Logger
	registry *prometheus.Registry
	router   *mux.Router

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger used for request failures.
func WithLogger(logger core.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRegistry sets the registry that receives HTTP metrics and is served on
// /metrics. Without it the server uses a private registry.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(s *Server) {
		if reg != nil {
			s.registry = reg
		}
	}
}

// New builds the router.
func New(svc *core.Service, opts ...Option) *Server {
	s := &Server{svc: svc, logger: core.NopLogger()}
	for _, opt := range opts {
		opt(s)
	}
	if s.registry == nil {
		s.registry = prometheus.NewRegistry()
	}
	s.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "spycats",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"method", "route", "code"})
	s.latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "spycats",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})
	s.registry.MustRegister(s.requests, s.latency)

	r := mux.NewRouter()
	r.Use(s.instrument)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/cats", s.handleListCats).Methods(http.MethodGet)
	api.HandleFunc("/cats", s.handleCreateCat).Methods(http.MethodPost)
	api.HandleFunc("/cats/{id}", s.handleGetCat).Methods(http.MethodGet)
	api.HandleFunc("/cats/{id}", s.handleUpdateCat).Methods(http.MethodPut, http.MethodPatch)
	api.HandleFunc("/cats/{id}", s.handleDeleteCat).Methods(http.MethodDelete)

	api.HandleFunc("/missions", s.handleListMissions).Methods(http.MethodGet)
	api.HandleFunc("/missions", s.handleCreateMission).Methods(http.MethodPost)
	api.HandleFunc("/missions/{id}", s.handleGetMission).Methods(http.MethodGet)
	api.HandleFunc("/missions/{id}", s.handleDeleteMission).Methods(http.MethodDelete)
	api.HandleFunc("/missions/{id}/assign_cat", s.handleAssignCat).Methods(http.MethodPost)
	api.HandleFunc("/missions/{id}/targets/{target_id}", s.handleUpdateTarget).Methods(http.MethodPatch)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "route not found", Kind: "not_found"})
	})
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// instrument records request counts and latency labelled by route template.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tpl, err := current.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		s.requests.WithLabelValues(r.Method, route, strconv.Itoa(rec.status)).Inc()
		s.latency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
