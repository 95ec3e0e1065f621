// Package api exposes the HTTP interface for the prospecting service.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/localrank/keyword-arbitrage/internal/metrics"
	"github.com/localrank/keyword-arbitrage/internal/middleware"
	"github.com/localrank/keyword-arbitrage/internal/prospect"
)

// AuthConfig gates the API behind a shared key when enabled.
type AuthConfig struct {
	Enabled bool
	APIKey  string
}

// Config carries server tunables.
type Config struct {
	ListenAddr            string
	RequestTimeout        time.Duration
	Auth                  AuthConfig
	DefaultTargetPoolSize int
	DefaultCountry        string
}

// Server wires HTTP handlers to the task queue and the arbitrage cache.
type Server struct {
	router chi.Router
	queue  prospect.TaskQueue
	cache  prospect.CacheStore
	idGen  prospect.IDGenerator
	clock  prospect.Clock
	cfg    Config
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	queue prospect.TaskQueue,
	cacheStore prospect.CacheStore,
	idGen prospect.IDGenerator,
	clock prospect.Clock,
	cfg Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if cfg.DefaultTargetPoolSize <= 0 {
		cfg.DefaultTargetPoolSize = 50
	}
	if cfg.DefaultCountry == "" {
		cfg.DefaultCountry = "us"
	}
	s := &Server{
		queue:  queue,
		cache:  cacheStore,
		idGen:  idGen,
		clock:  clock,
		cfg:    cfg,
		logger: logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(cfg.RequestTimeout))
	r.Use(middleware.Metrics)
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", s.submitTask)
			r.Get("/{task_id}", s.getTask)
		})
		r.Get("/arbitrage/{category}/{location}", s.getArbitrage)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type taskRequest struct {
	SeedKeywords        []string `json:"seed_keywords"`
	CustomerDomain      string   `json:"customer_domain"`
	AvgJobAmount        float64  `json:"avg_job_amount"`
	AvgConversionRate   float64  `json:"avg_conversion_rate"`
	Category            string   `json:"category"`
	State               string   `json:"state"`
	ServiceRadiusCities []string `json:"service_radius_cities"`
	TargetPoolSize      *int     `json:"target_pool_size"`
	MinVolumeFilter     *int     `json:"min_volume_filter"`
	Country             string   `json:"country"`
}

func (s *Server) submitTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	task := s.toTask(req)
	if err := task.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	id, err := s.idGen.NewID()
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("generate task id: %v", err))
		return
	}
	task.ID = id
	task.Status = prospect.TaskStatusPending
	task.CreatedAt = s.clock.Now().UTC()
	if err := s.queue.Enqueue(r.Context(), task); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("enqueue task: %v", err))
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"task_id": id})
}

func (s *Server) getTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "task_id")
	task, err := s.queue.Get(r.Context(), taskID)
	if err != nil {
		if errors.Is(err, prospect.ErrTaskNotFound) {
			writeError(w, http.StatusNotFound, "task not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to fetch task")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"task": task})
}

func (s *Server) getArbitrage(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "category") + "/" + chi.URLParam(r, "location")
	entry, ok, err := s.cache.Get(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch arbitrage data")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no arbitrage data for location")
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) toTask(req taskRequest) prospect.Task {
	country := req.Country
	if country == "" {
		country = s.cfg.DefaultCountry
	}
	return prospect.Task{
		SeedKeywords:        req.SeedKeywords,
		CustomerDomain:      req.CustomerDomain,
		AvgJobAmount:        req.AvgJobAmount,
		AvgConversionRate:   req.AvgConversionRate,
		Category:            req.Category,
		State:               req.State,
		ServiceRadiusCities: req.ServiceRadiusCities,
		TargetPoolSize:      valueOrDefault(req.TargetPoolSize, s.cfg.DefaultTargetPoolSize),
		MinVolumeFilter:     valueOrDefault(req.MinVolumeFilter, 0),
		Country:             country,
	}
}

func valueOrDefault[T any](ptr *T, def T) T {
	if ptr == nil {
		return def
	}
	return *ptr
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
