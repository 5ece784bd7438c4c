package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radiusdt/stayvalue/internal/config"
	"github.com/radiusdt/stayvalue/internal/dispatch"
	"github.com/radiusdt/stayvalue/internal/ltv"
	"github.com/radiusdt/stayvalue/internal/metrics"
	"github.com/radiusdt/stayvalue/internal/middleware"
	"github.com/radiusdt/stayvalue/internal/models"
)

const (
	dateLayout     = "2006-01-02"
	maxRequestBody = 1 << 20
)

// ProfileService builds customer LTV profiles.
type ProfileService interface {
	Build(ctx context.Context, customerID string) (*models.CustomerLTVProfile, error)
}

// EventDispatcher turns lifecycle events into conversion events.
type EventDispatcher interface {
	Dispatch(ctx context.Context, ev *models.LifecycleEvent) (*dispatch.Result, error)
}

// StatsSource reports daily dispatch counters.
type StatsSource interface {
	DailyStats(ctx context.Context, date string) (*models.DispatchStats, error)
}

// HealthCheck probes one backing service.
type HealthCheck func(ctx context.Context) error

// Dependencies holds all external dependencies for the server.
type Dependencies struct {
	Profiles     ProfileService
	Dispatcher   EventDispatcher
	Stats        StatsSource
	HealthChecks map[string]HealthCheck
	RateLimiter  *middleware.RateLimitMiddleware
	Gatherer     prometheus.Gatherer
	Config       *config.Config
	Logger       *zap.Logger
}

// Server wraps HTTP handlers and the scoring services.
type Server struct {
	profiles   ProfileService
	dispatcher EventDispatcher
	stats      StatsSource
	checks     map[string]HealthCheck
	validate   *validator.Validate
	logger     *zap.Logger
	config     *config.Config
	now        func() time.Time
}

// NewServer constructs a new http.Handler with all routes registered.
func NewServer(deps *Dependencies) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		profiles:   deps.Profiles,
		dispatcher: deps.Dispatcher,
		stats:      deps.Stats,
		checks:     deps.HealthChecks,
		validate:   newValidator(),
		logger:     logger,
		config:     deps.Config,
		now:        time.Now,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(logger).Handler)
	r.Use(middleware.NewLoggingMiddleware(logger).Handler)
	if deps.RateLimiter != nil {
		r.Use(deps.RateLimiter.Handler)
	}
	r.Use(middleware.NewAuthMiddleware(deps.Config.Auth, logger).Handler)

	r.Get("/health", s.handleHealth)

	if deps.Config.Metrics.Enabled && deps.Gatherer != nil {
		r.Method(http.MethodGet, deps.Config.Metrics.Path, metrics.Handler(deps.Gatherer))
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/customers/{customerID}/ltv", s.handleCustomerLTV)
		r.Post("/lifecycle-events", s.handleLifecycleEvent)
		r.Get("/stats/dispatch", s.handleDispatchStats)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.errorResponse(w, "not found", http.StatusNotFound)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.errorResponse(w, "method not allowed", http.StatusMethodNotAllowed)
	})

	return r
}

// ---- Health Check ----

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := "ok"
	components := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			components[name] = err.Error()
			status = "degraded"
			continue
		}
		components[name] = "ok"
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	s.jsonStatus(w, code, map[string]any{
		"status":     status,
		"components": components,
	})
}

// ---- Customer LTV ----

func (s *Server) handleCustomerLTV(w http.ResponseWriter, r *http.Request) {
	customerID := chi.URLParam(r, "customerID")

	profile, err := s.profiles.Build(r.Context(), customerID)
	switch {
	case err == nil:
		s.jsonResponse(w, profile)
	case errors.Is(err, ltv.ErrNoHistory):
		s.errorResponse(w, "customer has no booking history", http.StatusNotFound)
	case errors.Is(err, ltv.ErrInvalidCustomer):
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("failed to build LTV profile",
			zap.String("customer_id", customerID),
			zap.Error(err),
		)
		s.errorResponse(w, "failed to build profile", http.StatusInternalServerError)
	}
}

// ---- Lifecycle Events ----

func (s *Server) handleLifecycleEvent(w http.ResponseWriter, r *http.Request) {
	var req lifecycleEventRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.errorResponse(w, "invalid json", http.StatusBadRequest)
		return
	}

	if err := s.validate.Struct(&req); err != nil {
		s.errorResponse(w, "invalid lifecycle event: "+validationMessage(err), http.StatusBadRequest)
		return
	}

	ev := req.toEvent()
	if ev.ClientIP == "" {
		ev.ClientIP = clientIP(r)
	}
	if ev.UserAgent == "" {
		ev.UserAgent = r.UserAgent()
	}

	res, err := s.dispatcher.Dispatch(r.Context(), ev)
	switch {
	case err == nil, errors.Is(err, dispatch.ErrClientNotConfigured):
		s.jsonStatus(w, http.StatusAccepted, res)
	case errors.Is(err, dispatch.ErrUnknownStage):
		s.errorResponse(w, err.Error(), http.StatusBadRequest)
	case res != nil:
		s.jsonStatus(w, http.StatusBadGateway, res)
	default:
		s.logger.Error("lifecycle dispatch error", zap.Error(err))
		s.errorResponse(w, "internal error", http.StatusInternalServerError)
	}
}

// ---- Stats ----

func (s *Server) handleDispatchStats(w http.ResponseWriter, r *http.Request) {
	if s.stats == nil {
		s.errorResponse(w, "dispatch stats unavailable", http.StatusServiceUnavailable)
		return
	}

	date := r.URL.Query().Get("date")
	if date == "" {
		date = s.now().UTC().Format(dateLayout)
	} else if _, err := time.Parse(dateLayout, date); err != nil {
		s.errorResponse(w, "date must be YYYY-MM-DD", http.StatusBadRequest)
		return
	}

	stats, err := s.stats.DailyStats(r.Context(), date)
	if err != nil {
		s.logger.Error("failed to load dispatch stats", zap.String("date", date), zap.Error(err))
		s.errorResponse(w, "failed to load dispatch stats", http.StatusInternalServerError)
		return
	}

	s.jsonResponse(w, stats)
}

// ---- Helper Methods ----

func (s *Server) jsonResponse(w http.ResponseWriter, data interface{}) {
	s.jsonStatus(w, http.StatusOK, data)
}

func (s *Server) jsonStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) errorResponse(w http.ResponseWriter, message string, code int) {
	s.jsonStatus(w, code, map[string]string{"error": message})
}
