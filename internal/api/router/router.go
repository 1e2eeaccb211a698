package router

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/salon-storefront/internal/cart"
	httpmiddleware "github.com/wolfman30/salon-storefront/internal/http/middleware"
	"github.com/wolfman30/salon-storefront/internal/session"
	"github.com/wolfman30/salon-storefront/pkg/logging"
)

const healthTimeout = 2 * time.Second

// HealthCheck reports whether a backing service is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger             *logging.Logger
	CartHandler        *cart.Handler
	Sessions           *session.Manager
	PhoneHandler       http.Handler
	MetricsHandler     http.Handler
	RequestObserver    httpmiddleware.RequestObserver
	CORSAllowedOrigins []string
	RateLimiter        *httpmiddleware.RateLimiter
	HealthChecks       map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(httpmiddleware.RequestLogger(cfg.Logger, cfg.RequestObserver))
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}

	// Public endpoints
	r.Group(func(public chi.Router) {
		public.Get("/health", healthHandler(cfg.HealthChecks))
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}
	})

	// Visitor-facing endpoints
	r.Group(func(visitor chi.Router) {
		if cfg.RateLimiter != nil {
			visitor.Use(httpmiddleware.RateLimit(cfg.RateLimiter))
		}
		if cfg.PhoneHandler != nil {
			visitor.Get("/phone/format", cfg.PhoneHandler.ServeHTTP)
		}
		if cfg.CartHandler != nil && cfg.Sessions != nil {
			visitor.Group(func(sessioned chi.Router) {
				sessioned.Use(cfg.Sessions.Middleware)
				cfg.CartHandler.Register(sessioned)
			})
		}
	})

	return r
}

func healthHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()

		resp := struct {
			Status string            `json:"status"`
			Checks map[string]string `json:"checks,omitempty"`
		}{Status: "ok"}
		status := http.StatusOK
		for _, name := range names {
			if resp.Checks == nil {
				resp.Checks = map[string]string{}
			}
			if err := checks[name](ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				status = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
