package router

import (
	"net/http"
	"time"

	"gta-grind-tracker/internal/handler"
	"gta-grind-tracker/internal/middleware"
	"gta-grind-tracker/pkg/apierror"
	"gta-grind-tracker/pkg/response"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config holds the configuration for creating a router.
type Config struct {
	Handler             *handler.Handler
	ActivityHandler     *handler.ActivityHandler
	TrackerHandler      *handler.TrackerHandler
	NotificationHandler *handler.NotificationHandler
	AdminHandler        *handler.AdminHandler

	// RateLimitRequests per RateLimitWindow per client IP. Zero disables it.
	RateLimitRequests int
	RateLimitWindow   time.Duration
}

// New creates and configures the HTTP router.
func New(cfg Config) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware stack (applies to ALL routes)
	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	if cfg.Handler != nil {
		r.Get("/api/status", cfg.Handler.Status)
	}
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimitRequests > 0 && cfg.RateLimitWindow > 0 {
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))
		}

		if cfg.Handler != nil {
			r.Get("/health", cfg.Handler.Health)
			r.Get("/ready", cfg.Handler.Ready)
		}

		if h := cfg.ActivityHandler; h != nil {
			r.Route("/activities", func(r chi.Router) {
				r.Get("/", h.List)
				r.Post("/", h.Create)
				r.Get("/{id}", h.Get)
				r.Put("/{id}", h.Update)
				r.Delete("/{id}", h.Delete)
			})
			r.Post("/bulk/activities", h.BulkUpsert)
		}

		if h := cfg.TrackerHandler; h != nil {
			r.Get("/board", h.Board)
			r.Get("/board/{id}", h.BoardEntry)
			r.Post("/refresh", h.Refresh)

			r.Route("/sessions", func(r chi.Router) {
				r.Get("/", h.RecentSessions)
				r.Post("/", h.StartSession)
				r.Post("/{activity_id}/stop", h.StopSession)
				r.Post("/{activity_id}/confirm", h.ConfirmSession)
			})
			r.Post("/bulk/sessions", h.BulkCreateSessions)

			r.Route("/cooldowns", func(r chi.Router) {
				r.Get("/", h.Cooldowns)
				r.Post("/", h.StartCooldown)
				r.Delete("/{activity_id}", h.ClearCooldown)
			})

			r.Route("/resupply", func(r chi.Router) {
				r.Get("/", h.Resupplies)
				r.Post("/", h.StartResupply)
				r.Delete("/{activity_id}", h.ClearResupply)
			})

			r.Route("/production", func(r chi.Router) {
				r.Get("/", h.Production)
				r.Post("/", h.SetProduction)
				r.Get("/{activity_id}", h.ProductionOf)
				r.Delete("/{activity_id}", h.ClearProduction)
			})

			r.Route("/sell-sessions", func(r chi.Router) {
				r.Get("/", h.ActiveSells)
				r.Post("/", h.StartSell)
				r.Post("/{activity_id}/stop", h.StopSell)
				r.Post("/{activity_id}/confirm", h.ConfirmSell)
			})

			r.Route("/safes", func(r chi.Router) {
				r.Get("/collections", h.SafeCollections)
				r.Post("/{activity_id}/collect", h.CollectSafe)
			})

			r.Route("/stats", func(r chi.Router) {
				r.Get("/", h.Stats)
				r.Delete("/", h.ResetAll)
				r.Get("/{activity_id}", h.StatsOf)
				r.Delete("/{activity_id}", h.ResetActivity)
			})
		}

		if h := cfg.NotificationHandler; h != nil {
			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", h.List)
				r.Delete("/", h.ClearAll)
				r.Get("/stream", h.Stream)
				r.Get("/history", h.History)
				r.Delete("/{id}", h.Dismiss)
			})
		}

		if cfg.AdminHandler != nil {
			r.Get("/admin/stats", cfg.AdminHandler.GetStats)
		}
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apierror.NotFound("route not found"))
	})

	return r
}
