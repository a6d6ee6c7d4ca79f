package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-push-dispatch/internal/application/access"
	"github.com/go-push-dispatch/internal/application/dispatch"
	"github.com/go-push-dispatch/internal/config"
	"github.com/go-push-dispatch/internal/transport/http/handler"
	appmiddleware "github.com/go-push-dispatch/internal/transport/http/middleware"
	"golang.org/x/time/rate"
)

// Deps holds the application services the router exposes.
type Deps struct {
	Dispatch dispatch.Service
	Guard    access.Guard
	Logger   *slog.Logger
}

// NewRouter builds and returns the application router.
func NewRouter(cfg *config.Config, deps *Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	dispatchRL := appmiddleware.NewRateLimiter(rate.Limit(cfg.Dispatch.RateLimitPerSec), cfg.Dispatch.RateLimitPerSec)

	healthH := handler.NewHealthHandler()
	dispatchH := handler.NewDispatchHandler(deps.Dispatch, deps.Guard, cfg.Dispatch.InvocationTimeout, deps.Logger)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health-check/{action}", healthH.Ping)
		r.With(dispatchRL.Limit).Post("/notifications/dispatch", dispatchH.Dispatch)
	})

	return r
}
