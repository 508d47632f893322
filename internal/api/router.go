package api

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/iconidentify/linkgrab/internal/api/handler"
	mw "github.com/iconidentify/linkgrab/internal/api/middleware"
)

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	healthHandler *handler.HealthHandler,
	embedHandler *handler.EmbedHandler,
	controlHandler *handler.ControlHandler,
	eventHandler *handler.EventHandler,
	apiKey string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.CleanPath)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))
	r.Use(middleware.Timeout(5 * time.Minute))

	r.Get("/health", healthHandler.Live)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.APIKeyAuth(apiKey))

		r.Get("/stats", healthHandler.Stats)

		r.Post("/embeds", embedHandler.Create)

		r.Get("/controls/{controlID}", controlHandler.Get)
		r.Post("/controls/{controlID}/messages", controlHandler.Bind)
		r.Post("/controls/{controlID}/delete", controlHandler.Delete)

		if eventHandler != nil {
			r.Get("/events", eventHandler.List)
			r.Get("/events/recent", eventHandler.Recent)
		}
	})

	return r
}
