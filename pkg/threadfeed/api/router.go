package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/threadfeed/threadfeed/pkg/threadfeed"
)

// NewRouter assembles the full HTTP surface of the service
func NewRouter(service threadfeed.Service, logger *slog.Logger) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger(logger))
	r.Use(WithSubject)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		render.JSON(w, r, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/threads", NewThreadHandler(service).Routes())
		r.Mount("/users", NewUserHandler(service).Routes())
		r.Mount("/uploads", NewUploadHandler(service).Routes())
		r.Mount("/webhooks", NewWebhookHandler(service).Routes())
	})

	return r
}
