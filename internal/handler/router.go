package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mmeshcher/starsky/internal/metrics"
	custommiddleware "github.com/mmeshcher/starsky/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса звёздного неба.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(metrics.InstrumentHandler)

	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api/user", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Get("/credits", h.GetCredits)

			r.Post("/purchases", h.AddPurchase)
			r.Get("/purchases", h.GetPurchases)
		})
	})

	r.Route("/api/stars", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Get("/", h.ListStars)
		r.Post("/", h.CreateStar)
		r.Get("/events", h.StarEvents)
		r.Delete("/{id}", h.DeleteStar)
	})

	r.Route("/api/admin/accounts/{id}", func(r chi.Router) {
		r.Use(h.authMiddleware.Middleware)

		r.Post("/credits", h.GrantCredits)
		r.Put("/role", h.SetRole)
		r.Put("/unlimited", h.SetUnlimitedCredits)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpError(w, http.StatusMethodNotAllowed)
	})

	return r
}
