package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/ideaboard/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ideaboard/internal/httpserver/handlers"
)

func init() { Register(registerAdmin) }

func registerAdmin(r chi.Router, d deps.Deps) {
	r.With(append(admin(d), writeLimit(d))...).Post("/api/scout", handlers.Scout(d))
	r.With(admin(d)...).Get("/metrics", handlers.Metrics(d))
}
