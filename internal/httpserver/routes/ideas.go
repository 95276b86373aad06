package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/ideaboard/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ideaboard/internal/httpserver/handlers"
)

func init() { Register(registerIdeas) }

func registerIdeas(r chi.Router, d deps.Deps) {
	r.Get("/api/ideas", handlers.ListIdeas(d))
	r.With(writeLimit(d)).Post("/api/ideas", handlers.SaveIdea(d))
	r.Get("/api/ideas/{id}", handlers.GetIdea(d))
	r.With(writeLimit(d)).Post("/api/ideas/{id}/advance", handlers.AdvanceIdea(d))

	r.Get("/api/board", handlers.Board(d))
	r.Get("/api/stats", handlers.Stats(d))
}
