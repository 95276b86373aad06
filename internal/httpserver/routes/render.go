package routes

import (
	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/ideaboard/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ideaboard/internal/httpserver/handlers"
)

func init() { Register(registerRender) }

func registerRender(r chi.Router, d deps.Deps) {
	r.Get("/api/render/queue", handlers.QueueSummary(d))
	r.Get("/api/render/status", handlers.RenderStatus(d))
	r.With(writeLimit(d)).Post("/api/render/add", handlers.Enqueue(d))
	r.With(append(admin(d), writeLimit(d))...).Post("/api/render/process", handlers.Process(d))
}
