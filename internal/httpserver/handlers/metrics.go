package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/ideaboard/internal/httpserver/deps"
)

func Metrics(d deps.Deps) http.HandlerFunc {
	if d.Metrics == nil {
		return NotFound
	}
	h := d.Metrics.Handler()
	return h.ServeHTTP
}
