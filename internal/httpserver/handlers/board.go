package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/ideaboard/internal/domain"
	"github.com/MrSnakeDoc/ideaboard/internal/httpserver/deps"
)

// Board serves the ideas grouped per column.
func Board(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ideas, err := d.Ideas.List(r.Context())
		if err != nil {
			writeInternal(w, d.Logger, "failed to list ideas", err)
			return
		}
		writeJSON(w, http.StatusOK, domain.BuildBoard(ideas))
	}
}

func Stats(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ideas, err := d.Ideas.List(r.Context())
		if err != nil {
			writeInternal(w, d.Logger, "failed to list ideas", err)
			return
		}
		writeJSON(w, http.StatusOK, domain.CountByStage(ideas))
	}
}
