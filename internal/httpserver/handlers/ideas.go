package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/MrSnakeDoc/ideaboard/internal/domain"
	"github.com/MrSnakeDoc/ideaboard/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ideaboard/internal/logger"
	store "github.com/MrSnakeDoc/ideaboard/internal/store/fs"
)

type saveIdeaResponse struct {
	Success bool        `json:"success"`
	Idea    domain.Idea `json:"idea"`
}

type advanceResponse struct {
	Advanced bool        `json:"advanced"`
	Idea     domain.Idea `json:"idea"`
}

func ListIdeas(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ideas, err := d.Ideas.List(r.Context())
		if err != nil {
			writeInternal(w, d.Logger, "failed to list ideas", err)
			return
		}
		if ideas == nil {
			ideas = []domain.Idea{}
		}
		writeJSON(w, http.StatusOK, ideas)
	}
}

func GetIdea(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := ideaID(w, r)
		if !ok {
			return
		}
		idea, err := d.Ideas.Get(r.Context(), id)
		if err != nil {
			writeIdeaError(w, d, err)
			return
		}
		writeJSON(w, http.StatusOK, idea)
	}
}

// SaveIdea creates or overwrites an idea, then emits a new idea event.
func SaveIdea(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in domain.Idea
		if err := decodeBody(w, r, d.MaxBodyBytes, &in); err != nil {
			writeDecodeError(w, err)
			return
		}

		idea, created, err := d.Ideas.Save(r.Context(), in)
		if err != nil {
			writeIdeaError(w, d, err)
			return
		}

		d.Logger.Info("idea saved",
			logger.Int64("id", idea.ID),
			logger.String("status", string(idea.Status)),
			logger.Bool("created", created))
		if d.Metrics != nil {
			d.Metrics.IdeaSaved(created)
		}
		if d.Notifier != nil {
			// failures are logged by the notifier and never fail the save
			_ = d.Notifier.Notify(r.Context(), domain.Event{
				Kind:   domain.EventNewIdea,
				Title:  idea.Title,
				IdeaID: idea.ID,
				At:     d.Now(),
			})
		}

		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, saveIdeaResponse{Success: true, Idea: idea})
	}
}

func AdvanceIdea(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := ideaID(w, r)
		if !ok {
			return
		}
		idea, advanced, err := d.Ideas.Advance(r.Context(), id)
		if err != nil {
			writeIdeaError(w, d, err)
			return
		}
		if advanced {
			d.Logger.Info("idea advanced",
				logger.Int64("id", idea.ID),
				logger.String("status", string(idea.Status)))
			if d.Metrics != nil {
				d.Metrics.IdeasAdvanced.Inc()
			}
		}
		writeJSON(w, http.StatusOK, advanceResponse{Advanced: advanced, Idea: idea})
	}
}

func ideaID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "Invalid idea id")
		return 0, false
	}
	return id, true
}

func writeIdeaError(w http.ResponseWriter, d deps.Deps, err error) {
	switch {
	case errors.Is(err, domain.ErrUnknownStage), errors.Is(err, store.ErrInvalidIdeaID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrIdeaNotFound):
		writeError(w, http.StatusNotFound, "Idea not found")
	default:
		writeInternal(w, d.Logger, "idea store failure", err)
	}
}
