package handlers

import (
	"errors"
	"net/http"

	"github.com/MrSnakeDoc/ideaboard/internal/domain"
	"github.com/MrSnakeDoc/ideaboard/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ideaboard/internal/logger"
	"github.com/MrSnakeDoc/ideaboard/internal/render"
	store "github.com/MrSnakeDoc/ideaboard/internal/store/fs"
	"github.com/MrSnakeDoc/ideaboard/internal/watch"
)

type enqueueResponse struct {
	Success bool             `json:"success"`
	Item    domain.QueueItem `json:"item"`
}

type processResponse struct {
	Accepted  bool   `json:"accepted"`
	RunID     string `json:"run_id"`
	Coalesced bool   `json:"coalesced"`
}

func QueueSummary(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := d.Queue.Summarize(r.Context())
		if err != nil {
			writeQueueError(w, d, err)
			return
		}
		if d.Metrics != nil {
			d.Metrics.ObserveQueue(summary)
		}
		writeJSON(w, http.StatusOK, summary)
	}
}

func Enqueue(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req domain.EnqueueRequest
		if err := decodeBody(w, r, d.MaxBodyBytes, &req); err != nil {
			writeDecodeError(w, err)
			return
		}

		item, err := d.Queue.Enqueue(r.Context(), req)
		if err != nil {
			writeQueueError(w, d, err)
			return
		}
		if d.Metrics != nil {
			d.Metrics.QueueEnqueued.Inc()
		}
		writeJSON(w, http.StatusCreated, enqueueResponse{Success: true, Item: item})
	}
}

// Process hands a renderer run to the dispatcher and returns at once.
func Process(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		run, coalesced := d.Dispatcher.Trigger()
		d.Logger.Info("render run requested",
			logger.String("run_id", run.ID),
			logger.Bool("coalesced", coalesced),
			logger.String("remote_ip", r.RemoteAddr))
		writeJSON(w, http.StatusAccepted, processResponse{
			Accepted:  true,
			RunID:     run.ID,
			Coalesced: coalesced,
		})
	}
}

type renderStatusResponse struct {
	render.Status
	Watcher *watch.State `json:"watcher,omitempty"`
}

// RenderStatus reports the dispatcher state and, when the queue watcher is
// on, how many queue items it tracks and when it last read the file.
func RenderStatus(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := renderStatusResponse{Status: d.Dispatcher.Status()}
		if d.Watcher != nil {
			st := d.Watcher.State()
			resp.Watcher = &st
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func writeQueueError(w http.ResponseWriter, d deps.Deps, err error) {
	switch {
	case errors.Is(err, store.ErrInvalidItem):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrDuplicateID):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrQueueCorrupt):
		d.Logger.Error("render queue is corrupt", logger.Error(err))
		writeError(w, http.StatusInternalServerError, "Render queue is corrupt")
	default:
		writeInternal(w, d.Logger, "render queue failure", err)
	}
}
