package handlers

import (
	"net/http"

	"github.com/MrSnakeDoc/ideaboard/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ideaboard/internal/logger"
)

type scoutResponse struct {
	Triggered bool `json:"triggered"`
}

// Scout asks the trend scout for an immediate scan.
func Scout(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.ScoutTrigger == nil {
			writeError(w, http.StatusNotFound, "Trend scout disabled")
			return
		}

		select {
		case d.ScoutTrigger <- struct{}{}:
			d.Logger.Info("manual trend scout triggered via endpoint",
				logger.String("remote_ip", r.RemoteAddr))
			writeJSON(w, http.StatusAccepted, scoutResponse{Triggered: true})
		default:
			d.Logger.Warn("trend scout scan already pending",
				logger.String("remote_ip", r.RemoteAddr))
			writeError(w, http.StatusTooManyRequests, "Scan already pending, please wait")
		}
	}
}
