package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/ideaboard/internal/httpserver/deps"
)

const redisCheckTimeout = 2 * time.Second

type componentStatus struct {
	OK     bool   `json:"ok"`
	Items  *int   `json:"items,omitempty"`
	Mode   string `json:"mode,omitempty"`
	Impact string `json:"impact,omitempty"`
	Error  string `json:"error,omitempty"`
}

type readyzResponse struct {
	Ready      bool                       `json:"ready"`
	Components map[string]componentStatus `json:"components"`
}

// Readyz reports 503 when the render queue cannot be read. Redis and the
// renderer are informational: the board works without them.
func Readyz(d deps.Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		components := map[string]componentStatus{
			"queue":    checkQueue(r.Context(), d),
			"redis":    checkRedis(r.Context(), d),
			"renderer": checkRenderer(d),
		}

		ready := components["queue"].OK
		status := http.StatusOK
		if !ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, readyzResponse{Ready: ready, Components: components})
	}
}

func checkQueue(ctx context.Context, d deps.Deps) componentStatus {
	summary, err := d.Queue.Summarize(ctx)
	if err != nil {
		return componentStatus{
			OK:     false,
			Impact: "render-queue-unavailable",
			Error:  err.Error(),
		}
	}
	total := summary.Total
	return componentStatus{OK: true, Items: &total}
}

func checkRedis(ctx context.Context, d deps.Deps) componentStatus {
	if d.RedisPing == nil {
		return componentStatus{
			OK:     true,
			Mode:   "disabled",
			Impact: "signal-file-only",
		}
	}

	ctx, cancel := context.WithTimeout(ctx, redisCheckTimeout)
	defer cancel()

	if err := d.RedisPing(ctx); err != nil {
		return componentStatus{
			OK:     false,
			Mode:   "degraded",
			Impact: "signal-list-disabled",
			Error:  err.Error(),
		}
	}
	return componentStatus{OK: true, Mode: "optimal"}
}

func checkRenderer(d deps.Deps) componentStatus {
	st := d.Dispatcher.Status()
	switch {
	case st.Running != nil:
		return componentStatus{OK: true, Mode: "running"}
	case st.LastRun != nil && st.LastRun.Error != "":
		return componentStatus{OK: false, Mode: "idle", Error: st.LastRun.Error}
	default:
		return componentStatus{OK: true, Mode: "idle"}
	}
}
