package deps

import (
	"context"
	"net/http"
	"time"

	"github.com/MrSnakeDoc/ideaboard/internal/domain"
	"github.com/MrSnakeDoc/ideaboard/internal/logger"
	"github.com/MrSnakeDoc/ideaboard/internal/metrics"
	"github.com/MrSnakeDoc/ideaboard/internal/notify"
	"github.com/MrSnakeDoc/ideaboard/internal/render"
	"github.com/MrSnakeDoc/ideaboard/internal/watch"
)

// IdeaStore is implemented by fs.IdeaStore.
type IdeaStore interface {
	List(ctx context.Context) ([]domain.Idea, error)
	Get(ctx context.Context, id int64) (domain.Idea, error)
	Save(ctx context.Context, idea domain.Idea) (domain.Idea, bool, error)
	Advance(ctx context.Context, id int64) (domain.Idea, bool, error)
}

// QueueWatcher is implemented by watch.QueueWatcher.
type QueueWatcher interface {
	State() watch.State
}

// RenderQueue is implemented by fs.Queue.
type RenderQueue interface {
	Enqueue(ctx context.Context, req domain.EnqueueRequest) (domain.QueueItem, error)
	Summarize(ctx context.Context) (domain.Summary, error)
}

// Dispatcher is implemented by render.Dispatcher.
type Dispatcher interface {
	Trigger() (*render.Run, bool)
	Status() render.Status
}

type Deps struct {
	Logger       logger.Logger
	StartTime    time.Time
	Version      string
	Commit       string
	BuildDate    string
	GoVersion    string
	TimeNow      func() time.Time // for testing, defaults to time.Now
	AllowedHosts []string         // Host headers allowed on admin endpoints
	AllowedCIDRS []string         // IPs allowed on admin endpoints
	TrustProxy   bool             // true if running behind a trusted reverse proxy (e.g., cloudflared)
	MaxBodyBytes int64            // JSON body cap

	Ideas      IdeaStore
	Queue      RenderQueue
	Dispatcher Dispatcher
	Notifier   notify.Notifier    // nil disables notifications
	Metrics    *metrics.Collector // nil disables /metrics and instrumentation

	ScoutTrigger chan struct{}                   // manual trend scout trigger (nil if scout disabled)
	RedisPing    func(ctx context.Context) error // nil when redis is not configured
	Watcher      QueueWatcher                    // nil when the queue watcher is off

	// WriteLimit is the shared rate limiter of the write endpoints,
	// built once by server.NewRouter.
	WriteLimit func(http.Handler) http.Handler
}

// Now returns TimeNow() or time.Now() when unset.
func (d Deps) Now() time.Time {
	if d.TimeNow != nil {
		return d.TimeNow()
	}
	return time.Now()
}
