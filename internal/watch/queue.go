package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/MrSnakeDoc/ideaboard/internal/domain"
	"github.com/MrSnakeDoc/ideaboard/internal/index"
	"github.com/MrSnakeDoc/ideaboard/internal/logger"
	"github.com/MrSnakeDoc/ideaboard/internal/notify"
)

const DefaultDebounce = 250 * time.Millisecond

// QueueLoader is implemented by fs.Queue.
type QueueLoader interface {
	Load(ctx context.Context) ([]domain.QueueItem, error)
}

// QueueObserver is implemented by metrics.Collector.
type QueueObserver interface {
	ObserveQueue(s domain.Summary)
	QueueCompleted(n int)
}

// State is what the watcher last saw, reported by /api/render/status.
type State struct {
	Items       int        `json:"items"`
	LastRefresh *time.Time `json:"last_refresh"`
}

// QueueWatcher follows the render queue file and reports items the
// external renderer flips to complete.
type QueueWatcher struct {
	queue    QueueLoader
	path     string
	index    *index.QueueIndex
	notifier notify.Notifier
	observer QueueObserver
	debounce time.Duration
	log      logger.Logger
	now      func() time.Time

	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewQueueWatcher builds a watcher for the queue file at path. notifier and
// observer may be nil.
func NewQueueWatcher(
	queue QueueLoader,
	path string,
	idx *index.QueueIndex,
	notifier notify.Notifier,
	observer QueueObserver,
	debounce time.Duration,
	log logger.Logger,
) *QueueWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &QueueWatcher{
		queue:    queue,
		path:     filepath.Clean(path),
		index:    idx,
		notifier: notifier,
		observer: observer,
		debounce: debounce,
		log:      log,
		now:      time.Now,
		stopCh:   make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start records the current queue as baseline and watches the queue
// directory; the file itself is replaced on every atomic write, so watching
// it directly would lose track after the first rename.
func (w *QueueWatcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	if _, err := w.Refresh(ctx); err != nil {
		w.log.Warn("initial queue read failed",
			logger.String("path", w.path),
			logger.Error(err))
	}

	w.mu.Lock()
	w.running = true
	w.mu.Unlock()
	go w.loop(ctx, fw)

	w.log.Info("watching render queue",
		logger.String("path", w.path),
		logger.Duration("debounce", w.debounce))
	return nil
}

// Stop stops the watcher and waits for the loop to exit. Safe to call
// more than once, and before Start.
func (w *QueueWatcher) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })

	w.mu.Lock()
	running := w.running
	w.mu.Unlock()
	if running {
		<-w.done
	}
}

func (w *QueueWatcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer close(w.done)
	defer func() { _ = fw.Close() }()

	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != w.path || !ev.Op.Has(fsnotify.Write) && !ev.Op.Has(fsnotify.Create) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			if _, err := w.Refresh(ctx); err != nil && ctx.Err() == nil {
				w.log.Warn("failed to read render queue after change",
					logger.String("path", w.path),
					logger.Error(err))
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.log.Error("file watcher error", logger.Error(err))

		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// State reports the size of the indexed queue and when it was last read.
// LastRefresh is nil until the first successful Refresh.
func (w *QueueWatcher) State() State {
	st := State{Items: w.index.Count()}
	if t := w.index.LastUpdate(); !t.IsZero() {
		st.LastRefresh = &t
	}
	return st
}

// Refresh reads the queue, updates the index and reports completions. A
// corrupt queue is returned as an error and leaves the index untouched.
func (w *QueueWatcher) Refresh(ctx context.Context) ([]domain.QueueItem, error) {
	items, err := w.queue.Load(ctx)
	if err != nil {
		return nil, err
	}

	completed := w.index.Update(items)
	if w.observer != nil {
		w.observer.ObserveQueue(domain.Summarize(items))
		if len(completed) > 0 {
			w.observer.QueueCompleted(len(completed))
		}
	}

	var errs []error
	for _, it := range completed {
		w.log.Info("render complete",
			logger.String("item_id", it.ID),
			logger.String("title", it.Idea.Title),
			logger.String("template", it.Template))
		if w.notifier == nil {
			continue
		}
		if err := w.notifier.Notify(ctx, domain.Event{
			Kind:   domain.EventRenderComplete,
			Title:  it.Idea.Title,
			IdeaID: it.Idea.ID,
			ItemID: it.ID,
			At:     w.now(),
		}); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		w.log.Debug("some render complete notifications failed",
			logger.Error(errors.Join(errs...)))
	}
	return completed, nil
}
