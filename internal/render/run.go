package render

import (
	"context"
	"sync"
	"time"
)

// Run is one renderer invocation. It is returned by Trigger before it
// starts; callers may wait on it or drop it.
type Run struct {
	ID     string
	Queued time.Time

	mu       sync.Mutex
	started  time.Time
	finished time.Time
	err      error
	done     chan struct{}
}

func newRun(id string, now time.Time) *Run {
	return &Run{ID: id, Queued: now, done: make(chan struct{})}
}

// Done is closed once the run has finished, successfully or not.
func (r *Run) Done() <-chan struct{} { return r.done }

// Wait blocks until the run finishes or ctx is done. It returns the run
// error in the first case and ctx.Err() in the second.
func (r *Run) Wait(ctx context.Context) error {
	select {
	case <-r.done:
		return r.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err is nil until the run has finished.
func (r *Run) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.err
}

func (r *Run) Started() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started
}

func (r *Run) Finished() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.finished
}

func (r *Run) markStarted(now time.Time) {
	r.mu.Lock()
	r.started = now
	r.mu.Unlock()
}

func (r *Run) finish(now time.Time, err error) {
	r.mu.Lock()
	r.finished = now
	r.err = err
	r.mu.Unlock()
	close(r.done)
}

// RunInfo is the JSON view of a Run.
type RunInfo struct {
	ID         string     `json:"id"`
	QueuedAt   time.Time  `json:"queued_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	DurationMS int64      `json:"duration_ms,omitempty"`
	Error      string     `json:"error,omitempty"`
}

// Info snapshots the run.
func (r *Run) Info() RunInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	info := RunInfo{ID: r.ID, QueuedAt: r.Queued}
	if !r.started.IsZero() {
		s := r.started
		info.StartedAt = &s
	}
	if !r.finished.IsZero() {
		f := r.finished
		info.FinishedAt = &f
		if !r.started.IsZero() {
			info.DurationMS = f.Sub(r.started).Milliseconds()
		}
	}
	if r.err != nil {
		info.Error = r.err.Error()
	}
	return info
}
