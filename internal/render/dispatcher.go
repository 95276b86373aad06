package render

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MrSnakeDoc/ideaboard/internal/logger"
)

// ErrStopped finishes runs that were still queued when the dispatcher stopped.
var ErrStopped = errors.New("render dispatcher stopped")

// Runner performs one renderer pass over the queue.
type Runner interface {
	Run(ctx context.Context) error
}

// Observer is told about every finished run.
type Observer interface {
	RenderFinished(duration time.Duration, err error)
}

// Status is what /api/render/status reports.
type Status struct {
	Running   *RunInfo `json:"running"`
	Queued    *RunInfo `json:"queued"`
	LastRun   *RunInfo `json:"last_run"`
	TotalRuns int      `json:"total_runs"`
}

// Dispatcher runs the renderer in the background, one run at a time.
// While a run is waiting to start, further triggers join it instead of
// queueing more work, so at most one run executes and one waits.
type Dispatcher struct {
	runner   Runner
	log      logger.Logger
	observer Observer
	now      func() time.Time

	mu      sync.Mutex
	pending *Run
	running *Run
	last    *Run
	total   int
	closed  bool

	wake     chan struct{}
	cancel   context.CancelFunc
	stopped  chan struct{}
	stopOnce sync.Once
}

type Option func(*Dispatcher)

// WithObserver reports run durations and failures, e.g. to metrics.
func WithObserver(o Observer) Option {
	return func(d *Dispatcher) { d.observer = o }
}

func NewDispatcher(runner Runner, log logger.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		runner:  runner,
		log:     log,
		now:     time.Now,
		wake:    make(chan struct{}, 1),
		stopped: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches the worker goroutine. Runs are bound to ctx, not to the
// request that triggered them.
func (d *Dispatcher) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.mu.Lock()
	d.cancel = cancel
	d.mu.Unlock()

	go d.loop(ctx)
}

// Stop cancels the in-flight run, fails the queued one with ErrStopped and
// waits for the worker to exit.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.mu.Lock()
		cancel := d.cancel
		d.mu.Unlock()

		if cancel == nil {
			// never started
			d.drain()
			close(d.stopped)
			return
		}
		cancel()
		<-d.stopped
	})
}

// Trigger asks for a renderer run and returns immediately. coalesced is
// true when the returned run was already queued by an earlier trigger.
func (d *Dispatcher) Trigger() (run *Run, coalesced bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending != nil {
		return d.pending, true
	}

	run = newRun(newRunID(), d.now())
	if d.closed {
		run.finish(d.now(), ErrStopped)
		return run, false
	}

	d.pending = run
	select {
	case d.wake <- struct{}{}:
	default:
	}
	return run, false
}

// Status snapshots the dispatcher state.
func (d *Dispatcher) Status() Status {
	d.mu.Lock()
	defer d.mu.Unlock()

	st := Status{TotalRuns: d.total}
	if d.running != nil {
		info := d.running.Info()
		st.Running = &info
	}
	if d.pending != nil {
		info := d.pending.Info()
		st.Queued = &info
	}
	if d.last != nil {
		info := d.last.Info()
		st.LastRun = &info
	}
	return st
}

func (d *Dispatcher) loop(ctx context.Context) {
	defer close(d.stopped)

	for {
		select {
		case <-ctx.Done():
			d.drain()
			return
		case <-d.wake:
		}
		if ctx.Err() != nil {
			d.drain()
			return
		}

		d.mu.Lock()
		run := d.pending
		d.pending = nil
		if run != nil {
			d.running = run
			run.markStarted(d.now())
		}
		d.mu.Unlock()

		if run == nil {
			continue
		}
		d.execute(ctx, run)
	}
}

func (d *Dispatcher) execute(ctx context.Context, run *Run) {
	log := d.log.With(logger.String("run_id", run.ID))
	log.Info("renderer run started")

	err := d.runner.Run(ctx)
	run.finish(d.now(), err)

	d.mu.Lock()
	d.running = nil
	d.last = run
	d.total++
	d.mu.Unlock()

	elapsed := run.Finished().Sub(run.Started())
	if err != nil {
		log.Error("renderer run failed",
			logger.Duration("duration", elapsed),
			logger.Error(err))
	} else {
		log.Info("renderer run finished",
			logger.Duration("duration", elapsed))
	}
	if d.observer != nil {
		d.observer.RenderFinished(elapsed, err)
	}
}

func (d *Dispatcher) drain() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	if d.pending != nil {
		d.pending.finish(d.now(), ErrStopped)
		d.pending = nil
	}
}

func newRunID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
