package render

import (
	"context"
	"errors"
	"os/exec"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/ideaboard/internal/logger"
)

// blockingRunner signals on entered and waits for release (or ctx).
type blockingRunner struct {
	entered chan struct{}
	release chan error
	calls   atomic.Int32
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{entered: make(chan struct{}, 10), release: make(chan error)}
}

func (b *blockingRunner) Run(ctx context.Context) error {
	b.calls.Add(1)
	b.entered <- struct{}{}
	select {
	case err := <-b.release:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

type recordingObserver struct {
	mu   sync.Mutex
	errs []error
}

func (o *recordingObserver) RenderFinished(_ time.Duration, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.errs = append(o.errs, err)
}

func waitEntered(t *testing.T, b *blockingRunner) {
	t.Helper()
	select {
	case <-b.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("runner was not started")
	}
}

func TestDispatcher_CoalescesQueuedTriggers(t *testing.T) {
	runner := newBlockingRunner()
	d := NewDispatcher(runner, logger.Nop())
	d.Start(context.Background())
	defer d.Stop()

	first, coalesced := d.Trigger()
	assert.False(t, coalesced)
	waitEntered(t, runner)

	second, coalesced := d.Trigger()
	assert.False(t, coalesced)
	third, coalesced := d.Trigger()
	assert.True(t, coalesced)
	assert.Same(t, second, third)
	assert.NotEqual(t, first.ID, second.ID)

	st := d.Status()
	require.NotNil(t, st.Running)
	require.NotNil(t, st.Queued)
	assert.Equal(t, first.ID, st.Running.ID)
	assert.Equal(t, second.ID, st.Queued.ID)

	runner.release <- nil
	waitEntered(t, runner)
	runner.release <- nil

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, first.Wait(ctx))
	require.NoError(t, third.Wait(ctx))
	assert.Equal(t, int32(2), runner.calls.Load())

	// bookkeeping happens right after the run future resolves
	d.Stop()
	st = d.Status()
	assert.Nil(t, st.Running)
	assert.Nil(t, st.Queued)
	require.NotNil(t, st.LastRun)
	assert.Equal(t, second.ID, st.LastRun.ID)
	assert.Equal(t, 2, st.TotalRuns)
}

func TestDispatcher_ReportsRunErrors(t *testing.T) {
	runner := newBlockingRunner()
	obs := &recordingObserver{}
	d := NewDispatcher(runner, logger.Nop(), WithObserver(obs))
	d.Start(context.Background())
	defer d.Stop()

	boom := errors.New("renderer exploded")
	run, _ := d.Trigger()
	waitEntered(t, runner)
	runner.release <- boom

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	assert.ErrorIs(t, run.Wait(ctx), boom)
	assert.ErrorIs(t, run.Err(), boom)
	assert.False(t, run.Started().IsZero())
	assert.False(t, run.Finished().Before(run.Started()))

	d.Stop()
	st := d.Status()
	require.NotNil(t, st.LastRun)
	assert.Equal(t, "renderer exploded", st.LastRun.Error)

	obs.mu.Lock()
	defer obs.mu.Unlock()
	require.Len(t, obs.errs, 1)
	assert.ErrorIs(t, obs.errs[0], boom)
}

func TestDispatcher_StopCancelsInFlightAndQueued(t *testing.T) {
	runner := newBlockingRunner()
	d := NewDispatcher(runner, logger.Nop())
	d.Start(context.Background())

	running, _ := d.Trigger()
	waitEntered(t, runner)
	queued, _ := d.Trigger()

	d.Stop()

	select {
	case <-running.Done():
	default:
		t.Fatal("running run should be finished after Stop")
	}
	assert.ErrorIs(t, running.Err(), context.Canceled)
	assert.ErrorIs(t, queued.Err(), ErrStopped)

	late, _ := d.Trigger()
	assert.ErrorIs(t, late.Err(), ErrStopped)

	// idempotent
	d.Stop()
}

func TestDispatcher_WaitHonorsContext(t *testing.T) {
	runner := newBlockingRunner()
	d := NewDispatcher(runner, logger.Nop())
	d.Start(context.Background())
	defer d.Stop()

	run, _ := d.Trigger()
	waitEntered(t, runner)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, run.Wait(ctx), context.DeadlineExceeded)
	assert.NoError(t, run.Err(), "run is still in flight")
}

func TestExecRunner(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}

	tests := []struct {
		name    string
		script  string
		timeout time.Duration
		wantErr string
	}{
		{name: "success", script: "echo rendering; echo warn >&2", timeout: 5 * time.Second},
		{name: "non-zero exit", script: "exit 3", timeout: 5 * time.Second, wantErr: "renderer exited"},
		{name: "timeout", script: "exec sleep 5", timeout: 50 * time.Millisecond, wantErr: "renderer timed out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &ExecRunner{
				Cmd:     "sh",
				Args:    []string{"-c", tt.script},
				Dir:     t.TempDir(),
				Timeout: tt.timeout,
				Log:     logger.Nop(),
			}
			err := r.Run(context.Background())
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExecRunner_MissingBinary(t *testing.T) {
	r := &ExecRunner{Cmd: "definitely-not-a-renderer-binary", Dir: t.TempDir(), Log: logger.Nop()}
	err := r.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to start renderer")
}
