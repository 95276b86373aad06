package render

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrSnakeDoc/ideaboard/internal/logger"
)

const maxLogLine = 1 << 20

// ExecRunner starts the external renderer as a child process, e.g.
// `renderer --queue --limit 1`, inside the workspace.
type ExecRunner struct {
	Cmd     string
	Args    []string
	Dir     string
	Timeout time.Duration
	Log     logger.Logger
}

func (e *ExecRunner) Run(ctx context.Context) error {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, e.Cmd, e.Args...)
	cmd.Dir = e.Dir
	cmd.WaitDelay = 5 * time.Second

	outR, outW := io.Pipe()
	errR, errW := io.Pipe()
	cmd.Stdout = outW
	cmd.Stderr = errW

	var g errgroup.Group
	g.Go(func() error { return e.pipe(outR, "stdout") })
	g.Go(func() error { return e.pipe(errR, "stderr") })
	closePipes := func() {
		_ = outW.Close()
		_ = errW.Close()
	}

	if err := cmd.Start(); err != nil {
		closePipes()
		_ = g.Wait()
		return fmt.Errorf("failed to start renderer %s: %w", e.Cmd, err)
	}
	e.Log.Debug("renderer process started",
		logger.String("cmd", e.Cmd),
		logger.Strings("args", e.Args),
		logger.Int("pid", cmd.Process.Pid))

	waitErr := cmd.Wait()
	closePipes()
	pipeErr := g.Wait()

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("renderer timed out after %v: %w", e.Timeout, ctx.Err())
	case ctx.Err() != nil:
		return fmt.Errorf("renderer cancelled: %w", ctx.Err())
	case waitErr != nil:
		return fmt.Errorf("renderer exited: %w", waitErr)
	case pipeErr != nil:
		return fmt.Errorf("failed to read renderer output: %w", pipeErr)
	}
	return nil
}

func (e *ExecRunner) pipe(r io.Reader, stream string) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLogLine)
	for sc.Scan() {
		if stream == "stderr" {
			e.Log.Warn("renderer output", logger.String("stream", stream), logger.String("line", sc.Text()))
			continue
		}
		e.Log.Info("renderer output", logger.String("stream", stream), logger.String("line", sc.Text()))
	}
	if err := sc.Err(); err != nil {
		// keep the writer unblocked
		_, _ = io.Copy(io.Discard, r)
		return err
	}
	return nil
}
