package scheduler

import (
	"context"
	"errors"
	iofs "io/fs"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/afero"

	"github.com/MrSnakeDoc/ideaboard/internal/logger"
	store "github.com/MrSnakeDoc/ideaboard/internal/store/fs"
)

const (
	// DefaultSweepThreshold is the age after which a temp file is considered abandoned.
	DefaultSweepThreshold = time.Hour
)

// TempSweeper removes temp files left behind by interrupted atomic writes.
type TempSweeper struct {
	fs        afero.Fs
	dirs      []string
	logger    logger.Logger
	interval  time.Duration
	threshold time.Duration
	now       func() time.Time
	stopCh    chan struct{}
	stopOnce  sync.Once
}

func NewTempSweeper(
	fsys afero.Fs,
	dirs []string,
	log logger.Logger,
	interval time.Duration,
	threshold time.Duration,
) *TempSweeper {
	if threshold == 0 {
		threshold = DefaultSweepThreshold
	}

	return &TempSweeper{
		fs:        fsys,
		dirs:      dirs,
		logger:    log,
		interval:  interval,
		threshold: threshold,
		now:       time.Now,
		stopCh:    make(chan struct{}),
	}
}

// Start sweeps immediately, then on every tick.
func (s *TempSweeper) Start(ctx context.Context) {
	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Warn("initial temp sweep failed",
			logger.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if _, err := s.Sweep(ctx); err != nil {
					s.logger.Error("temp sweep failed",
						logger.Error(err))
				}
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (s *TempSweeper) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// Sweep removes stale temp files from every directory (not recursive).
// Missing directories are ignored.
func (s *TempSweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	removed := 0
	var errs []error

	for _, dir := range s.dirs {
		entries, err := afero.ReadDir(s.fs, dir)
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				continue
			}
			errs = append(errs, err)
			continue
		}

		for _, e := range entries {
			if err := ctx.Err(); err != nil {
				return removed, err
			}
			if e.IsDir() || !store.IsTempFile(e.Name()) {
				continue
			}
			age := now.Sub(e.ModTime())
			if age < s.threshold {
				continue
			}

			path := filepath.Join(dir, e.Name())
			if err := s.fs.Remove(path); err != nil && !errors.Is(err, iofs.ErrNotExist) {
				errs = append(errs, err)
				continue
			}
			s.logger.Info("removed stale temp file",
				logger.String("path", path),
				logger.Duration("age", age))
			removed++
		}
	}

	if removed > 0 {
		s.logger.Info("temp sweep completed",
			logger.Int("removed", removed))
	} else {
		s.logger.Debug("no temp files to sweep")
	}
	return removed, errors.Join(errs...)
}
