package notify

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/MrSnakeDoc/ideaboard/internal/domain"
	"github.com/MrSnakeDoc/ideaboard/internal/logger"
)

// Notifier delivers an event to one sink.
type Notifier interface {
	Notify(ctx context.Context, ev domain.Event) error
}

// ─────────────────────────────────────────────────────────────────
// Signal file
// ─────────────────────────────────────────────────────────────────

// SignalFile is the single-slot "new idea" mailbox: every new-idea event
// overwrites the previous one. Other kinds are ignored so they never
// replace an unread new-idea signal; they still reach the other sinks.
type SignalFile struct {
	fs   afero.Fs
	path string
}

func NewSignalFile(fsys afero.Fs, path string) *SignalFile {
	return &SignalFile{fs: fsys, path: path}
}

func (s *SignalFile) Notify(ctx context.Context, ev domain.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.Kind != domain.EventNewIdea {
		return nil
	}
	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create signal dir: %w", err)
	}
	if err := afero.WriteFile(s.fs, s.path, []byte(ev.Text()), os.FileMode(0o644)); err != nil {
		return fmt.Errorf("failed to write signal file %s: %w", s.path, err)
	}
	return nil
}

// ─────────────────────────────────────────────────────────────────
// Redis list
// ─────────────────────────────────────────────────────────────────

// SignalPusher is implemented by the redis store.
type SignalPusher interface {
	PushSignal(ctx context.Context, ev domain.Event, capacity int64) error
}

// RedisList keeps the last capacity events in a Redis list, so several
// consumers can read the backlog instead of racing on one file.
type RedisList struct {
	store    SignalPusher
	capacity int64
}

func NewRedisList(store SignalPusher, capacity int64) *RedisList {
	return &RedisList{store: store, capacity: capacity}
}

func (r *RedisList) Notify(ctx context.Context, ev domain.Event) error {
	return r.store.PushSignal(ctx, ev, r.capacity)
}

// ─────────────────────────────────────────────────────────────────
// Fan-out
// ─────────────────────────────────────────────────────────────────

// Fanout delivers every event to all sinks, even when some of them fail.
type Fanout struct {
	sinks []Notifier
	log   logger.Logger
}

func NewFanout(log logger.Logger, sinks ...Notifier) *Fanout {
	return &Fanout{sinks: sinks, log: log}
}

// Notify returns the joined sink errors. Each failure is also logged, so
// callers that only care about the originating operation may ignore it.
func (f *Fanout) Notify(ctx context.Context, ev domain.Event) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Notify(ctx, ev); err != nil {
			f.log.Warn("notification failed",
				logger.String("sink", fmt.Sprintf("%T", s)),
				logger.String("kind", string(ev.Kind)),
				logger.Error(err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
