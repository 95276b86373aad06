package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/MrSnakeDoc/ideaboard/internal/domain"
	"github.com/MrSnakeDoc/ideaboard/internal/logger"
	"github.com/MrSnakeDoc/ideaboard/internal/notify"
	"github.com/MrSnakeDoc/ideaboard/internal/sources/hackernews"
	store "github.com/MrSnakeDoc/ideaboard/internal/store/fs"
)

// StoryFetcher is implemented by hackernews.Client.
type StoryFetcher interface {
	Stories(ctx context.Context, limit int) ([]hackernews.Story, error)
}

// IdeaWriter is implemented by fs.IdeaStore. Create must fail with
// fs.ErrIdeaExists when the id is taken.
type IdeaWriter interface {
	Create(ctx context.Context, idea domain.Idea) (domain.Idea, error)
}

// ScanRecorder is implemented by metrics.Collector.
type ScanRecorder interface {
	ScoutFinished(created int, err error)
}

// ScoutOptions configures a TrendScout. Loader overrides Keywords and
// Limit when set.
type ScoutOptions struct {
	Keywords      []string
	Limit         int
	Interval      time.Duration
	Loader        *hackernews.Loader
	Notifier      notify.Notifier
	Recorder      ScanRecorder
	ManualTrigger chan struct{}
}

// ScanResult summarizes one scan.
type ScanResult struct {
	Scanned int `json:"scanned"`
	Matched int `json:"matched"`
	Created int `json:"created"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// TrendScout periodically turns keyword-matching Hacker News stories into
// ideas. Stories already on the board are left alone.
type TrendScout struct {
	fetcher  StoryFetcher
	ideas    IdeaWriter
	mapper   *hackernews.Mapper
	opts     ScoutOptions
	logger   logger.Logger
	now      func() time.Time
	scanMu   sync.Mutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewTrendScout(fetcher StoryFetcher, ideas IdeaWriter, log logger.Logger, opts ScoutOptions) *TrendScout {
	return &TrendScout{
		fetcher: fetcher,
		ideas:   ideas,
		mapper:  hackernews.NewMapper(),
		opts:    opts,
		logger:  log,
		now:     time.Now,
		stopCh:  make(chan struct{}),
	}
}

// Start scans once, then on every tick and manual trigger until Stop or
// ctx ends. A failing scan is logged; it never stops the loop.
func (ts *TrendScout) Start(ctx context.Context) {
	go func() {
		ts.scanAndLog(ctx, "initial")

		ticker := time.NewTicker(ts.opts.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				ts.scanAndLog(ctx, "scheduled")
			case <-ts.opts.ManualTrigger:
				ts.logger.Info("manual trend scout triggered")
				ts.scanAndLog(ctx, "manual")
			case <-ts.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the scan loop. It is safe to call more than once.
func (ts *TrendScout) Stop() {
	ts.stopOnce.Do(func() { close(ts.stopCh) })
}

func (ts *TrendScout) scanAndLog(ctx context.Context, reason string) {
	if _, err := ts.Scan(ctx); err != nil && ctx.Err() == nil {
		ts.logger.Error("trend scout scan failed",
			logger.String("reason", reason),
			logger.Error(err))
	}
}

// Scan runs one scan. Scans never overlap.
func (ts *TrendScout) Scan(ctx context.Context) (res ScanResult, err error) {
	ts.scanMu.Lock()
	defer ts.scanMu.Unlock()

	defer func() {
		if ts.opts.Recorder != nil {
			ts.opts.Recorder.ScoutFinished(res.Created, err)
		}
	}()

	keywords, limit := ts.opts.Keywords, ts.opts.Limit
	if ts.opts.Loader != nil {
		f, err := ts.opts.Loader.Load()
		if err != nil {
			return res, err
		}
		keywords = f.Keywords
		if f.Limit > 0 {
			limit = f.Limit
		}
	}

	start := time.Now()
	stories, err := ts.fetcher.Stories(ctx, limit)
	if err != nil {
		return res, err
	}
	res.Scanned = len(stories)

	matched := hackernews.Filter(stories, keywords)
	res.Matched = len(matched)

	now := ts.now()
	for _, story := range matched {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		created, err := ts.saveNew(ctx, story, now)
		switch {
		case err != nil:
			res.Failed++
			ts.logger.Warn("failed to save trending story",
				logger.Int64("hn_id", story.ID),
				logger.Error(err))
		case created:
			res.Created++
		default:
			res.Skipped++
		}
	}

	ts.logger.Info("trend scout scan completed",
		logger.Int("scanned", res.Scanned),
		logger.Int("matched", res.Matched),
		logger.Int("created", res.Created),
		logger.Int("skipped", res.Skipped),
		logger.Int("failed", res.Failed),
		logger.Duration("duration", time.Since(start)))
	return res, nil
}

func (ts *TrendScout) saveNew(ctx context.Context, story hackernews.Story, now time.Time) (bool, error) {
	idea, err := ts.ideas.Create(ctx, ts.mapper.ToIdea(story, now))
	if errors.Is(err, store.ErrIdeaExists) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to save idea: %w", err)
	}

	if ts.opts.Notifier != nil {
		_ = ts.opts.Notifier.Notify(ctx, domain.Event{
			Kind:   domain.EventNewIdea,
			Title:  idea.Title,
			IdeaID: idea.ID,
			At:     now,
		})
	}
	return true, nil
}
