package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/afero"

	"github.com/MrSnakeDoc/ideaboard/internal/config"
	"github.com/MrSnakeDoc/ideaboard/internal/domain"
	"github.com/MrSnakeDoc/ideaboard/internal/httpserver"
	"github.com/MrSnakeDoc/ideaboard/internal/httpserver/deps"
	"github.com/MrSnakeDoc/ideaboard/internal/index"
	"github.com/MrSnakeDoc/ideaboard/internal/logger"
	"github.com/MrSnakeDoc/ideaboard/internal/metrics"
	"github.com/MrSnakeDoc/ideaboard/internal/notify"
	"github.com/MrSnakeDoc/ideaboard/internal/redis"
	"github.com/MrSnakeDoc/ideaboard/internal/render"
	"github.com/MrSnakeDoc/ideaboard/internal/scheduler"
	"github.com/MrSnakeDoc/ideaboard/internal/sources/hackernews"
	store "github.com/MrSnakeDoc/ideaboard/internal/store/fs"
	redisstore "github.com/MrSnakeDoc/ideaboard/internal/store/redis"
	"github.com/MrSnakeDoc/ideaboard/internal/utils"
	"github.com/MrSnakeDoc/ideaboard/internal/version"
	"github.com/MrSnakeDoc/ideaboard/internal/watch"
)

type App struct {
	cfg    *config.Config
	logger logger.Logger
	fs     afero.Fs

	ideas      *store.IdeaStore
	queue      *store.Queue
	notifier   *notify.Fanout
	metrics    *metrics.Collector
	dispatcher *render.Dispatcher

	redisClient *goredis.Client
	redisStore  *redisstore.Store

	scout        *scheduler.TrendScout // nil when disabled
	scoutTrigger chan struct{}
	watcher      *watch.QueueWatcher // nil when disabled
	sweeper      *scheduler.TempSweeper
}

// New wires every component on the OS filesystem. When redis is configured
// it must be reachable: New retries for cfg.RedisConnectTimeout, then fails.
func New(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	return newApp(ctx, cfg, log, afero.NewOsFs())
}

func newApp(ctx context.Context, cfg *config.Config, log logger.Logger, fsys afero.Fs) (*App, error) {
	a := &App{
		cfg:     cfg,
		logger:  log,
		fs:      fsys,
		ideas:   store.NewIdeaStore(fsys, cfg.IdeasDir, log),
		queue:   store.NewQueue(fsys, cfg.QueueFile, cfg.DefaultTemplate, log),
		metrics: metrics.NewCollector(metrics.Namespace),
	}

	sinks := []notify.Notifier{notify.NewSignalFile(fsys, cfg.SignalFile)}
	if cfg.RedisAddr != "" {
		log.Infof("Connecting to Redis at %s", cfg.RedisAddr)
		client, err := redis.New(ctx, redis.OptionsFromConfig(cfg), log)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		a.redisClient = client
		a.redisStore = redisstore.NewStore(client)
		sinks = append(sinks, notify.NewRedisList(a.redisStore, cfg.SignalListCap))
		log.Info("Redis signal list enabled",
			logger.Int64("capacity", cfg.SignalListCap))
	} else {
		log.Info("redis not configured, notifications go to the signal file only")
	}
	a.notifier = notify.NewFanout(log, sinks...)

	a.dispatcher = render.NewDispatcher(&render.ExecRunner{
		Cmd:     cfg.RendererCmd,
		Args:    cfg.RendererArgs,
		Dir:     cfg.Workspace,
		Timeout: cfg.RenderTimeout,
		Log:     log.With(logger.String("component", "renderer")),
	}, log, render.WithObserver(a.metrics))

	if cfg.ScoutEnabled {
		a.scoutTrigger = make(chan struct{}, 1)
		a.scout = a.newTrendScout(a.scoutTrigger)
	}

	if cfg.WatchQueue {
		a.watcher = watch.NewQueueWatcher(
			a.queue,
			cfg.QueueFile,
			index.NewQueueIndex(),
			a.notifier,
			a.metrics,
			cfg.WatchDebounce,
			log.With(logger.String("component", "queue_watcher")),
		)
	}

	a.sweeper = scheduler.NewTempSweeper(fsys,
		[]string{cfg.IdeasDir, cfg.Workspace},
		log,
		cfg.SweepInterval,
		cfg.SweepThreshold,
	)

	return a, nil
}

func (a *App) newTrendScout(trigger chan struct{}) *scheduler.TrendScout {
	client := hackernews.NewClient(
		a.cfg.HNBaseURL,
		a.cfg.HNTimeout,
		a.cfg.ScoutConcurrency,
		hackernews.DefaultBreakerConfig(),
		a.logger.With(logger.String("component", "hackernews")),
	)

	opts := scheduler.ScoutOptions{
		Keywords:      a.cfg.ScoutKeywords,
		Limit:         a.cfg.ScoutLimit,
		Interval:      a.cfg.ScoutInterval,
		Notifier:      a.notifier,
		Recorder:      a.metrics,
		ManualTrigger: trigger,
	}
	if a.cfg.ScoutFile != "" {
		opts.Loader = hackernews.NewLoader(a.fs, a.cfg.ScoutFile)
	}
	return scheduler.NewTrendScout(client, a.ideas, a.logger, opts)
}

// PrepareWorkspace creates the ideas directory and checks the queue file.
// A corrupt queue is moved aside when quarantine is enabled, otherwise it
// is an error.
func (a *App) PrepareWorkspace(ctx context.Context) error {
	if err := a.ideas.Init(); err != nil {
		return err
	}

	_, err := a.queue.Load(ctx)
	switch {
	case err == nil:
		return nil
	case !errors.Is(err, store.ErrQueueCorrupt):
		return fmt.Errorf("failed to read render queue: %w", err)
	case !a.cfg.QuarantineCorruptQueue:
		return fmt.Errorf("%w (set IDEABOARD_QUARANTINE_CORRUPT_QUEUE=true to move it aside)", err)
	}

	moved, qerr := a.queue.Quarantine(ctx)
	if qerr != nil {
		return fmt.Errorf("failed to quarantine corrupt render queue: %w", qerr)
	}
	a.logger.Warn("corrupt render queue moved aside, starting with an empty queue",
		logger.String("path", a.cfg.QueueFile),
		logger.String("moved_to", moved),
		logger.Error(err))
	return nil
}

// Scan runs one trend scout scan outside the serve loop.
func (a *App) Scan(ctx context.Context) (scheduler.ScanResult, error) {
	if err := a.ideas.Init(); err != nil {
		return scheduler.ScanResult{}, err
	}
	scout := a.scout
	if scout == nil {
		scout = a.newTrendScout(nil)
	}
	return scout.Scan(ctx)
}

// QueueSummary reads the render queue.
func (a *App) QueueSummary(ctx context.Context) (domain.Summary, error) {
	return a.queue.Summarize(ctx)
}

// RecentSignals returns the newest events of the redis signal list.
func (a *App) RecentSignals(ctx context.Context, n int64) ([]domain.Event, error) {
	if a.redisStore == nil {
		return nil, errors.New("redis is not configured (set IDEABOARD_REDIS_ADDR)")
	}
	return a.redisStore.RecentSignals(ctx, n)
}

func (a *App) deps() deps.Deps {
	d := deps.Deps{
		Logger:       a.logger,
		StartTime:    time.Now(),
		Version:      version.Version,
		Commit:       version.Commit,
		BuildDate:    version.BuildDate,
		GoVersion:    version.GoVersion,
		TimeNow:      time.Now,
		AllowedHosts: a.cfg.AllowedHosts,
		AllowedCIDRS: a.cfg.AllowedCIDRS,
		TrustProxy:   a.cfg.TrustProxy,
		MaxBodyBytes: a.cfg.MaxBodyBytes,
		Ideas:        a.ideas,
		Queue:        a.queue,
		Dispatcher:   a.dispatcher,
		Notifier:     a.notifier,
		Metrics:      a.metrics,
		ScoutTrigger: a.scoutTrigger,
	}
	if a.redisStore != nil {
		d.RedisPing = a.redisStore.Ping
	}
	if a.watcher != nil {
		d.Watcher = a.watcher
	}
	return d
}

// Run serves HTTP and runs the background workers until SIGINT/SIGTERM.
func (a *App) Run() error {
	a.logger.Infof("Starting ideaboard %s on %s", version.Version, a.cfg.ListenAddr)
	a.logger.Info(version.String())
	a.logger.Debugf("configuration: %+v", a.cfg.Redacted())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := a.PrepareWorkspace(ctx); err != nil {
		return err
	}

	a.dispatcher.Start(ctx)
	a.logger.Info("render dispatcher started",
		logger.String("renderer", a.cfg.RendererCmd),
		logger.Strings("args", a.cfg.RendererArgs),
		logger.Duration("timeout", a.cfg.RenderTimeout))

	if a.scout != nil {
		a.scout.Start(ctx)
		a.logger.Info("trend scout started",
			logger.Duration("interval", a.cfg.ScoutInterval))
	} else {
		a.logger.Info("trend scout disabled")
	}

	if a.watcher != nil {
		if err := a.watcher.Start(ctx); err != nil {
			// the board works without completion events
			a.logger.Warn("queue watcher disabled", logger.Error(err))
			a.watcher = nil
		}
	}

	a.sweeper.Start(ctx)
	a.logger.Info("temp sweeper started",
		logger.Duration("interval", a.cfg.SweepInterval),
		logger.Duration("threshold", a.cfg.SweepThreshold))

	server := httpserver.New(a.cfg, a.logger, a.deps())

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- fmt.Errorf("http server error: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("Shutting down gracefully...")
	case runErr = <-errCh:
	}

	if a.scout != nil {
		a.scout.Stop()
	}
	if a.watcher != nil {
		a.watcher.Stop()
	}
	a.sweeper.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to stop server: %w", err)
	}

	// cancels an in-flight renderer run
	a.dispatcher.Stop()

	a.Close()
	if runErr == nil {
		a.logger.Info("ideaboard stopped cleanly")
	}
	return runErr
}

// Close releases the redis connection, if any.
func (a *App) Close() {
	if a.redisClient != nil {
		utils.CloseLogged(a.redisClient, a.logger, "redis")
		a.redisClient = nil
	}
}
