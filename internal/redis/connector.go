package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/ideaboard/internal/config"
	"github.com/MrSnakeDoc/ideaboard/internal/logger"
)

// ConnectOptions describes the client and how long New keeps trying.
type ConnectOptions struct {
	Addr     string // ex: "localhost:6379"
	User     string
	Password string
	RedisDB  int
	PoolSize int

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	ConnectTimeout time.Duration // budget for all attempts (ex: 30s)
	RetryInterval  time.Duration // first pause, doubled after each failure (ex: 2s)
	MaxWait        time.Duration // pause cap (ex: 10s)
	PingTimeout    time.Duration // per attempt (ex: 2s)
	WarnThreshold  int           // attempts logged at warn before switching to error
}

// OptionsFromConfig maps the IDEABOARD_REDIS_* settings.
func OptionsFromConfig(cfg *config.Config) ConnectOptions {
	return ConnectOptions{
		Addr:           cfg.RedisAddr,
		User:           cfg.RedisUser,
		Password:       cfg.RedisPassword,
		RedisDB:        cfg.RedisDB,
		PoolSize:       cfg.RedisPoolSize,
		DialTimeout:    cfg.RedisDT,
		ReadTimeout:    cfg.RedisRT,
		WriteTimeout:   cfg.RedisWT,
		ConnectTimeout: cfg.RedisConnectTimeout,
		RetryInterval:  cfg.RedisRetryInterval,
		MaxWait:        cfg.RedisMaxWait,
		PingTimeout:    cfg.RedisPingTimeout,
		WarnThreshold:  cfg.RedisWarnThreshold,
	}
}

func (o ConnectOptions) validate() error {
	var errs []error
	if o.Addr == "" {
		errs = append(errs, errors.New("Addr must not be empty"))
	}
	for _, d := range []struct {
		name string
		val  time.Duration
	}{
		{"ConnectTimeout", o.ConnectTimeout},
		{"RetryInterval", o.RetryInterval},
		{"MaxWait", o.MaxWait},
		{"PingTimeout", o.PingTimeout},
	} {
		if d.val <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %v", d.name, d.val))
		}
	}
	if o.WarnThreshold < 0 {
		errs = append(errs, fmt.Errorf("WarnThreshold must be >= 0, got %d", o.WarnThreshold))
	}
	return errors.Join(errs...)
}

// connectionLogger reports connection attempts for one address.
type connectionLogger struct {
	logger logger.Logger
}

func (cl *connectionLogger) validateOptions(opts ConnectOptions) error {
	if err := opts.validate(); err != nil {
		cl.logger.Error("invalid redis options", logger.Error(err))
		return fmt.Errorf("invalid redis options: %w", err)
	}
	return nil
}

// attemptFailed picks the level from how the retry loop is going: warn for
// the first few attempts, error once they pile up or the budget runs out.
func (cl *connectionLogger) attemptFailed(addr string, attempt, warnThreshold int, remaining, next time.Duration, err error) {
	fields := []logger.Field{
		logger.String("addr", addr),
		logger.Int("attempt", attempt),
		logger.Duration("next_retry_in", next),
		logger.Duration("remaining", remaining),
		logger.Error(err),
	}
	if attempt <= warnThreshold && remaining >= 10*time.Second {
		cl.logger.Warn("redis connection failed, retrying", fields...)
		return
	}
	cl.logger.Error("redis still unavailable, retrying", fields...)
}

// New builds a client and pings it until it answers, ConnectTimeout
// elapses or ctx is done. The signal list is the only user, and the caller
// decides whether a failure is fatal.
func New(ctx context.Context, opts ConnectOptions, log logger.Logger) (*redis.Client, error) {
	cl := &connectionLogger{logger: log}
	if err := cl.validateOptions(opts); err != nil {
		return nil, err
	}

	client := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Username:     opts.User,
		Password:     opts.Password,
		DB:           opts.RedisDB,
		DialTimeout:  opts.DialTimeout,
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
		PoolSize:     opts.PoolSize,
	})

	if err := waitReady(ctx, client, opts, cl); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

func waitReady(parent context.Context, client *redis.Client, opts ConnectOptions, cl *connectionLogger) error {
	ctx, cancel := context.WithTimeout(parent, opts.ConnectTimeout)
	defer cancel()

	start := time.Now()
	wait := opts.RetryInterval
	cl.logger.Info("connecting to redis",
		logger.String("addr", opts.Addr),
		logger.Duration("timeout", opts.ConnectTimeout))

	for attempt := 1; ; attempt++ {
		pingCtx, pingCancel := context.WithTimeout(ctx, opts.PingTimeout)
		err := client.Ping(pingCtx).Err()
		pingCancel()

		if err == nil {
			cl.logger.Info("connected to redis",
				logger.String("addr", opts.Addr),
				logger.Int("attempts", attempt),
				logger.Duration("elapsed", time.Since(start)))
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			cl.logger.Error("redis unavailable, giving up",
				logger.String("addr", opts.Addr),
				logger.Int("attempts", attempt),
				logger.Error(err))
			return fmt.Errorf("redis unavailable at %s after %d attempts (timeout: %v): %w",
				opts.Addr, attempt, opts.ConnectTimeout, err)
		case <-timer.C:
			cl.attemptFailed(opts.Addr, attempt, opts.WarnThreshold, timeLeft(ctx), wait, err)
			wait = nextWait(wait, opts.MaxWait)
		}
	}
}

// nextWait doubles the wait, capped at limit.
func nextWait(wait, limit time.Duration) time.Duration {
	wait *= 2
	if wait > limit {
		return limit
	}
	return wait
}

func timeLeft(ctx context.Context) time.Duration {
	deadline, ok := ctx.Deadline()
	if !ok {
		return 0
	}
	return time.Until(deadline)
}
