package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment key, e.g. IDEABOARD_LISTEN_ADDR.
const EnvPrefix = "IDEABOARD"

type Config struct {
	ListenAddr      string        // ex: ":3001"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request deadline applied by the router
	MaxBodyBytes    int64         // request body cap for JSON endpoints

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Workspace layout. Relative paths below are resolved against Workspace.
	Workspace              string
	IdeasDir               string // ex: <workspace>/content/ideas
	QueueFile              string // ex: <workspace>/render_queue.json
	SignalFile             string // ex: <workspace>/.new_idea_signal
	DefaultTemplate        string // template stored when an enqueue names none
	QuarantineCorruptQueue bool   // true => move a corrupt queue aside at boot, false => refuse to start

	// External renderer
	RendererCmd   string        // binary invoked by /api/render/process
	RendererArgs  []string      // ex: ["--queue", "--limit", "1"]
	RenderTimeout time.Duration // hard cap for one renderer run

	// Queue watcher
	WatchQueue    bool
	WatchDebounce time.Duration

	// Trend scout (Hacker News)
	ScoutEnabled     bool
	ScoutInterval    time.Duration
	ScoutFile        string   // optional yaml file with keywords/limit, overrides ScoutKeywords
	ScoutKeywords    []string // case-insensitive title keywords
	ScoutLimit       int      // number of top stories to scan
	ScoutConcurrency int      // parallel item fetches
	HNBaseURL        string
	HNTimeout        time.Duration

	// Temp file sweeper
	SweepInterval  time.Duration
	SweepThreshold time.Duration

	// Redis signal list (optional, empty RedisAddr = disabled)
	RedisAddr           string
	RedisUser           string
	RedisPassword       string
	RedisDB             int
	RedisDT             time.Duration // dial timeout
	RedisRT             time.Duration // read timeout
	RedisWT             time.Duration // write timeout
	RedisPoolSize       int
	RedisConnectTimeout time.Duration // total time to retry connecting
	RedisRetryInterval  time.Duration // initial wait between retries, grows exponentially
	RedisMaxWait        time.Duration // max wait between retries
	RedisPingTimeout    time.Duration
	RedisWarnThreshold  int
	SignalListCap       int64 // max events kept in the redis list

	// Access restrictions
	AllowedCIDRS    []string // admin endpoints only, empty = no filtering
	AllowedHosts    []string // admin endpoints only, supports *.example.com
	TrustProxy      bool     // true => trust X-Forwarded-For headers
	RateLimitBurst  int      // write endpoints, per client IP
	RateLimitPerMin int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":3001")
	v.SetDefault("shutdown_timeout", 5*time.Second)
	v.SetDefault("request_timeout", 10*time.Second)
	v.SetDefault("max_body_bytes", int64(1<<20))

	v.SetDefault("log_level", "info")
	v.SetDefault("pretty_log", true)

	v.SetDefault("workspace", ".")
	v.SetDefault("ideas_dir", filepath.Join("content", "ideas"))
	v.SetDefault("queue_file", "render_queue.json")
	v.SetDefault("signal_file", ".new_idea_signal")
	v.SetDefault("default_template", "default")
	v.SetDefault("quarantine_corrupt_queue", true)

	v.SetDefault("renderer_cmd", "renderer")
	v.SetDefault("renderer_args", []string{"--queue", "--limit", "1"})
	v.SetDefault("render_timeout", 10*time.Minute)

	v.SetDefault("watch_queue", true)
	v.SetDefault("watch_debounce", 250*time.Millisecond)

	v.SetDefault("scout_enabled", false)
	v.SetDefault("scout_interval", 6*time.Hour)
	v.SetDefault("scout_file", "")
	v.SetDefault("scout_keywords", []string{"AI", "LLM", "GPT", "Agent", "Claude", "OpenAI", "Anthropic", "Nvidia", "Codex"})
	v.SetDefault("scout_limit", 100)
	v.SetDefault("scout_concurrency", 8)
	v.SetDefault("hn_base_url", "https://hacker-news.firebaseio.com/v0")
	v.SetDefault("hn_timeout", 10*time.Second)

	v.SetDefault("sweep_interval", time.Hour)
	v.SetDefault("sweep_threshold", time.Hour)

	v.SetDefault("redis_addr", "")
	v.SetDefault("redis_username", "")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_dial_timeout", 5*time.Second)
	v.SetDefault("redis_read_timeout", 3*time.Second)
	v.SetDefault("redis_write_timeout", 3*time.Second)
	v.SetDefault("redis_pool_size", 10)
	v.SetDefault("redis_connect_timeout", 30*time.Second)
	v.SetDefault("redis_retry_interval", 2*time.Second)
	v.SetDefault("redis_max_wait", 10*time.Second)
	v.SetDefault("redis_ping_timeout", 5*time.Second)
	v.SetDefault("redis_warn_threshold", 3)
	v.SetDefault("signal_list_cap", int64(100))

	v.SetDefault("allowed_cidrs", "")
	v.SetDefault("allowed_hosts", "")
	v.SetDefault("trust_proxy", false)
	v.SetDefault("rate_limit_burst", 30)
	v.SetDefault("rate_limit_per_min", 120)
}

// Load reads .env (if any), the optional config file and IDEABOARD_*
// environment variables, in increasing order of precedence for the latter two.
// configFile may be empty, in which case IDEABOARD_CONFIG or ./ideaboard.yaml
// is used when present.
func Load(configFile string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile == "" {
		configFile = v.GetString("config")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("ideaboard")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	workspace := v.GetString("workspace")

	cfg := &Config{
		ListenAddr:      v.GetString("listen_addr"),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		RequestTimeout:  v.GetDuration("request_timeout"),
		MaxBodyBytes:    v.GetInt64("max_body_bytes"),

		LogLevel:  strings.ToLower(v.GetString("log_level")),
		PrettyLog: v.GetBool("pretty_log"),

		Workspace:              workspace,
		IdeasDir:               resolvePath(workspace, v.GetString("ideas_dir")),
		QueueFile:              resolvePath(workspace, v.GetString("queue_file")),
		SignalFile:             resolvePath(workspace, v.GetString("signal_file")),
		DefaultTemplate:        v.GetString("default_template"),
		QuarantineCorruptQueue: v.GetBool("quarantine_corrupt_queue"),

		RendererCmd:   v.GetString("renderer_cmd"),
		RendererArgs:  stringList(v, "renderer_args"),
		RenderTimeout: v.GetDuration("render_timeout"),

		WatchQueue:    v.GetBool("watch_queue"),
		WatchDebounce: v.GetDuration("watch_debounce"),

		ScoutEnabled:     v.GetBool("scout_enabled"),
		ScoutInterval:    v.GetDuration("scout_interval"),
		ScoutFile:        v.GetString("scout_file"),
		ScoutKeywords:    stringList(v, "scout_keywords"),
		ScoutLimit:       v.GetInt("scout_limit"),
		ScoutConcurrency: v.GetInt("scout_concurrency"),
		HNBaseURL:        strings.TrimRight(v.GetString("hn_base_url"), "/"),
		HNTimeout:        v.GetDuration("hn_timeout"),

		SweepInterval:  v.GetDuration("sweep_interval"),
		SweepThreshold: v.GetDuration("sweep_threshold"),

		RedisAddr:           v.GetString("redis_addr"),
		RedisUser:           v.GetString("redis_username"),
		RedisPassword:       v.GetString("redis_password"),
		RedisDB:             v.GetInt("redis_db"),
		RedisDT:             v.GetDuration("redis_dial_timeout"),
		RedisRT:             v.GetDuration("redis_read_timeout"),
		RedisWT:             v.GetDuration("redis_write_timeout"),
		RedisPoolSize:       v.GetInt("redis_pool_size"),
		RedisConnectTimeout: v.GetDuration("redis_connect_timeout"),
		RedisRetryInterval:  v.GetDuration("redis_retry_interval"),
		RedisMaxWait:        v.GetDuration("redis_max_wait"),
		RedisPingTimeout:    v.GetDuration("redis_ping_timeout"),
		RedisWarnThreshold:  v.GetInt("redis_warn_threshold"),
		SignalListCap:       v.GetInt64("signal_list_cap"),

		AllowedCIDRS:    stringList(v, "allowed_cidrs"),
		AllowedHosts:    stringList(v, "allowed_hosts"),
		TrustProxy:      v.GetBool("trust_proxy"),
		RateLimitBurst:  v.GetInt("rate_limit_burst"),
		RateLimitPerMin: v.GetInt("rate_limit_per_min"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	var errs []error
	if c.ListenAddr == "" {
		errs = append(errs, errors.New("listen_addr must not be empty"))
	}
	if c.Workspace == "" {
		errs = append(errs, errors.New("workspace must not be empty"))
	}
	if c.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("max_body_bytes must be > 0, got %d", c.MaxBodyBytes))
	}

	positive := map[string]time.Duration{
		"shutdown_timeout": c.ShutdownTimeout,
		"request_timeout":  c.RequestTimeout,
		"render_timeout":   c.RenderTimeout,
		"sweep_interval":   c.SweepInterval,
		"sweep_threshold":  c.SweepThreshold,
	}
	if c.WatchQueue {
		positive["watch_debounce"] = c.WatchDebounce
	}
	if c.ScoutEnabled {
		positive["scout_interval"] = c.ScoutInterval
		positive["hn_timeout"] = c.HNTimeout
		if c.ScoutLimit <= 0 {
			errs = append(errs, fmt.Errorf("scout_limit must be > 0, got %d", c.ScoutLimit))
		}
		if c.ScoutFile == "" && len(c.ScoutKeywords) == 0 {
			errs = append(errs, errors.New("scout_keywords or scout_file is required when the scout is enabled"))
		}
	}
	if c.RedisAddr != "" && c.SignalListCap <= 0 {
		errs = append(errs, fmt.Errorf("signal_list_cap must be > 0, got %d", c.SignalListCap))
	}
	for key, d := range positive {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be > 0, got %v", key, d))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Redacted returns a copy safe to log.
func (c Config) Redacted() Config {
	if c.RedisPassword != "" {
		c.RedisPassword = "***REDACTED***"
	}
	if c.RedisUser != "" {
		c.RedisUser = "***REDACTED***"
	}
	return c
}

// helpers

func resolvePath(base, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(base, p)
}

// stringList accepts both a yaml list and a comma separated env value.
func stringList(v *viper.Viper, key string) []string {
	switch raw := v.Get(key).(type) {
	case []string:
		return trimAll(raw)
	case []interface{}:
		out := make([]string, 0, len(raw))
		for _, item := range raw {
			out = append(out, fmt.Sprint(item))
		}
		return trimAll(out)
	default:
		return splitAndTrim(v.GetString(key))
	}
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.Trim(strings.TrimSpace(s), `"'`); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	return trimAll(strings.Split(s, ","))
}
