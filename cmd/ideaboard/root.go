package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/ideaboard/internal/app"
	"github.com/MrSnakeDoc/ideaboard/internal/config"
	"github.com/MrSnakeDoc/ideaboard/internal/logger"
)

type rootOptions struct {
	configFile string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "ideaboard",
		Short:         "Content idea board backend",
		Long:          "ideaboard stores content ideas as files, keeps a render queue for an external renderer and scouts Hacker News for trending topics.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file (default is $IDEABOARD_CONFIG or ./ideaboard.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	cmd.AddCommand(
		newServeCmd(opts),
		newScoutCmd(opts),
		newQueueCmd(opts),
		newSignalsCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads the configuration and builds the logger.
func (o *rootOptions) load() (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(o.configFile)
	if err != nil {
		return nil, nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, logger.New(cfg.LogLevel, cfg.PrettyLog), nil
}

// withApp builds the app, runs fn and releases it.
func (o *rootOptions) withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, log, err := o.load()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
