package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/ideaboard/internal/app"
)

func newSignalsCmd(opts *rootOptions) *cobra.Command {
	var limit int64

	cmd := &cobra.Command{
		Use:   "signals",
		Short: "Print the most recent events of the redis signal list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return fmt.Errorf("--limit must be > 0, got %d", limit)
			}
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				events, err := a.RecentSignals(cmd.Context(), limit)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				for _, ev := range events {
					fmt.Fprintf(out, "%s  %s\n", ev.At.Format("2006-01-02 15:04:05"), ev.Text())
				}
				return nil
			})
		},
	}
	cmd.Flags().Int64VarP(&limit, "limit", "n", 20, "number of events to print, newest first")
	return cmd
}
