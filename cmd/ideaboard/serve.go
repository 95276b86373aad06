package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/ideaboard/internal/app"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and background workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(context.Background(), func(a *app.App) error {
				return a.Run()
			})
		},
	}
}
