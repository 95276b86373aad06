package main

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/ideaboard/internal/app"
)

func newQueueCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Print the render queue summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				summary, err := a.QueueSummary(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
}
