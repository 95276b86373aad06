package main

import (
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/ideaboard/internal/app"
)

func newScoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scout",
		Short: "Scan Hacker News once and save matching stories as ideas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withApp(cmd.Context(), func(a *app.App) error {
				res, err := a.Scan(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), res)
			})
		},
	}
}
