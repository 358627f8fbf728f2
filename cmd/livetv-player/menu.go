package main

import (
	"github.com/spf13/cobra"

	"github.com/snapetech/livetv-player/internal/console"
)

func newMenuCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Browse listings and play channels interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := console.New(console.Config{
				In:     cmd.InOrStdin(),
				Out:    cmd.OutOrStdout(),
				Lister: a.retriever(cmd.Context()),
				Player: a.manager(),
				Logger: a.log,
			})
			return c.Run(cmd.Context())
		},
	}
}
