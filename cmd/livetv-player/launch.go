package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/snapetech/livetv-player/internal/player"
)

func newLaunchCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "launch [channel-id]",
		Short: "Run the player pipeline for one channel until it exits",
		Long: "launch resolves a mirror, gathers cookies and runs streamlink or ffplay in the\n" +
			"foreground. play and menu run it as a child process; its exit code is the pipeline's.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := a.cfg.DefaultChannel
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					a.log.WithField("arg", args[0]).Warnf("invalid channel id; using default %d", id)
				} else {
					id = n
				}
			}
			code := player.Run(cmd.Context(), player.Options{
				ChannelID:      id,
				Strategy:       a.cfg.Strategy,
				StreamlinkPath: a.cfg.StreamlinkPath,
				FFplayPath:     a.cfg.FFplayPath,
				PlayerPath:     a.cfg.PlayerPath,
				Headers:        a.streamHeaders(),
				Resolver:       a.resolver(),
				Credentials:    a.acquirer(),
				StopTimeout:    player.StopBudget(a.cfg.TerminateTimeout),
				Logger:         a.log,
			})
			if code != 0 {
				return &exitCodeError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&a.silent, "silent", false, "suppress log output (used when spawned by play or menu)")
	return cmd
}
