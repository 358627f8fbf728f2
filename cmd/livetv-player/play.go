package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/snapetech/livetv-player/internal/playback"
)

func newPlayCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "play <channel-id>",
		Short: "Play a channel until the stream ends or Ctrl-C",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("channel id %q: want a positive number", args[0])
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			m := a.manager()
			s, err := m.Start(ctx, id, nil)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Starting channel %d...\n", id)
			var failed error
			for ev := range s.Events() {
				switch e := ev.(type) {
				case playback.Started:
					fmt.Fprintf(out, "Playing channel %d (pid %d). Ctrl-C to stop.\n", e.ChannelID, e.PID)
				case playback.Failed:
					failed = e.Err
				case playback.Stopped:
					if failed == nil && ctx.Err() == nil {
						fmt.Fprintln(out, "Stream ended. If it stopped unexpectedly, retry with a VPN.")
					}
				}
			}
			if failed != nil {
				return failed
			}
			if ctx.Err() != nil {
				fmt.Fprintf(out, "Stopped channel %d.\n", id)
			}
			return nil
		},
	}
}
