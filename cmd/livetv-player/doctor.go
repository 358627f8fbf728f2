package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/snapetech/livetv-player/internal/config"
	"github.com/snapetech/livetv-player/internal/health"
	"github.com/snapetech/livetv-player/internal/listing"
	"github.com/snapetech/livetv-player/internal/player"
)

func newDoctorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the listing site, the config and the external programs playback needs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()
			problems := 0
			report := func(label string, err error) {
				if err != nil {
					problems++
					fmt.Fprintf(out, "FAIL  %s: %v\n", label, err)
					return
				}
				fmt.Fprintf(out, "ok    %s\n", label)
			}

			// Config was validated before any command ran.
			report("config", nil)

			r := a.retriever(ctx)
			report("listing site "+r.BaseURL(), health.CheckSource(ctx, r.BaseURL(), a.cfg.ListingUserAgent))
			report("listing pages", health.CheckPages(ctx, r.BaseURL(), a.cfg.ListingUserAgent, listing.ChannelsPath, listing.SchedulePath))

			var bins []health.Binary
			switch a.cfg.Strategy {
			case config.StrategyHeadless:
				bins = append(bins, health.Binary{Label: "ffplay", Name: a.cfg.FFplayPath, Hint: "install ffmpeg"})
			default:
				bins = append(bins, health.Binary{Label: "streamlink", Name: a.cfg.StreamlinkPath, Hint: "pip install streamlink"})
			}
			paths, errs := health.CheckBinaries(player.DefaultFinder().Binary, bins)
			for i, b := range bins {
				if errs[i] != nil {
					report(b.Label, errs[i])
				} else {
					report(b.Label+" ("+paths[i]+")", nil)
				}
			}
			if a.cfg.Strategy == config.StrategyStreamlink {
				if p := player.DefaultFinder().Player(a.cfg.PlayerPath); p != "" {
					report("media player ("+p+")", nil)
				} else {
					report("media player", fmt.Errorf("mpv or VLC not found; install mpv (recommended) or VLC"))
				}
			}

			start := time.Now()
			res := a.resolver().Resolve(ctx, a.cfg.DefaultChannel)
			label := fmt.Sprintf("mirror for channel %d (%s, %s)", a.cfg.DefaultChannel, res.Source, time.Since(start).Round(time.Millisecond))
			if res.Verified() {
				report(label, nil)
			} else {
				report(label, fmt.Errorf("no mirror answered; %s is an unverified guess", res.URL))
			}

			if problems > 0 {
				return &exitCodeError{code: 1}
			}
			return nil
		},
	}
}
