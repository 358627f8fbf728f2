package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/snapetech/livetv-player/internal/catalog"
	"github.com/snapetech/livetv-player/internal/listing"
)

func newChannelsCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List 24/7 channels",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			channels, err := a.retriever(cmd.Context()).FetchChannels(cmd.Context())
			if err != nil {
				return listingError(err)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, channels)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME")
			for _, ch := range channels {
				fmt.Fprintf(tw, "%d\t%s\n", ch.ID, ch.Name)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}

func newEventsCmd(a *app) *cobra.Command {
	var (
		asJSON   bool
		playable bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List scheduled events, one row per carrying channel",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			events, err := a.retriever(cmd.Context()).FetchEvents(cmd.Context())
			if err != nil {
				return listingError(err)
			}
			if playable {
				events = catalog.PlayableEvents(events)
			}
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, events)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TIME\tCATEGORY\tEVENT\tCHANNEL\tID")
			for _, ev := range events {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", ev.TimeLocal, ev.Category, ev.Title, ev.ChannelName, ev.ChannelID)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	cmd.Flags().BoolVar(&playable, "playable", false, "hide events without a launchable channel")
	return cmd
}

// listingError appends the user-facing remediation to a listing failure.
func listingError(err error) error {
	if hint := listing.Remediation(err); hint != "" {
		return fmt.Errorf("%w\n%s", err, hint)
	}
	return err
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
