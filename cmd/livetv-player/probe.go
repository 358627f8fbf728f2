package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/snapetech/livetv-player/internal/mirror"
)

func newProbeCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "probe <channel-id>",
		Short: "Probe every mirror for a channel and show which one play would use",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil || id <= 0 {
				return fmt.Errorf("channel id %q: want a positive number", args[0])
			}
			r := a.resolver()
			results := r.ProbeAll(cmd.Context(), id)
			out := cmd.OutOrStdout()
			if asJSON {
				return writeJSON(out, results)
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "STATUS\tHTTP\tLATENCY\tURL")
			for _, res := range results {
				code := "-"
				if res.StatusCode > 0 {
					code = strconv.Itoa(res.StatusCode)
				}
				fmt.Fprintf(tw, "%s\t%s\t%dms\t%s\n", res.Status, code, res.LatencyMs, res.URL)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, res := range results {
				if res.Status == mirror.StatusOK {
					fmt.Fprintf(out, "\nplay would use %s\n", res.URL)
					return nil
				}
			}
			fmt.Fprintf(out, "\nno mirror answered; play would try %s unverified\n", r.Candidates(id)[0])
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of a table")
	return cmd
}
