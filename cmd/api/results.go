package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"voteverse/contexts/election/voting-coordinator/application/queries"
	"voteverse/contexts/election/voting-coordinator/domain/entities"
	"voteverse/internal/app/wiring"
	"voteverse/internal/platform/config"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func resultsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "results",
		Short: "Print per-district tallies from the configured storage",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.FromContext(cmd.Context())
			logger := commonRun(cfg)
			core, err := wiring.Build(cmd.Context(), *cfg, nil, logger)
			if err != nil {
				return err
			}
			defer func() { _ = core.Close() }()

			summaries, state, err := core.Election.Queries.Summaries(cmd.Context())
			if err != nil {
				return err
			}
			return printResults(cmd.OutOrStdout(), summaries, state)
		},
	}
}

func printResults(out io.Writer, summaries []queries.DistrictSummary, state entities.ResultsState) error {
	if state.Published && state.PublishedAt != nil {
		fmt.Fprintf(out, "Results published %s\n\n", humanize.Time(*state.PublishedAt))
	} else {
		fmt.Fprint(out, "Results not published\n\n")
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "DISTRICT\tVOTES\tTURNOUT\tLEADING\tWINNER")
	for _, summary := range summaries {
		leader := "-"
		if summary.HasLeader && summary.TotalVotes > 0 {
			leader = fmt.Sprintf("%s (%s)", summary.Leader.Name, humanize.Comma(int64(summary.Leader.Votes)))
			if summary.LeaderTied {
				leader += " tied"
			}
		}
		winner := summary.WinnerID
		if winner == "" {
			winner = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s%% of %s\t%s\t%s\n",
			summary.District,
			humanize.Comma(int64(summary.TotalVotes)),
			humanize.FtoaWithDigits(summary.Turnout*100, 1),
			humanize.Comma(int64(summary.Voters)),
			leader,
			winner,
		)
	}
	return w.Flush()
}
