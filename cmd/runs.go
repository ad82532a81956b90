package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent pipeline runs",
	Long:  "Lists recent ingestion runs with their stage, source, status, and stats.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := hubPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		stage, _ := cmd.Flags().GetString("stage")
		limit, _ := cmd.Flags().GetInt("limit")

		entries, err := hub.NewRunLog(pool).List(ctx, hub.Stage(stage), limit)
		if err != nil {
			return eris.Wrap(err, "runs")
		}

		if len(entries) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}

		formatRuns(os.Stdout, entries)
		return nil
	},
}

func init() {
	runsCmd.Flags().String("stage", "", "filter by stage: ingest, extract, consolidate, aggregate")
	runsCmd.Flags().Int("limit", 30, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
}

func formatRuns(w io.Writer, entries []hub.RunEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tSTAGE\tSOURCE\tSTATUS\tDURATION\tSTATS")
	for _, e := range entries {
		duration := "-"
		if e.CompletedAt != nil {
			duration = e.CompletedAt.Sub(e.StartedAt).Round(time.Millisecond).String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.StartedAt.Format(time.RFC3339),
			e.Stage,
			e.Source,
			e.Status,
			duration,
			formatStats(e.Stats),
		)
	}
	tw.Flush()
}

func formatStats(s hub.RunStats) string {
	out := ""
	add := func(label string, n int64) {
		if n != 0 {
			if out != "" {
				out += " "
			}
			out += fmt.Sprintf("%s=%d", label, n)
		}
	}
	add("fetched", s.Fetched)
	add("new", s.New)
	add("updated", s.Updated)
	add("unchanged", s.Unchanged)
	add("inconclusive", s.Inconclusive)
	add("failed", s.Failed)
	add("rows", s.Rows)
	if out == "" {
		out = "-"
	}
	return out
}
