package main

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/ingest"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/source"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Capture raw source snapshots",
	Long: `Fetch records from the systems of record and append changed payloads
to datahub.raw_records.

By default all feeds run with change detection (content hash or changed-since
timestamp per feed). Use --system or --feeds to restrict, --full to ignore
change detection, --dry-run to report without writing.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "ingest"))

		pool, err := hubPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := hub.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "ingest: migrate")
		}

		opts := ingest.Options{}
		opts.System, _ = cmd.Flags().GetString("system")
		opts.Feeds = splitList(cmd, "feeds")
		opts.Full, _ = cmd.Flags().GetBool("full")
		opts.DryRun, _ = cmd.Flags().GetBool("dry-run")

		log.Info("starting ingest",
			zap.String("system", opts.System),
			zap.Strings("feeds", opts.Feeds),
			zap.Bool("full", opts.Full),
			zap.Bool("dry_run", opts.DryRun),
		)

		reg := source.NewRegistry(cfg)
		engine := ingest.NewEngine(pool, hub.NewRunLog(pool), reg, cfg.Ingest.Concurrency)
		if err := engine.Run(ctx, opts); err != nil {
			return eris.Wrap(err, "ingest")
		}
		return nil
	},
}

func init() {
	ingestCmd.Flags().String("system", "", "restrict to one source system: tdx, hr, ldap, mcommunity")
	ingestCmd.Flags().String("feeds", "", "comma-separated feed names (e.g., tdx_people,hr_awards)")
	ingestCmd.Flags().Bool("full", false, "ignore change detection, capture everything fetched")
	ingestCmd.Flags().Bool("dry-run", false, "compute and report without writing")
	rootCmd.AddCommand(ingestCmd)
}

// splitList reads a comma-separated string flag into a trimmed slice.
func splitList(cmd *cobra.Command, name string) []string {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
