package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/aggregate"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/extract"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/ingest"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/merge"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/source"
)

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Run the full pipeline: ingest, extract, consolidate, aggregate",
	Long: `Run every stage in order. Each stage reads only the completed output
of its predecessor, so the run stops at the first stage that fails; re-running
after a fix converges to the same final state.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := zap.L().With(zap.String("command", "refresh"))

		pool, err := hubPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := hub.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "refresh: migrate")
		}

		full, _ := cmd.Flags().GetBool("full")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		runLog := hub.NewRunLog(pool)

		log.Info("starting ingest stage")
		reg := source.NewRegistry(cfg)
		if err := ingest.NewEngine(pool, runLog, reg, cfg.Ingest.Concurrency).
			Run(ctx, ingest.Options{Full: full, DryRun: dryRun}); err != nil {
			return eris.Wrap(err, "refresh: ingest stage")
		}

		log.Info("starting extract stage")
		if err := extract.NewEngine(pool, runLog, extract.NewRegistry()).
			Run(ctx, extract.Options{DryRun: dryRun}); err != nil {
			return eris.Wrap(err, "refresh: extract stage")
		}

		log.Info("starting consolidate stage")
		if err := merge.NewEngine(pool, runLog, cfg).
			Run(ctx, merge.Options{DryRun: dryRun}); err != nil {
			return eris.Wrap(err, "refresh: consolidate stage")
		}

		log.Info("starting aggregate stage")
		if err := aggregate.NewEngine(pool, runLog, cfg).
			Run(ctx, aggregate.Options{DryRun: dryRun}); err != nil {
			return eris.Wrap(err, "refresh: aggregate stage")
		}

		log.Info("refresh complete")
		return nil
	},
}

func init() {
	refreshCmd.Flags().Bool("full", false, "ignore change detection during ingest")
	refreshCmd.Flags().Bool("dry-run", false, "run every stage without writing")
	rootCmd.AddCommand(refreshCmd)
}
