package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/aggregate"
)

var aggregateCmd = &cobra.Command{
	Use:   "aggregate",
	Short: "Resolve composite labs and classify members",
	Long: `Rebuild composite research labs from award and hierarchy evidence,
recompute membership junctions and metrics, and classify member roles.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := hubPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := hub.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "aggregate: migrate")
		}

		dryRun, _ := cmd.Flags().GetBool("dry-run")
		zap.L().Info("starting aggregate", zap.Bool("dry_run", dryRun))

		engine := aggregate.NewEngine(pool, hub.NewRunLog(pool), cfg)
		if err := engine.Run(ctx, aggregate.Options{DryRun: dryRun}); err != nil {
			return eris.Wrap(err, "aggregate")
		}
		return nil
	},
}

func init() {
	aggregateCmd.Flags().Bool("dry-run", false, "resolve and report without writing")
	rootCmd.AddCommand(aggregateCmd)
}
