package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/merge"
)

var consolidateCmd = &cobra.Command{
	Use:   "consolidate",
	Short: "Merge typed source records into canonical entities",
	Long: `Recompute the canonical people, departments, groups, and computers
tables from the typed source snapshot using the cascading-fill priority
policy, with quality scores and provenance.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := hubPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := hub.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "consolidate: migrate")
		}

		opts := merge.Options{}
		opts.Entities = splitList(cmd, "entities")
		opts.DryRun, _ = cmd.Flags().GetBool("dry-run")

		zap.L().Info("starting consolidate",
			zap.Strings("entities", opts.Entities),
			zap.Bool("dry_run", opts.DryRun),
		)

		engine := merge.NewEngine(pool, hub.NewRunLog(pool), cfg)
		if err := engine.Run(ctx, opts); err != nil {
			return eris.Wrap(err, "consolidate")
		}
		return nil
	},
}

func init() {
	consolidateCmd.Flags().String("entities", "", "comma-separated entity types (e.g., person,department)")
	consolidateCmd.Flags().Bool("dry-run", false, "merge and report without writing")
	rootCmd.AddCommand(consolidateCmd)
}
