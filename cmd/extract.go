package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/extract"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Project raw snapshots into typed source tables",
	Long: `Deterministically project the latest raw payload per external ID into
the typed per-source tables (tdx_people, hr_awards, ...). Each table is fully
replaced in one transaction.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		pool, err := hubPool(ctx)
		if err != nil {
			return err
		}
		defer pool.Close()

		if err := hub.Migrate(ctx, pool); err != nil {
			return eris.Wrap(err, "extract: migrate")
		}

		opts := extract.Options{}
		opts.System, _ = cmd.Flags().GetString("system")
		opts.Entities = splitList(cmd, "entities")
		opts.DryRun, _ = cmd.Flags().GetBool("dry-run")

		zap.L().Info("starting extract",
			zap.String("system", opts.System),
			zap.Strings("entities", opts.Entities),
			zap.Bool("dry_run", opts.DryRun),
		)

		engine := extract.NewEngine(pool, hub.NewRunLog(pool), extract.NewRegistry())
		if err := engine.Run(ctx, opts); err != nil {
			return eris.Wrap(err, "extract")
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().String("system", "", "restrict to one source system")
	extractCmd.Flags().String("entities", "", "comma-separated entity types (e.g., person,award)")
	extractCmd.Flags().Bool("dry-run", false, "project and report without writing")
	rootCmd.AddCommand(extractCmd)
}
