// Package extract implements the tier-1 stage: deterministic projection of
// the latest raw payload snapshot into typed per-source tables.
package extract

import (
	"context"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/db"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/ingest"
)

// Extractor projects raw payloads from one (source system, entity type) feed
// into its typed table. Extractors are independent of each other and purely
// deterministic: unchanged raw input yields unchanged output.
type Extractor interface {
	// Name returns the unique extractor identifier, matching its feed name.
	Name() string

	// System returns the source system the extractor reads.
	System() string

	// Entity returns the entity type the extractor reads.
	Entity() string

	// Table returns the typed target table (e.g., "datahub.tdx_people").
	Table() string

	// Columns returns the target column list, aligned with Row output.
	Columns() []string

	// Row projects one raw record into a typed row. A nil row with nil
	// error means the payload is malformed and the record is skipped.
	Row(rec ingest.RawRecord) ([]any, error)
}

// Options configures which extractors to run.
type Options struct {
	System   string   // restrict to one source system
	Entities []string // restrict to specific entity types
	DryRun   bool     // project and report without committing
}

// Engine runs extractors against the latest raw snapshot.
type Engine struct {
	pool   db.Pool
	store  *ingest.RawStore
	runLog *hub.RunLog
	reg    *Registry
}

// NewEngine creates an extract engine.
func NewEngine(pool db.Pool, runLog *hub.RunLog, reg *Registry) *Engine {
	return &Engine{
		pool:   pool,
		store:  ingest.NewRawStore(pool),
		runLog: runLog,
		reg:    reg,
	}
}

// Run executes the selected extractors. Each extractor fully replaces its
// table from the latest raw snapshot; a malformed payload skips that record
// only. Extractor failures are recorded per run and surface as one error at
// the end so the invocation exits non-zero.
func (e *Engine) Run(ctx context.Context, opts Options) error {
	log := zap.L().With(zap.String("component", "extract.engine"))

	extractors := e.reg.Select(opts.System, opts.Entities)
	if len(extractors) == 0 {
		log.Info("no extractors selected")
		return nil
	}

	var failed int
	for _, ex := range extractors {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		exLog := log.With(zap.String("extractor", ex.Name()))
		stats, err := e.runExtractor(ctx, ex, opts, exLog)
		if err != nil {
			exLog.Error("extract failed", zap.Error(err))
			failed++
			continue
		}
		exLog.Info("extract complete",
			zap.Int64("rows", stats.Rows),
			zap.Int64("skipped", stats.Failed),
		)
	}

	if failed > 0 {
		return eris.Errorf("extract: %d of %d extractors failed", failed, len(extractors))
	}
	return nil
}

func (e *Engine) runExtractor(ctx context.Context, ex Extractor, opts Options, log *zap.Logger) (hub.RunStats, error) {
	runID, err := e.startRun(ctx, ex, opts)
	if err != nil {
		return hub.RunStats{}, err
	}

	stats, runErr := e.replace(ctx, ex, opts)

	if opts.DryRun {
		return stats, runErr
	}
	if runErr != nil {
		if logErr := e.runLog.Fail(ctx, runID, stats, runErr.Error()); logErr != nil {
			log.Error("failed to record run failure", zap.Error(logErr))
		}
		return stats, runErr
	}
	if err := e.runLog.Complete(ctx, runID, stats); err != nil {
		log.Error("failed to record run completion", zap.Error(err))
	}
	return stats, nil
}

func (e *Engine) startRun(ctx context.Context, ex Extractor, opts Options) (uuid.UUID, error) {
	if opts.DryRun {
		return uuid.Nil, nil
	}
	return e.runLog.Start(ctx, hub.StageExtract, ex.Name())
}

func (e *Engine) replace(ctx context.Context, ex Extractor, opts Options) (hub.RunStats, error) {
	var stats hub.RunStats

	raws, err := e.store.Latest(ctx, ex.Entity(), ex.System())
	if err != nil {
		return stats, eris.Wrapf(err, "extract: load raw snapshot for %s", ex.Name())
	}
	stats.Fetched = int64(len(raws))

	rows := make([][]any, 0, len(raws))
	for _, raw := range raws {
		row, err := ex.Row(raw)
		if err != nil || row == nil {
			stats.Failed++
			if err != nil {
				zap.L().Warn("skipping malformed payload",
					zap.String("extractor", ex.Name()),
					zap.String("external_id", raw.ExternalID),
					zap.Error(err),
				)
			}
			continue
		}
		rows = append(rows, row)
	}

	if opts.DryRun {
		stats.Rows = int64(len(rows))
		return stats, nil
	}

	n, err := db.ReplaceAll(ctx, e.pool, ex.Table(), ex.Columns(), rows)
	if err != nil {
		return stats, eris.Wrapf(err, "extract: replace %s", ex.Table())
	}
	stats.Rows = n
	return stats, nil
}
