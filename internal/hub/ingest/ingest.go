// Package ingest implements the change-tracked ingest stage: append-only
// capture of raw source payloads with duplicate-free change detection.
package ingest

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/db"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/source"
)

// Options configures which feeds to ingest and how.
type Options struct {
	System string   // restrict to one source system
	Feeds  []string // restrict to specific feed names
	Full   bool     // ignore change detection, capture everything fetched
	DryRun bool     // compute and report without committing
}

// Engine runs the change-tracked ingest stage across registered feeds.
type Engine struct {
	store       *RawStore
	runLog      *hub.RunLog
	reg         *source.Registry
	concurrency int
}

// NewEngine creates an ingest engine.
func NewEngine(pool db.Pool, runLog *hub.RunLog, reg *source.Registry, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = 8
	}
	return &Engine{
		store:       NewRawStore(pool),
		runLog:      runLog,
		reg:         reg,
		concurrency: concurrency,
	}
}

// Run ingests the selected feeds sequentially, fanning out across records
// within each feed. Each feed gets its own audit run; a feed failure is
// recorded and does not stop the remaining feeds, but the engine reports a
// non-nil error so the invocation exits non-zero.
func (e *Engine) Run(ctx context.Context, opts Options) error {
	log := zap.L().With(zap.String("component", "ingest.engine"))

	feeds, err := e.reg.Select(opts.System, opts.Feeds)
	if err != nil {
		return err
	}
	if len(feeds) == 0 {
		log.Info("no feeds selected")
		return nil
	}

	var failed int
	for _, feed := range feeds {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		feedLog := log.With(zap.String("feed", feed.Name()), zap.String("strategy", string(feed.Strategy())))
		feedLog.Info("starting ingest")

		stats, err := e.runFeed(ctx, feed, opts, feedLog)
		if err != nil {
			feedLog.Error("ingest failed", zap.Error(err))
			failed++
			continue
		}

		feedLog.Info("ingest complete",
			zap.Int64("fetched", stats.Fetched),
			zap.Int64("new", stats.New),
			zap.Int64("updated", stats.Updated),
			zap.Int64("unchanged", stats.Unchanged),
			zap.Int64("inconclusive", stats.Inconclusive),
			zap.Int64("failed", stats.Failed),
		)
	}

	if failed > 0 {
		return eris.Errorf("ingest: %d of %d feeds failed", failed, len(feeds))
	}
	return nil
}

// runFeed executes one feed's ingest run, including its audit entry.
func (e *Engine) runFeed(ctx context.Context, feed source.Source, opts Options, log *zap.Logger) (hub.RunStats, error) {
	var runID uuid.UUID
	var err error
	if !opts.DryRun {
		runID, err = e.runLog.Start(ctx, hub.StageIngest, feed.Name())
		if err != nil {
			return hub.RunStats{}, err
		}
	}

	stats, runErr := e.ingestFeed(ctx, feed, opts, runID)

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

func (e *Engine) ingestFeed(ctx context.Context, feed source.Source, opts Options, runID uuid.UUID) (hub.RunStats, error) {
	records, err := e.fetch(ctx, feed, opts)
	if err != nil {
		return hub.RunStats{}, eris.Wrapf(err, "ingest: fetch %s", feed.Name())
	}

	var stats hub.RunStats
	stats.Fetched = int64(len(records))

	var newCount, updated, unchanged, inconclusive, failed atomic.Int64

	// Records within a feed are independent; fan out under a bounded group.
	// Insert errors mean the store is unreachable and abort the whole run.
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	timestampFeed := feed.Strategy() == source.StrategyTimestamp

	for _, rec := range records {
		g.Go(func() error {
			hash, inc, err := ContentHash(rec.Payload, feed.ExcludeFields())
			if err != nil {
				// Record cannot be fingerprinted at all; count and continue.
				failed.Add(1)
				zap.L().Warn("skipping record with unhashable payload",
					zap.String("feed", feed.Name()),
					zap.String("external_id", rec.ExternalID),
					zap.Error(err),
				)
				return nil
			}
			if inc {
				inconclusive.Add(1)
			}

			prior, err := e.store.LatestHash(gCtx, feed.Entity(), feed.System(), rec.ExternalID)
			if err != nil {
				return err
			}

			// Timestamp feeds pre-filter at the source, so every fetched
			// record is inserted; the hash comparison only classifies
			// new vs updated. Hash feeds skip unchanged records, unless a
			// full resync was requested.
			if prior == hash && !timestampFeed && !opts.Full {
				unchanged.Add(1)
				return nil
			}

			if !opts.DryRun {
				payload := MergeDerived(rec.Payload, feed.Derive(rec.Payload))
				if err := e.store.Insert(gCtx, RawRecord{
					EntityType:   feed.Entity(),
					SourceSystem: feed.System(),
					ExternalID:   rec.ExternalID,
					Payload:      payload,
					ContentHash:  hash,
					RunID:        runID,
				}); err != nil {
					return err
				}
			}

			if prior == "" {
				newCount.Add(1)
			} else {
				updated.Add(1)
			}
			return nil
		})
	}

	err = g.Wait()
	stats.New = newCount.Load()
	stats.Updated = updated.Load()
	stats.Unchanged = unchanged.Load()
	stats.Inconclusive = inconclusive.Load()
	stats.Failed = failed.Load()
	if err != nil {
		return stats, err
	}
	return stats, nil
}

// fetch selects full or incremental fetch based on strategy, flags, and the
// last successful run marker.
func (e *Engine) fetch(ctx context.Context, feed source.Source, opts Options) ([]source.Record, error) {
	if feed.Strategy() != source.StrategyTimestamp || opts.Full {
		return feed.FetchAll(ctx)
	}

	since, err := e.runLog.LastSuccess(ctx, hub.StageIngest, feed.Name())
	if err != nil {
		return nil, err
	}
	if since == nil {
		return feed.FetchAll(ctx)
	}
	return feed.FetchSince(ctx, *since)
}
