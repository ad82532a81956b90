package merge

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/config"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/db"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub"
)

// Options configures a consolidate run.
type Options struct {
	Entities []string // restrict to specific entity types
	DryRun   bool     // merge and report without committing
}

// Engine recomputes canonical entities from the typed tier-1 snapshot. Each
// run is a full recompute: the merged output depends only on the current
// snapshot and the priority policy, never on previous merge results.
type Engine struct {
	pool   db.Pool
	runLog *hub.RunLog
	cfg    *config.Config
}

// NewEngine creates a consolidate engine.
func NewEngine(pool db.Pool, runLog *hub.RunLog, cfg *config.Config) *Engine {
	return &Engine{pool: pool, runLog: runLog, cfg: cfg}
}

// Run merges the selected entity types. Priorities are loaded fresh so
// policy edits apply without redeploying. A failed entity type is recorded
// and skipped; the run returns one error at the end if any failed.
func (e *Engine) Run(ctx context.Context, opts Options) error {
	log := zap.L().With(zap.String("component", "merge.engine"))

	pri, err := LoadPriorities(e.cfg.Merge.PrioritiesPath)
	if err != nil {
		return err
	}
	scorer := NewScorer(e.cfg.Quality)

	want := make(map[string]bool, len(opts.Entities))
	for _, ent := range opts.Entities {
		want[ent] = true
	}

	var selected, failed int
	for _, def := range Entities() {
		if len(want) > 0 && !want[def.Entity] {
			continue
		}
		selected++

		entLog := log.With(zap.String("entity", def.Entity))
		stats, err := e.runEntity(ctx, def, pri, scorer, opts, entLog)
		if err != nil {
			entLog.Error("merge failed", zap.Error(err))
			failed++
			continue
		}
		entLog.Info("merge complete",
			zap.Int64("source_rows", stats.Fetched),
			zap.Int64("canonical_rows", stats.Rows),
		)
	}

	if selected == 0 {
		return eris.Errorf("merge: no entity types matched %v", opts.Entities)
	}
	if failed > 0 {
		return eris.Errorf("merge: %d of %d entity types failed", failed, selected)
	}
	return nil
}

func (e *Engine) runEntity(ctx context.Context, def EntityDef, pri *Priorities, scorer Scorer, opts Options, log *zap.Logger) (hub.RunStats, error) {
	var stats hub.RunStats

	if opts.DryRun {
		return e.mergeEntity(ctx, def, pri, scorer, true)
	}

	runID, err := e.runLog.Start(ctx, hub.StageConsolidate, def.Entity)
	if err != nil {
		return stats, err
	}

	stats, runErr := e.mergeEntity(ctx, def, pri, scorer, false)
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

func (e *Engine) mergeEntity(ctx context.Context, def EntityDef, pri *Priorities, scorer Scorer, dryRun bool) (hub.RunStats, error) {
	var stats hub.RunStats

	snaps := make(map[string]sourceSnapshot, len(def.Loaders))
	for _, src := range def.ExpectedSources() {
		snap, err := def.Loaders[src](ctx, e.pool)
		if err != nil {
			return stats, err
		}
		snaps[src] = snap
		stats.Fetched += int64(len(snap))
	}

	keys := keyUnion(snaps)
	now := time.Now().UTC()

	rows := make([][]any, 0, len(keys))
	for _, key := range keys {
		recs := make(map[string]map[string]any, len(snaps))
		for src, snap := range snaps {
			if attrs, ok := snap[key]; ok {
				recs[src] = attrs
			}
		}

		merged, score, flags, provenance := mergeOne(def, pri, recs, scorer)

		flagsJSON, err := json.Marshal(flags)
		if err != nil {
			return stats, eris.Wrapf(err, "merge: marshal flags for %s %q", def.Entity, key)
		}

		row := make([]any, 0, len(def.Attributes)+5)
		row = append(row, key)
		for _, attr := range def.Attributes {
			row = append(row, merged[attr.Name])
		}
		row = append(row, score, flagsJSON, provenance, now)
		rows = append(rows, row)
	}
	stats.Rows = int64(len(rows))

	if dryRun {
		return stats, nil
	}

	columns := make([]string, 0, len(def.Attributes)+5)
	columns = append(columns, def.Key)
	for _, attr := range def.Attributes {
		columns = append(columns, attr.Name)
	}
	columns = append(columns, "quality_score", "quality_flags", "source_systems", "updated_at")

	if _, err := db.BulkUpsert(ctx, e.pool, db.UpsertConfig{
		Table:        def.Table,
		Columns:      columns,
		ConflictKeys: []string{def.Key},
	}, rows); err != nil {
		return stats, eris.Wrapf(err, "merge: upsert %s", def.Table)
	}

	if err := e.deleteStale(ctx, def, keys); err != nil {
		return stats, err
	}
	return stats, nil
}

// deleteStale removes canonical rows whose business key no longer appears in
// any source.
func (e *Engine) deleteStale(ctx context.Context, def EntityDef, keys []string) error {
	var err error
	if len(keys) == 0 {
		_, err = e.pool.Exec(ctx, "DELETE FROM "+def.Table)
	} else {
		_, err = e.pool.Exec(ctx,
			"DELETE FROM "+def.Table+" WHERE NOT ("+def.Key+" = ANY($1))", keys)
	}
	if err != nil {
		return eris.Wrapf(err, "merge: delete stale rows from %s", def.Table)
	}
	return nil
}

// keyUnion returns the sorted union of business keys across all sources.
func keyUnion(snaps map[string]sourceSnapshot) []string {
	seen := make(map[string]bool)
	for _, snap := range snaps {
		for key := range snap {
			seen[key] = true
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// mergeOne combines one business key's per-source records into canonical
// attribute values with a quality score, flags, and a provenance descriptor.
//
// For each attribute, the declared source order is consulted and the first
// non-null value wins. A lower-priority source can fill an attribute the
// higher-priority source lacks, but never override one it supplied. Absence
// across all sources yields null.
func mergeOne(def EntityDef, pri *Priorities, recs map[string]map[string]any, scorer Scorer) (map[string]any, float64, []string, string) {
	var deds []Deduction

	for _, src := range def.ExpectedSources() {
		if _, ok := recs[src]; !ok {
			deds = append(deds, scorer.MissingSource(src))
		}
	}

	merged := make(map[string]any, len(def.Attributes))
	contributed := make(map[string]bool, len(recs))

	for _, attr := range def.Attributes {
		for _, src := range pri.Order(def.Entity, attr.Name) {
			rec, ok := recs[src]
			if !ok {
				continue
			}
			if v, ok := rec[attr.Name]; ok {
				merged[attr.Name] = v
				contributed[src] = true
				break
			}
		}

		if attr.Single && conflicting(def, recs, attr.Name) {
			deds = append(deds, scorer.Conflict(attr.Name))
		}
		if attr.Required && merged[attr.Name] == nil {
			deds = append(deds, scorer.MissingField(attr.Name))
		}
	}

	score, flags := scorer.Score(deds)

	var provenance []string
	for _, src := range sourceOrder {
		if contributed[src] {
			provenance = append(provenance, src)
		}
	}
	return merged, score, flags, strings.Join(provenance, "+")
}

// conflicting reports whether sources disagree on an attribute expected to
// hold a single value. Case and whitespace differences are not conflicts;
// the disagreement is resolved by priority and surfaced only as a flag.
func conflicting(def EntityDef, recs map[string]map[string]any, attr string) bool {
	var first string
	var seen bool
	for _, src := range def.ExpectedSources() {
		rec, ok := recs[src]
		if !ok {
			continue
		}
		v, ok := rec[attr]
		if !ok {
			continue
		}
		n := normalize(v)
		if !seen {
			first, seen = n, true
			continue
		}
		if n != first {
			return true
		}
	}
	return false
}
