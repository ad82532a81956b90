package hub

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/db"
)

// RunStats summarizes one stage run. Counts that don't apply to a stage stay
// zero; a run is never silently incomplete.
type RunStats struct {
	Fetched      int64 `json:"fetched,omitempty"`
	New          int64 `json:"new,omitempty"`
	Updated      int64 `json:"updated,omitempty"`
	Unchanged    int64 `json:"unchanged,omitempty"`
	Inconclusive int64 `json:"inconclusive,omitempty"`
	Failed       int64 `json:"failed,omitempty"`
	Rows         int64 `json:"rows,omitempty"`
}

// RunEntry represents a row in datahub.ingestion_runs.
type RunEntry struct {
	RunID       uuid.UUID  `json:"run_id"`
	Stage       Stage      `json:"stage"`
	Source      string     `json:"source,omitempty"`
	Status      string     `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Stats       RunStats   `json:"stats"`
	Error       string     `json:"error,omitempty"`
}

// RunLog provides read/write access to the datahub.ingestion_runs table.
type RunLog struct {
	pool db.Pool
}

// NewRunLog creates a RunLog backed by the given connection pool.
func NewRunLog(pool db.Pool) *RunLog {
	return &RunLog{pool: pool}
}

// LastSuccess returns the started_at time of the most recent completed run
// for a stage and source. Returns nil if no run has ever completed.
func (l *RunLog) LastSuccess(ctx context.Context, stage Stage, source string) (*time.Time, error) {
	var t time.Time
	err := l.pool.QueryRow(ctx,
		`SELECT started_at FROM datahub.ingestion_runs
		 WHERE stage = $1 AND source = $2 AND status = 'complete'
		 ORDER BY started_at DESC LIMIT 1`,
		string(stage), source,
	).Scan(&t)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "runlog: last success for %s/%s", stage, source)
	}
	return &t, nil
}

// Start records the beginning of a stage run and returns its run ID.
func (l *RunLog) Start(ctx context.Context, stage Stage, source string) (uuid.UUID, error) {
	runID := uuid.New()
	_, err := l.pool.Exec(ctx,
		`INSERT INTO datahub.ingestion_runs (run_id, stage, source, status, started_at)
		 VALUES ($1, $2, $3, 'running', now())`,
		runID, string(stage), source,
	)
	if err != nil {
		return uuid.Nil, eris.Wrapf(err, "runlog: start %s/%s", stage, source)
	}
	return runID, nil
}

// Complete marks a run as successfully completed with its final stats.
func (l *RunLog) Complete(ctx context.Context, runID uuid.UUID, stats RunStats) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "runlog: marshal stats")
	}

	_, err = l.pool.Exec(ctx,
		`UPDATE datahub.ingestion_runs
		 SET status = 'complete', completed_at = now(), stats = $1
		 WHERE run_id = $2`,
		statsJSON, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: complete run %s", runID)
	}
	return nil
}

// Fail marks a run as failed with an error message and whatever stats were
// accumulated before the abort.
func (l *RunLog) Fail(ctx context.Context, runID uuid.UUID, stats RunStats, errMsg string) error {
	statsJSON, err := json.Marshal(stats)
	if err != nil {
		return eris.Wrap(err, "runlog: marshal stats")
	}

	_, err = l.pool.Exec(ctx,
		`UPDATE datahub.ingestion_runs
		 SET status = 'failed', completed_at = now(), stats = $1, error = $2
		 WHERE run_id = $3`,
		statsJSON, errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "runlog: fail run %s", runID)
	}
	return nil
}

// List returns recent run entries, most recent first. A zero limit returns
// all, and an empty stage matches every stage.
func (l *RunLog) List(ctx context.Context, stage Stage, limit int) ([]RunEntry, error) {
	sql := `SELECT run_id, stage, source, status, started_at, completed_at, stats, error
	        FROM datahub.ingestion_runs`
	args := []any{}
	if stage != "" {
		sql += ` WHERE stage = $1`
		args = append(args, string(stage))
	}
	sql += ` ORDER BY started_at DESC`
	if limit > 0 {
		args = append(args, limit)
		if stage != "" {
			sql += ` LIMIT $2`
		} else {
			sql += ` LIMIT $1`
		}
	}

	rows, err := l.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list runs")
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		var stage string
		var source, errStr *string
		var completedAt *time.Time
		var statsJSON []byte
		if err := rows.Scan(&e.RunID, &stage, &source, &e.Status, &e.StartedAt, &completedAt, &statsJSON, &errStr); err != nil {
			return nil, eris.Wrap(err, "runlog: scan run")
		}
		e.Stage = Stage(stage)
		if source != nil {
			e.Source = *source
		}
		e.CompletedAt = completedAt
		if errStr != nil {
			e.Error = *errStr
		}
		if len(statsJSON) > 0 {
			_ = json.Unmarshal(statsJSON, &e.Stats)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
