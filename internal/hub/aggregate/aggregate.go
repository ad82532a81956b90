package aggregate

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/config"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/db"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/merge"
)

// Options configures an aggregate run.
type Options struct {
	DryRun bool // resolve and report without committing
}

// Engine recomputes composite labs, their membership junctions, and role
// classifications from the canonical tier. Everything is derived; the whole
// tier is rebuilt each run.
type Engine struct {
	pool   db.Pool
	runLog *hub.RunLog
	cfg    *config.Config
}

// NewEngine creates an aggregate engine.
func NewEngine(pool db.Pool, runLog *hub.RunLog, cfg *config.Config) *Engine {
	return &Engine{pool: pool, runLog: runLog, cfg: cfg}
}

// Run resolves labs and persists them with their junctions and
// classifications.
func (e *Engine) Run(ctx context.Context, opts Options) error {
	log := zap.L().With(zap.String("component", "aggregate.engine"))

	if opts.DryRun {
		stats, err := e.aggregate(ctx, opts)
		if err != nil {
			return err
		}
		log.Info("aggregate dry run", zap.Int64("labs", stats.Rows))
		return nil
	}

	runID, err := e.runLog.Start(ctx, hub.StageAggregate, "labs")
	if err != nil {
		return err
	}

	stats, runErr := e.aggregate(ctx, opts)
	if runErr != nil {
		if logErr := e.runLog.Fail(ctx, runID, stats, runErr.Error()); logErr != nil {
			log.Error("failed to record run failure", zap.Error(logErr))
		}
		return runErr
	}
	if err := e.runLog.Complete(ctx, runID, stats); err != nil {
		log.Error("failed to record run completion", zap.Error(err))
	}
	log.Info("aggregate complete", zap.Int64("labs", stats.Rows))
	return nil
}

func (e *Engine) aggregate(ctx context.Context, opts Options) (hub.RunStats, error) {
	var stats hub.RunStats

	people, err := e.loadPeople(ctx)
	if err != nil {
		return stats, err
	}
	awards, err := e.loadAwards(ctx)
	if err != nil {
		return stats, err
	}
	existing, err := e.loadLabIDs(ctx)
	if err != nil {
		return stats, err
	}
	stats.Fetched = int64(len(people) + len(awards))

	labs := BuildLabs(people, awards, existing, merge.NewScorer(e.cfg.Quality))
	stats.Rows = int64(len(labs))

	if opts.DryRun {
		return stats, nil
	}

	now := time.Now().UTC()
	if err := e.persistLabs(ctx, labs, now); err != nil {
		return stats, err
	}
	if err := e.persistMemberships(ctx, labs, people, now); err != nil {
		return stats, err
	}
	if err := e.persistClassifications(ctx, labs, people); err != nil {
		return stats, err
	}
	return stats, nil
}

func (e *Engine) loadPeople(ctx context.Context) (map[string]Person, error) {
	rows, err := e.pool.Query(ctx,
		`SELECT uniqname, display_name, title, department_id, supervisor_uniqname, employee_status
		 FROM datahub.people`)
	if err != nil {
		return nil, eris.Wrap(err, "aggregate: load people")
	}
	defer rows.Close()

	people := make(map[string]Person)
	for rows.Next() {
		var p Person
		var display, title, dept, sup, status *string
		if err := rows.Scan(&p.Uniqname, &display, &title, &dept, &sup, &status); err != nil {
			return nil, eris.Wrap(err, "aggregate: scan person")
		}
		p.DisplayName = deref(display)
		p.Title = deref(title)
		p.DepartmentID = deref(dept)
		p.Supervisor = deref(sup)
		p.Status = deref(status)
		people[p.Uniqname] = p
	}
	return people, rows.Err()
}

func (e *Engine) loadAwards(ctx context.Context) ([]Award, error) {
	rows, err := e.pool.Query(ctx,
		`SELECT award_id, pi_uniqname, co_pi_uniqnames, department_id, amount
		 FROM datahub.hr_awards`)
	if err != nil {
		return nil, eris.Wrap(err, "aggregate: load awards")
	}
	defer rows.Close()

	var awards []Award
	for rows.Next() {
		var a Award
		var copis []byte
		var dept *string
		var amount *float64
		if err := rows.Scan(&a.AwardID, &a.PIUniqname, &copis, &dept, &amount); err != nil {
			return nil, eris.Wrap(err, "aggregate: scan award")
		}
		if len(copis) > 0 {
			if err := json.Unmarshal(copis, &a.CoPIs); err != nil {
				return nil, eris.Wrapf(err, "aggregate: decode co-PIs for award %s", a.AwardID)
			}
		}
		a.DepartmentID = deref(dept)
		if amount != nil {
			a.Amount = *amount
		}
		awards = append(awards, a)
	}
	return awards, rows.Err()
}

// loadLabIDs returns the PI -> lab ID assignments from the previous run so
// lab identifiers stay stable.
func (e *Engine) loadLabIDs(ctx context.Context) (map[string]uuid.UUID, error) {
	rows, err := e.pool.Query(ctx, `SELECT pi_uniqname, lab_id FROM datahub.labs`)
	if err != nil {
		return nil, eris.Wrap(err, "aggregate: load lab ids")
	}
	defer rows.Close()

	ids := make(map[string]uuid.UUID)
	for rows.Next() {
		var pi string
		var id uuid.UUID
		if err := rows.Scan(&pi, &id); err != nil {
			return nil, eris.Wrap(err, "aggregate: scan lab id")
		}
		ids[pi] = id
	}
	return ids, rows.Err()
}

func (e *Engine) persistLabs(ctx context.Context, labs []Lab, now time.Time) error {
	rows := make([][]any, 0, len(labs))
	pis := make([]string, 0, len(labs))
	for _, lab := range labs {
		flagsJSON, err := json.Marshal(lab.Flags)
		if err != nil {
			return eris.Wrapf(err, "aggregate: marshal flags for lab %s", lab.PIUniqname)
		}
		rows = append(rows, []any{
			lab.ID, lab.PIUniqname, nilIfEmpty(lab.Name), nilIfEmpty(lab.DepartmentID),
			lab.DataSource, lab.MemberCount(), lab.AwardCount, lab.TotalAmount,
			lab.Score, flagsJSON, now,
		})
		pis = append(pis, lab.PIUniqname)
	}

	if _, err := db.BulkUpsert(ctx, e.pool, db.UpsertConfig{
		Table: "datahub.labs",
		Columns: []string{
			"lab_id", "pi_uniqname", "name", "department_id", "data_source",
			"member_count", "award_count", "total_award_amount",
			"quality_score", "quality_flags", "updated_at",
		},
		ConflictKeys: []string{"pi_uniqname"},
		UpdateCols: []string{
			"name", "department_id", "data_source", "member_count", "award_count",
			"total_award_amount", "quality_score", "quality_flags", "updated_at",
		},
	}, rows); err != nil {
		return eris.Wrap(err, "aggregate: upsert labs")
	}

	// PIs no longer evidenced lose their lab; junction and classification
	// rows go with it via the cascade.
	var err error
	if len(pis) == 0 {
		_, err = e.pool.Exec(ctx, `DELETE FROM datahub.labs`)
	} else {
		_, err = e.pool.Exec(ctx,
			`DELETE FROM datahub.labs WHERE NOT (pi_uniqname = ANY($1))`, pis)
	}
	if err != nil {
		return eris.Wrap(err, "aggregate: delete stale labs")
	}
	return nil
}

func (e *Engine) persistMemberships(ctx context.Context, labs []Lab, people map[string]Person, now time.Time) error {
	var rows [][]any
	for _, lab := range labs {
		for _, m := range lab.Members {
			p := people[m.Uniqname]
			rows = append(rows, []any{
				lab.ID, m.Uniqname, m.Role,
				nilIfEmpty(p.DisplayName), nilIfEmpty(p.Title), m.Provenance, now,
			})
		}
	}

	if _, err := db.BulkUpsert(ctx, e.pool, db.UpsertConfig{
		Table: "datahub.lab_memberships",
		Columns: []string{
			"lab_id", "member_uniqname", "role_type",
			"display_name", "title", "provenance", "updated_at",
		},
		ConflictKeys: []string{"lab_id", "member_uniqname", "role_type"},
		UpdateCols:   []string{"display_name", "title", "provenance", "updated_at"},
	}, rows); err != nil {
		return eris.Wrap(err, "aggregate: upsert memberships")
	}

	// Anything the upsert did not touch this run is stale.
	if _, err := e.pool.Exec(ctx,
		`DELETE FROM datahub.lab_memberships WHERE updated_at < $1`, now); err != nil {
		return eris.Wrap(err, "aggregate: delete stale memberships")
	}
	return nil
}

func (e *Engine) persistClassifications(ctx context.Context, labs []Lab, people map[string]Person) error {
	rules := DefaultRules()
	maxResults := e.cfg.Classifier.MaxResults

	var rows [][]any
	for _, lab := range labs {
		var candidates []Candidate
		seen := make(map[string]bool)
		for _, m := range lab.Members {
			if m.Role == RolePI || seen[m.Uniqname] {
				continue
			}
			seen[m.Uniqname] = true
			p := people[m.Uniqname]
			candidates = append(candidates, Candidate{
				Uniqname: m.Uniqname,
				Title:    p.Title,
				Codes:    []string{p.Status},
			})
		}
		for _, c := range Classify(rules, candidates, maxResults) {
			rows = append(rows, []any{lab.ID, c.Uniqname, c.Category, c.Priority, c.Reason})
		}
	}

	if _, err := db.ReplaceAll(ctx, e.pool, "datahub.lab_classifications",
		[]string{"lab_id", "member_uniqname", "category", "priority", "reason"},
		rows); err != nil {
		return eris.Wrap(err, "aggregate: replace classifications")
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
