package ingest

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/db"
)

// RawRecord is one append-only raw capture of a source record.
type RawRecord struct {
	ID           int64
	EntityType   string
	SourceSystem string
	ExternalID   string
	Payload      map[string]any
	IngestedAt   time.Time
	ContentHash  string
	RunID        uuid.UUID
}

// RawStore reads and appends datahub.raw_records. Rows are never updated or
// deleted; versions accumulate per (entity_type, source_system, external_id).
type RawStore struct {
	pool db.Pool
}

// NewRawStore creates a RawStore backed by the given pool.
func NewRawStore(pool db.Pool) *RawStore {
	return &RawStore{pool: pool}
}

// LatestHash returns the content hash of the most recent stored version for
// one logical record, or "" if the record has never been seen. The lookup is
// an indexed query so the ingester stays stateless across runs.
func (s *RawStore) LatestHash(ctx context.Context, entityType, sourceSystem, externalID string) (string, error) {
	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT content_hash FROM datahub.raw_records
		 WHERE entity_type = $1 AND source_system = $2 AND external_id = $3
		 ORDER BY ingested_at DESC LIMIT 1`,
		entityType, sourceSystem, externalID,
	).Scan(&hash)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", eris.Wrapf(err, "ingest: latest hash for %s/%s/%s", entityType, sourceSystem, externalID)
	}
	return hash, nil
}

// Insert appends one raw record. Inserts are independent and idempotent at
// the run level: an aborted batch leaves prior inserts valid.
func (s *RawStore) Insert(ctx context.Context, rec RawRecord) error {
	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return eris.Wrap(err, "ingest: marshal payload")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO datahub.raw_records
		     (entity_type, source_system, external_id, payload, ingested_at, content_hash, run_id)
		 VALUES ($1, $2, $3, $4, now(), $5, $6)`,
		rec.EntityType, rec.SourceSystem, rec.ExternalID, payload, rec.ContentHash, rec.RunID,
	)
	if err != nil {
		return eris.Wrapf(err, "ingest: insert raw record %s/%s/%s", rec.EntityType, rec.SourceSystem, rec.ExternalID)
	}
	return nil
}

// Latest returns the most recent raw version of every logical record for one
// (source system, entity type) pair. This is the extract stage's input
// snapshot.
func (s *RawStore) Latest(ctx context.Context, entityType, sourceSystem string) ([]RawRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT DISTINCT ON (external_id)
		        id, entity_type, source_system, external_id, payload, ingested_at, content_hash, run_id
		 FROM datahub.raw_records
		 WHERE entity_type = $1 AND source_system = $2
		 ORDER BY external_id, ingested_at DESC`,
		entityType, sourceSystem,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: latest raw records for %s/%s", entityType, sourceSystem)
	}
	defer rows.Close()

	var records []RawRecord
	for rows.Next() {
		var rec RawRecord
		var payload []byte
		if err := rows.Scan(&rec.ID, &rec.EntityType, &rec.SourceSystem, &rec.ExternalID,
			&payload, &rec.IngestedAt, &rec.ContentHash, &rec.RunID); err != nil {
			return nil, eris.Wrap(err, "ingest: scan raw record")
		}
		if err := json.Unmarshal(payload, &rec.Payload); err != nil {
			return nil, eris.Wrapf(err, "ingest: decode payload for raw record %d", rec.ID)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
