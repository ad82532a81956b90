package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/source"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// fakeFeed is a scriptable source.Source.
type fakeFeed struct {
	name     string
	system   string
	entity   string
	strategy source.Strategy
	all      []source.Record
	since    []source.Record
	sinceArg *time.Time
	exclude  []string
	derived  map[string]any
}

func (f *fakeFeed) Name() string              { return f.name }
func (f *fakeFeed) System() string            { return f.system }
func (f *fakeFeed) Entity() string            { return f.entity }
func (f *fakeFeed) Strategy() source.Strategy { return f.strategy }
func (f *fakeFeed) ExcludeFields() []string   { return f.exclude }

func (f *fakeFeed) Derive(payload map[string]any) map[string]any { return f.derived }

func (f *fakeFeed) FetchAll(ctx context.Context) ([]source.Record, error) { return f.all, nil }

func (f *fakeFeed) FetchSince(ctx context.Context, since time.Time) ([]source.Record, error) {
	f.sinceArg = &since
	return f.since, nil
}

func newTestEngine(t *testing.T, feeds ...source.Source) (*Engine, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)

	reg := &source.Registry{}
	for _, f := range feeds {
		reg.Register(f)
	}
	// Concurrency 1 keeps pgxmock's ordered expectations deterministic.
	return NewEngine(mock, hub.NewRunLog(mock), reg, 1), mock
}

func expectRunStart(mock pgxmock.PgxPoolIface, feed string) {
	mock.ExpectExec("INSERT INTO datahub.ingestion_runs").
		WithArgs(pgxmock.AnyArg(), "ingest", feed).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func expectRunComplete(mock pgxmock.PgxPoolIface) {
	mock.ExpectExec("UPDATE datahub.ingestion_runs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
}

func expectLatestHash(mock pgxmock.PgxPoolIface, entity, system, externalID, hash string) {
	rows := pgxmock.NewRows([]string{"content_hash"})
	if hash != "" {
		rows.AddRow(hash)
	}
	mock.ExpectQuery("SELECT content_hash FROM datahub.raw_records").
		WithArgs(entity, system, externalID).
		WillReturnRows(rows)
}

func expectRawInsert(mock pgxmock.PgxPoolIface, entity, system, externalID string) {
	mock.ExpectExec("INSERT INTO datahub.raw_records").
		WithArgs(entity, system, externalID, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
}

func TestEngine_HashStrategy_SkipsUnchanged(t *testing.T) {
	payload := map[string]any{"uid": "jdoe", "title": "Lab Manager"}
	hash, _, err := ContentHash(payload, nil)
	require.NoError(t, err)

	feed := &fakeFeed{
		name: "tdx_people", system: "tdx", entity: "person",
		strategy: source.StrategyHash,
		all:      []source.Record{{ExternalID: "101", Payload: payload}},
	}
	engine, mock := newTestEngine(t, feed)

	// Second ingest of an identical snapshot appends nothing.
	expectRunStart(mock, "tdx_people")
	expectLatestHash(mock, "person", "tdx", "101", hash)
	expectRunComplete(mock)

	require.NoError(t, engine.Run(context.Background(), Options{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_HashStrategy_InsertsNewAndChanged(t *testing.T) {
	feed := &fakeFeed{
		name: "tdx_people", system: "tdx", entity: "person",
		strategy: source.StrategyHash,
		all: []source.Record{
			{ExternalID: "101", Payload: map[string]any{"uid": "jdoe"}},
			{ExternalID: "102", Payload: map[string]any{"uid": "abloggs"}},
		},
	}
	engine, mock := newTestEngine(t, feed)

	expectRunStart(mock, "tdx_people")
	// 101 never seen; 102 seen with a different hash.
	expectLatestHash(mock, "person", "tdx", "101", "")
	expectRawInsert(mock, "person", "tdx", "101")
	expectLatestHash(mock, "person", "tdx", "102", "stalehash")
	expectRawInsert(mock, "person", "tdx", "102")
	expectRunComplete(mock)

	require.NoError(t, engine.Run(context.Background(), Options{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_TimestampStrategy_InsertsUnconditionally(t *testing.T) {
	payload := map[string]any{"emplid": "9000123"}
	hash, _, err := ContentHash(payload, nil)
	require.NoError(t, err)

	lastRun := time.Date(2026, 8, 28, 4, 0, 0, 0, time.UTC)
	feed := &fakeFeed{
		name: "hr_employees", system: "hr", entity: "person",
		strategy: source.StrategyTimestamp,
		since:    []source.Record{{ExternalID: "9000123", Payload: payload}},
	}
	engine, mock := newTestEngine(t, feed)

	expectRunStart(mock, "hr_employees")
	mock.ExpectQuery("SELECT started_at FROM datahub.ingestion_runs").
		WithArgs("ingest", "hr_employees").
		WillReturnRows(pgxmock.NewRows([]string{"started_at"}).AddRow(lastRun))
	// Same hash as stored, but timestamp feeds pre-filter: insert anyway.
	expectLatestHash(mock, "person", "hr", "9000123", hash)
	expectRawInsert(mock, "person", "hr", "9000123")
	expectRunComplete(mock)

	require.NoError(t, engine.Run(context.Background(), Options{}))
	require.NotNil(t, feed.sinceArg)
	assert.Equal(t, lastRun, *feed.sinceArg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_TimestampStrategy_FirstRunFetchesAll(t *testing.T) {
	feed := &fakeFeed{
		name: "hr_employees", system: "hr", entity: "person",
		strategy: source.StrategyTimestamp,
		all:      []source.Record{{ExternalID: "1", Payload: map[string]any{"emplid": "1"}}},
	}
	engine, mock := newTestEngine(t, feed)

	expectRunStart(mock, "hr_employees")
	mock.ExpectQuery("SELECT started_at FROM datahub.ingestion_runs").
		WithArgs("ingest", "hr_employees").
		WillReturnRows(pgxmock.NewRows([]string{"started_at"}))
	expectLatestHash(mock, "person", "hr", "1", "")
	expectRawInsert(mock, "person", "hr", "1")
	expectRunComplete(mock)

	require.NoError(t, engine.Run(context.Background(), Options{}))
	assert.Nil(t, feed.sinceArg)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_FullResync_IgnoresChangeDetection(t *testing.T) {
	payload := map[string]any{"uid": "jdoe"}
	hash, _, err := ContentHash(payload, nil)
	require.NoError(t, err)

	feed := &fakeFeed{
		name: "tdx_people", system: "tdx", entity: "person",
		strategy: source.StrategyHash,
		all:      []source.Record{{ExternalID: "101", Payload: payload}},
	}
	engine, mock := newTestEngine(t, feed)

	expectRunStart(mock, "tdx_people")
	expectLatestHash(mock, "person", "tdx", "101", hash)
	expectRawInsert(mock, "person", "tdx", "101")
	expectRunComplete(mock)

	require.NoError(t, engine.Run(context.Background(), Options{Full: true}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_DryRun_NoWrites(t *testing.T) {
	feed := &fakeFeed{
		name: "tdx_people", system: "tdx", entity: "person",
		strategy: source.StrategyHash,
		all:      []source.Record{{ExternalID: "101", Payload: map[string]any{"uid": "jdoe"}}},
	}
	engine, mock := newTestEngine(t, feed)

	// Only the hash lookup: no run log rows, no raw inserts.
	expectLatestHash(mock, "person", "tdx", "101", "")

	require.NoError(t, engine.Run(context.Background(), Options{DryRun: true}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_DerivedFieldsStored(t *testing.T) {
	feed := &fakeFeed{
		name: "tdx_people", system: "tdx", entity: "person",
		strategy: source.StrategyHash,
		all:      []source.Record{{ExternalID: "101", Payload: map[string]any{"FirstName": "Jane", "LastName": "Doe"}}},
		derived:  map[string]any{"full_name": "Jane Doe"},
	}
	engine, mock := newTestEngine(t, feed)

	expectRunStart(mock, "tdx_people")
	expectLatestHash(mock, "person", "tdx", "101", "")
	mock.ExpectExec("INSERT INTO datahub.raw_records").
		WithArgs("person", "tdx", "101",
			[]byte(`{"FirstName":"Jane","LastName":"Doe","x_full_name":"Jane Doe"}`),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	expectRunComplete(mock)

	require.NoError(t, engine.Run(context.Background(), Options{}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEngine_UnknownFeed(t *testing.T) {
	engine, _ := newTestEngine(t)
	err := engine.Run(context.Background(), Options{Feeds: []string{"nope"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown feed")
}
