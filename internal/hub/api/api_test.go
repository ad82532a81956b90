package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestServer(t *testing.T) (*Server, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewServer(mock), mock
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.ExpectQuery(`SELECT 1`).
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	rec := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestHealthz_StoreDown(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.ExpectQuery(`SELECT 1`).WillReturnError(assert.AnError)

	rec := get(t, srv, "/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestRuns_BadLimit(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/api/runs?limit=banana")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRuns_EmptyListIsJSONArray(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.ExpectQuery(`SELECT run_id, stage, source, status`).
		WillReturnRows(pgxmock.NewRows([]string{
			"run_id", "stage", "source", "status", "started_at", "completed_at", "stats", "error",
		}))

	rec := get(t, srv, "/api/runs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestEntityLookup(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.ExpectQuery(`SELECT \* FROM datahub\.people WHERE uniqname = \$1`).
		WithArgs("jdoe").
		WillReturnRows(pgxmock.NewRows([]string{"uniqname", "first_name", "quality_flags"}).
			AddRow("jdoe", "Jane", []byte(`["conflict:email"]`)))

	rec := get(t, srv, "/api/entities/person/jdoe")
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "jdoe", body["uniqname"])
	assert.Equal(t, []any{"conflict:email"}, body["quality_flags"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEntityLookup_UnknownType(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/api/entities/building/nc51")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEntityLookup_NotFound(t *testing.T) {
	srv, mock := newTestServer(t)
	mock.ExpectQuery(`SELECT \* FROM datahub\.computers WHERE serial_number = \$1`).
		WithArgs("SN404").
		WillReturnRows(pgxmock.NewRows([]string{"serial_number"}))

	rec := get(t, srv, "/api/entities/computer/SN404")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLab_InvalidID(t *testing.T) {
	srv, _ := newTestServer(t)
	rec := get(t, srv, "/api/labs/not-a-uuid")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLab_Detail(t *testing.T) {
	srv, mock := newTestServer(t)
	id := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM datahub\.labs WHERE lab_id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"lab_id", "pi_uniqname", "data_source"}).
			AddRow(id, "pi1", "awards+hierarchy"))

	mock.ExpectQuery(`FROM datahub\.lab_memberships WHERE lab_id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"member_uniqname", "role_type", "display_name", "title", "provenance",
		}).AddRow("gs1", "member", "Grad Student", "Research Assistant", "hierarchy"))

	mock.ExpectQuery(`FROM datahub\.lab_classifications WHERE lab_id = \$1`).
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{
			"member_uniqname", "category", "priority", "reason",
		}))

	rec := get(t, srv, "/api/labs/"+id.String())
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Lab             map[string]any   `json:"lab"`
		Members         []map[string]any `json:"members"`
		Classifications []map[string]any `json:"classifications"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "pi1", body.Lab["pi_uniqname"])
	require.Len(t, body.Members, 1)
	assert.Equal(t, "gs1", body.Members[0]["member_uniqname"])
	assert.Empty(t, body.Classifications)
	require.NoError(t, mock.ExpectationsWereMet())
}
