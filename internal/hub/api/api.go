// Package api exposes a small read-only status API over the hub store:
// run history, canonical entity lookup, and lab detail.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/db"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub"
)

// entityTables maps URL entity types to their canonical table and key column.
var entityTables = map[string]struct {
	table string
	key   string
}{
	hub.EntityPerson:     {table: "datahub.people", key: "uniqname"},
	hub.EntityDepartment: {table: "datahub.departments", key: "dept_id"},
	hub.EntityGroup:      {table: "datahub.groups", key: "name"},
	hub.EntityComputer:   {table: "datahub.computers", key: "serial_number"},
}

// Server serves the status API.
type Server struct {
	pool   db.Pool
	runLog *hub.RunLog
	log    *zap.Logger
}

// NewServer creates a status API server over the given pool.
func NewServer(pool db.Pool) *Server {
	return &Server{
		pool:   pool,
		runLog: hub.NewRunLog(pool),
		log:    zap.L().With(zap.String("component", "api")),
	}
}

// Router builds the HTTP routing table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/runs", s.handleRuns)
		r.Get("/entities/{type}/{key}", s.handleEntity)
		r.Get("/labs/{id}", s.handleLab)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var one int
	if err := s.pool.QueryRow(r.Context(), "SELECT 1").Scan(&one); err != nil {
		s.writeError(w, http.StatusServiceUnavailable, eris.Wrap(err, "api: store unreachable"))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.writeError(w, http.StatusBadRequest, eris.Errorf("api: invalid limit %q", raw))
			return
		}
		limit = n
	}

	entries, err := s.runLog.List(r.Context(), hub.Stage(r.URL.Query().Get("stage")), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if entries == nil {
		entries = []hub.RunEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleEntity(w http.ResponseWriter, r *http.Request) {
	entityType := chi.URLParam(r, "type")
	key := chi.URLParam(r, "key")

	target, ok := entityTables[entityType]
	if !ok {
		s.writeError(w, http.StatusNotFound, eris.Errorf("api: unknown entity type %q", entityType))
		return
	}

	row, err := s.queryOne(r.Context(),
		"SELECT * FROM "+target.table+" WHERE "+target.key+" = $1", key)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			s.writeError(w, http.StatusNotFound, eris.Errorf("api: no %s with key %q", entityType, key))
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, row)
}

func (s *Server) handleLab(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, eris.Wrap(err, "api: invalid lab id"))
		return
	}

	lab, err := s.queryOne(r.Context(), "SELECT * FROM datahub.labs WHERE lab_id = $1", id)
	if err != nil {
		if eris.Is(err, pgx.ErrNoRows) {
			s.writeError(w, http.StatusNotFound, eris.Errorf("api: no lab %s", id))
			return
		}
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	members, err := s.queryAll(r.Context(),
		`SELECT member_uniqname, role_type, display_name, title, provenance
		 FROM datahub.lab_memberships WHERE lab_id = $1
		 ORDER BY role_type, member_uniqname`, id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	classifications, err := s.queryAll(r.Context(),
		`SELECT member_uniqname, category, priority, reason
		 FROM datahub.lab_classifications WHERE lab_id = $1
		 ORDER BY priority, member_uniqname`, id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]any{
		"lab":             lab,
		"members":         members,
		"classifications": classifications,
	})
}

// queryOne returns a single row as a column-name map.
func (s *Server) queryOne(ctx context.Context, sql string, args ...any) (map[string]any, error) {
	rows, err := s.queryAll(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, pgx.ErrNoRows
	}
	return rows[0], nil
}

// queryAll returns every row as a column-name map, preserving whatever the
// driver decoded.
func (s *Server) queryAll(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "api: query")
	}
	defer rows.Close()

	out := []map[string]any{}
	fields := rows.FieldDescriptions()
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, eris.Wrap(err, "api: read row")
		}
		row := make(map[string]any, len(values))
		for i, f := range fields {
			if i < len(values) {
				row[string(f.Name)] = normalizeValue(values[i])
			}
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// normalizeValue makes driver-specific values JSON-friendly.
func normalizeValue(v any) any {
	if b, ok := v.([]byte); ok {
		var decoded any
		if err := json.Unmarshal(b, &decoded); err == nil {
			return decoded
		}
		return string(b)
	}
	return v
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.log.Error("failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	if status >= 500 {
		s.log.Error("request failed", zap.Error(err))
	}
	s.writeJSON(w, status, map[string]string{"error": eris.Cause(err).Error()})
}
