package merge

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/db"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub"
)

// Attribute describes one mergeable canonical attribute.
type Attribute struct {
	Name     string
	Required bool // absence after merge fires a missing_field deduction
	Single   bool // cross-source disagreement fires a conflict deduction
}

// sourceSnapshot holds one source system's records for an entity type, keyed
// by business key. Attribute maps contain only non-null values.
type sourceSnapshot map[string]map[string]any

// loader reads one source's typed table into a snapshot.
type loader func(ctx context.Context, pool db.Pool) (sourceSnapshot, error)

// EntityDef binds an entity type to its canonical table, business key,
// attribute set, and per-source loaders.
type EntityDef struct {
	Entity     string
	Table      string
	Key        string
	Attributes []Attribute
	Loaders    map[string]loader // source system -> loader
}

// ExpectedSources returns the source systems expected to cover this entity
// type, in canonical order.
func (d EntityDef) ExpectedSources() []string {
	var out []string
	for _, src := range sourceOrder {
		if _, ok := d.Loaders[src]; ok {
			out = append(out, src)
		}
	}
	return out
}

// sourceOrder fixes the canonical ordering of source systems in provenance
// descriptors.
var sourceOrder = []string{hub.SourceTDX, hub.SourceHR, hub.SourceLDAP, hub.SourceMCommunity}

// Entities returns the definitions for every consolidated entity type, in
// stage execution order.
func Entities() []EntityDef {
	return []EntityDef{personDef(), departmentDef(), groupDef(), computerDef()}
}

func personDef() EntityDef {
	return EntityDef{
		Entity: hub.EntityPerson,
		Table:  "datahub.people",
		Key:    "uniqname",
		Attributes: []Attribute{
			{Name: "first_name", Required: true, Single: false},
			{Name: "last_name", Required: true, Single: false},
			{Name: "display_name"},
			{Name: "email", Required: true, Single: true},
			{Name: "title", Single: true},
			{Name: "department_id", Single: true},
			{Name: "supervisor_uniqname"},
			{Name: "phone"},
			{Name: "location"},
			{Name: "employee_status"},
		},
		Loaders: map[string]loader{
			hub.SourceTDX: scanAttrs("datahub.tdx_people", "uniqname",
				"first_name", "last_name", "email", "title", "department_id", "phone", "location"),
			hub.SourceHR: scanAttrs("datahub.hr_people", "uniqname",
				"first_name", "last_name", "email", "title", "department_id",
				"supervisor_uniqname", "employee_status"),
			hub.SourceLDAP: scanAttrs("datahub.ldap_people", "uniqname",
				"display_name", "first_name", "last_name", "email", "title"),
			hub.SourceMCommunity: scanAttrs("datahub.mcommunity_people", "uniqname",
				"display_name", "first_name", "last_name", "email", "title"),
		},
	}
}

func departmentDef() EntityDef {
	return EntityDef{
		Entity: hub.EntityDepartment,
		Table:  "datahub.departments",
		Key:    "dept_id",
		Attributes: []Attribute{
			{Name: "name", Required: true, Single: true},
			{Name: "manager_uniqname"},
			{Name: "parent_dept_id", Single: true},
			{Name: "campus"},
		},
		Loaders: map[string]loader{
			hub.SourceTDX: scanAttrs("datahub.tdx_departments", "dept_id",
				"name", "manager_uniqname", "parent_dept_id"),
			hub.SourceHR: scanAttrs("datahub.hr_departments", "dept_id",
				"name", "campus", "parent_dept_id"),
		},
	}
}

func groupDef() EntityDef {
	return EntityDef{
		Entity: hub.EntityGroup,
		Table:  "datahub.groups",
		Key:    "name",
		Attributes: []Attribute{
			{Name: "description"},
			{Name: "email"},
			{Name: "owner_uniqnames"},
			{Name: "member_count"},
		},
		Loaders: map[string]loader{
			hub.SourceLDAP: scanAttrs("datahub.ldap_groups", "name",
				"description", "owner_uniqnames", "member_count"),
			hub.SourceMCommunity: scanAttrs("datahub.mcommunity_groups", "name",
				"description", "email", "owner_uniqnames", "member_count"),
		},
	}
}

func computerDef() EntityDef {
	return EntityDef{
		Entity: hub.EntityComputer,
		Table:  "datahub.computers",
		Key:    "serial_number",
		Attributes: []Attribute{
			{Name: "asset_tag"},
			{Name: "hostname", Required: true},
			{Name: "owner_uniqname"},
			{Name: "department_id"},
			{Name: "model"},
			{Name: "os"},
			{Name: "status"},
		},
		Loaders: map[string]loader{
			hub.SourceTDX: scanAttrs("datahub.tdx_computers", "serial_number",
				"asset_tag", "hostname", "owner_uniqname", "department_id", "model", "os", "status"),
		},
	}
}

// scanAttrs builds a loader that selects the key column plus the named
// attribute columns and maps non-null values into attribute maps. When a
// source holds several rows for one business key (e.g., multiple HR
// appointments), the first row in key order wins, keeping merges
// deterministic.
func scanAttrs(table, key string, attrs ...string) loader {
	cols := key
	for _, a := range attrs {
		cols += ", " + a
	}
	sql := "SELECT " + cols + " FROM " + table + " ORDER BY " + key + ", external_id"

	return func(ctx context.Context, pool db.Pool) (sourceSnapshot, error) {
		rows, err := pool.Query(ctx, sql)
		if err != nil {
			return nil, eris.Wrapf(err, "merge: load %s", table)
		}
		defer rows.Close()

		snap := make(sourceSnapshot)
		for rows.Next() {
			dest := make([]any, len(attrs)+1)
			ptrs := make([]any, len(dest))
			for i := range dest {
				ptrs[i] = &dest[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return nil, eris.Wrapf(err, "merge: scan %s", table)
			}

			k, _ := dest[0].(string)
			if k == "" {
				continue
			}
			if _, seen := snap[k]; seen {
				continue
			}

			vals := make(map[string]any, len(attrs))
			for i, a := range attrs {
				if v := dest[i+1]; v != nil {
					vals[a] = v
				}
			}
			snap[k] = vals
		}
		return snap, rows.Err()
	}
}
