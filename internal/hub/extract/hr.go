package extract

import (
	"github.com/rotisserie/eris"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/ingest"
)

// HRPeople projects HR employee payloads into datahub.hr_people.
type HRPeople struct{}

func (HRPeople) Name() string   { return "hr_people" }
func (HRPeople) System() string { return hub.SourceHR }
func (HRPeople) Entity() string { return hub.EntityPerson }
func (HRPeople) Table() string  { return "datahub.hr_people" }

func (HRPeople) Columns() []string {
	return []string{
		"external_id", "raw_id", "uniqname", "first_name", "last_name",
		"email", "title", "department_id", "supervisor_uniqname",
		"employee_status", "appointment_pct",
	}
}

func (HRPeople) Row(rec ingest.RawRecord) ([]any, error) {
	p := rec.Payload
	uniqname := str(p, "uniqname")
	if uniqname == "" {
		return nil, eris.Errorf("hr employee %s: no uniqname", rec.ExternalID)
	}
	return []any{
		rec.ExternalID,
		rec.ID,
		uniqname,
		nullStr(str(p, "first_name")),
		nullStr(str(p, "last_name")),
		nullStr(str(p, "email")),
		nullStr(str(p, "job_title")),
		nullStr(str(p, "dept_id")),
		nullStr(str(p, "supervisor_uniqname")),
		nullStr(str(p, "employee_status")),
		nullF64(p, "appointment_pct"),
	}, nil
}

// HRDepartments projects HR department payloads into datahub.hr_departments.
type HRDepartments struct{}

func (HRDepartments) Name() string   { return "hr_departments" }
func (HRDepartments) System() string { return hub.SourceHR }
func (HRDepartments) Entity() string { return hub.EntityDepartment }
func (HRDepartments) Table() string  { return "datahub.hr_departments" }

func (HRDepartments) Columns() []string {
	return []string{"external_id", "raw_id", "dept_id", "name", "campus", "parent_dept_id"}
}

func (HRDepartments) Row(rec ingest.RawRecord) ([]any, error) {
	p := rec.Payload
	deptID := str(p, "dept_id")
	if deptID == "" {
		return nil, eris.Errorf("hr department %s: no dept_id", rec.ExternalID)
	}
	return []any{
		rec.ExternalID,
		rec.ID,
		deptID,
		nullStr(str(p, "dept_name")),
		nullStr(str(p, "campus")),
		nullStr(str(p, "parent_dept_id")),
	}, nil
}

// HRAwards projects research award payloads into datahub.hr_awards. Awards
// feed the lab aggregation stage; a record without a PI cannot anchor a lab
// and is skipped.
type HRAwards struct{}

func (HRAwards) Name() string   { return "hr_awards" }
func (HRAwards) System() string { return hub.SourceHR }
func (HRAwards) Entity() string { return hub.EntityAward }
func (HRAwards) Table() string  { return "datahub.hr_awards" }

func (HRAwards) Columns() []string {
	return []string{
		"external_id", "raw_id", "award_id", "title", "pi_uniqname",
		"co_pi_uniqnames", "department_id", "sponsor", "amount",
		"start_date", "end_date",
	}
}

func (HRAwards) Row(rec ingest.RawRecord) ([]any, error) {
	p := rec.Payload
	awardID := str(p, "award_id")
	pi := str(p, "pi_uniqname")
	if awardID == "" || pi == "" {
		return nil, eris.Errorf("hr award %s: missing award_id or pi_uniqname", rec.ExternalID)
	}
	return []any{
		rec.ExternalID,
		rec.ID,
		awardID,
		nullStr(str(p, "title")),
		pi,
		jsonb(strList(p, "co_pi_uniqnames")),
		nullStr(str(p, "dept_id")),
		nullStr(str(p, "sponsor")),
		nullF64(p, "amount"),
		nullDate(p, "start_date"),
		nullDate(p, "end_date"),
	}, nil
}
