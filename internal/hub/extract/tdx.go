package extract

import (
	"github.com/rotisserie/eris"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/ingest"
)

// TDXPeople projects TeamDynamix user payloads into datahub.tdx_people.
type TDXPeople struct{}

func (TDXPeople) Name() string   { return "tdx_people" }
func (TDXPeople) System() string { return hub.SourceTDX }
func (TDXPeople) Entity() string { return hub.EntityPerson }
func (TDXPeople) Table() string  { return "datahub.tdx_people" }

func (TDXPeople) Columns() []string {
	return []string{
		"external_id", "raw_id", "uniqname", "first_name", "last_name",
		"email", "title", "department_id", "phone", "location", "is_active",
	}
}

func (TDXPeople) Row(rec ingest.RawRecord) ([]any, error) {
	p := rec.Payload
	uniqname := str(p, "UserName", "AuthenticationUserName")
	if uniqname == "" {
		return nil, eris.Errorf("tdx person %s: no uniqname", rec.ExternalID)
	}
	return []any{
		rec.ExternalID,
		rec.ID,
		uniqname,
		nullStr(str(p, "FirstName")),
		nullStr(str(p, "LastName")),
		nullStr(str(p, "PrimaryEmail", "AlertEmail")),
		nullStr(str(p, "Title")),
		nullStr(str(p, "DefaultAccountID")),
		nullStr(str(p, "WorkPhone")),
		nullStr(str(p, "LocationRoom", "WorkAddress")),
		boolVal(p, "IsActive", true),
	}, nil
}

// TDXDepartments projects TeamDynamix account payloads into
// datahub.tdx_departments. TeamDynamix models departments as "accounts".
type TDXDepartments struct{}

func (TDXDepartments) Name() string   { return "tdx_departments" }
func (TDXDepartments) System() string { return hub.SourceTDX }
func (TDXDepartments) Entity() string { return hub.EntityDepartment }
func (TDXDepartments) Table() string  { return "datahub.tdx_departments" }

func (TDXDepartments) Columns() []string {
	return []string{
		"external_id", "raw_id", "dept_id", "name",
		"manager_uniqname", "parent_dept_id", "is_active",
	}
}

func (TDXDepartments) Row(rec ingest.RawRecord) ([]any, error) {
	p := rec.Payload
	deptID := str(p, "Code", "ID")
	if deptID == "" {
		return nil, eris.Errorf("tdx department %s: no dept_id", rec.ExternalID)
	}
	return []any{
		rec.ExternalID,
		rec.ID,
		deptID,
		nullStr(str(p, "Name")),
		nullStr(str(p, "ManagerUserName")),
		nullStr(str(p, "ParentCode", "ParentID")),
		boolVal(p, "IsActive", true),
	}, nil
}

// TDXComputers projects TeamDynamix asset payloads into datahub.tdx_computers.
type TDXComputers struct{}

func (TDXComputers) Name() string   { return "tdx_computers" }
func (TDXComputers) System() string { return hub.SourceTDX }
func (TDXComputers) Entity() string { return hub.EntityComputer }
func (TDXComputers) Table() string  { return "datahub.tdx_computers" }

func (TDXComputers) Columns() []string {
	return []string{
		"external_id", "raw_id", "asset_tag", "serial_number", "hostname",
		"owner_uniqname", "department_id", "model", "os", "status", "last_seen_at",
	}
}

func (TDXComputers) Row(rec ingest.RawRecord) ([]any, error) {
	p := rec.Payload
	serial := str(p, "SerialNumber")
	if serial == "" {
		return nil, eris.Errorf("tdx computer %s: no serial number", rec.ExternalID)
	}
	return []any{
		rec.ExternalID,
		rec.ID,
		nullStr(str(p, "Tag")),
		serial,
		nullStr(str(p, "Name")),
		nullStr(str(p, "OwningCustomerUserName")),
		nullStr(str(p, "OwningDepartmentCode", "OwningDepartmentID")),
		nullStr(str(p, "ProductModelName")),
		nullStr(str(p, "OperatingSystem")),
		nullStr(str(p, "StatusName")),
		nullTime(p, "LastInventoryDate", "LastCheckInDate"),
	}, nil
}
