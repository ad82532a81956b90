package extract

import (
	"github.com/rotisserie/eris"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/ingest"
)

// LDAPPeople projects directory person entries into datahub.ldap_people.
// LDAP attributes are multi-valued, so scalar accessors take the first value.
type LDAPPeople struct{}

func (LDAPPeople) Name() string   { return "ldap_people" }
func (LDAPPeople) System() string { return hub.SourceLDAP }
func (LDAPPeople) Entity() string { return hub.EntityPerson }
func (LDAPPeople) Table() string  { return "datahub.ldap_people" }

func (LDAPPeople) Columns() []string {
	return []string{
		"external_id", "raw_id", "uniqname", "display_name",
		"first_name", "last_name", "email", "title", "affiliations",
	}
}

func (LDAPPeople) Row(rec ingest.RawRecord) ([]any, error) {
	p := rec.Payload
	uniqname := str(p, "uid")
	if uniqname == "" {
		return nil, eris.Errorf("ldap person %s: no uid", rec.ExternalID)
	}
	return []any{
		rec.ExternalID,
		rec.ID,
		uniqname,
		nullStr(str(p, "displayName")),
		nullStr(str(p, "givenName")),
		nullStr(str(p, "sn")),
		nullStr(str(p, "mail")),
		nullStr(str(p, "title")),
		jsonb(strList(p, "eduPersonAffiliation", "umichInstRoles")),
	}, nil
}

// LDAPGroups projects directory group entries into datahub.ldap_groups.
type LDAPGroups struct{}

func (LDAPGroups) Name() string   { return "ldap_groups" }
func (LDAPGroups) System() string { return hub.SourceLDAP }
func (LDAPGroups) Entity() string { return hub.EntityGroup }
func (LDAPGroups) Table() string  { return "datahub.ldap_groups" }

func (LDAPGroups) Columns() []string {
	return []string{
		"external_id", "raw_id", "name", "description",
		"owner_uniqnames", "member_uniqnames", "member_count",
	}
}

func (LDAPGroups) Row(rec ingest.RawRecord) ([]any, error) {
	p := rec.Payload
	name := str(p, "cn")
	if name == "" {
		return nil, eris.Errorf("ldap group %s: no cn", rec.ExternalID)
	}
	members := strList(p, "member", "memberUid")
	return []any{
		rec.ExternalID,
		rec.ID,
		name,
		nullStr(str(p, "description")),
		jsonb(strList(p, "owner")),
		jsonb(members),
		len(members),
	}, nil
}
