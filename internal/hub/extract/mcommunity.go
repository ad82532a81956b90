package extract

import (
	"github.com/rotisserie/eris"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/ingest"
)

// MCommunityPeople projects MCommunity profiles into
// datahub.mcommunity_people.
type MCommunityPeople struct{}

func (MCommunityPeople) Name() string   { return "mcommunity_people" }
func (MCommunityPeople) System() string { return hub.SourceMCommunity }
func (MCommunityPeople) Entity() string { return hub.EntityPerson }
func (MCommunityPeople) Table() string  { return "datahub.mcommunity_people" }

func (MCommunityPeople) Columns() []string {
	return []string{
		"external_id", "raw_id", "uniqname", "display_name",
		"first_name", "last_name", "email", "title", "affiliation",
	}
}

func (MCommunityPeople) Row(rec ingest.RawRecord) ([]any, error) {
	p := rec.Payload
	uniqname := str(p, "uid")
	if uniqname == "" {
		return nil, eris.Errorf("mcommunity person %s: no uid", rec.ExternalID)
	}
	return []any{
		rec.ExternalID,
		rec.ID,
		uniqname,
		nullStr(str(p, "displayName", "x_display_name")),
		nullStr(str(p, "givenName")),
		nullStr(str(p, "surname")),
		nullStr(str(p, "mail", "email")),
		nullStr(str(p, "title")),
		nullStr(str(p, "affiliation")),
	}, nil
}

// MCommunityGroups projects MCommunity groups into datahub.mcommunity_groups.
type MCommunityGroups struct{}

func (MCommunityGroups) Name() string   { return "mcommunity_groups" }
func (MCommunityGroups) System() string { return hub.SourceMCommunity }
func (MCommunityGroups) Entity() string { return hub.EntityGroup }
func (MCommunityGroups) Table() string  { return "datahub.mcommunity_groups" }

func (MCommunityGroups) Columns() []string {
	return []string{
		"external_id", "raw_id", "name", "description", "email",
		"owner_uniqnames", "member_uniqnames", "member_count",
	}
}

func (MCommunityGroups) Row(rec ingest.RawRecord) ([]any, error) {
	p := rec.Payload
	name := str(p, "name")
	if name == "" {
		return nil, eris.Errorf("mcommunity group %s: no name", rec.ExternalID)
	}
	members := strList(p, "members")
	return []any{
		rec.ExternalID,
		rec.ID,
		name,
		nullStr(str(p, "description")),
		nullStr(str(p, "email")),
		jsonb(strList(p, "owners")),
		jsonb(members),
		len(members),
	}, nil
}
