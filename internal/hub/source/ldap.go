package source

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/fetcher"
)

// LDAPFeed reads people or groups from the campus directory through its REST
// gateway. Directory entries carry operational attributes that change on
// every replication cycle, so the feed hashes business attributes only.
type LDAPFeed struct {
	client fetcher.Fetcher
	baseDN string
	entity string
}

func (f *LDAPFeed) Name() string {
	if f.entity == "group" {
		return "ldap_groups"
	}
	return "ldap_people"
}

func (f *LDAPFeed) System() string     { return "ldap" }
func (f *LDAPFeed) Entity() string     { return f.entity }
func (f *LDAPFeed) Strategy() Strategy { return StrategyHash }

// ExcludeFields drops LDAP operational attributes.
func (f *LDAPFeed) ExcludeFields() []string {
	return []string{"modifyTimestamp", "createTimestamp", "entryCSN", "entryUUID", "pwdChangedTime"}
}

func (f *LDAPFeed) Derive(payload map[string]any) map[string]any { return nil }

type ldapSearchResponse struct {
	Entries []struct {
		DN         string         `json:"dn"`
		Attributes map[string]any `json:"attributes"`
	} `json:"entries"`
}

// FetchAll performs a full subtree search under the feed's base DN.
func (f *LDAPFeed) FetchAll(ctx context.Context) ([]Record, error) {
	q := url.Values{
		"base":   {f.baseDN},
		"filter": {f.filter()},
	}
	var resp ldapSearchResponse
	if err := f.client.GetJSON(ctx, "search", q, &resp); err != nil {
		return nil, eris.Wrapf(err, "ldap: search %s", f.entity)
	}

	idKey := "uid"
	if f.entity == "group" {
		idKey = "cn"
	}

	var records []Record
	for _, entry := range resp.Entries {
		attrs := entry.Attributes
		if attrs == nil {
			continue
		}
		id, ok := stringField(attrs, idKey)
		if !ok {
			continue
		}
		records = append(records, Record{ExternalID: id, Payload: attrs})
	}
	return records, nil
}

// FetchSince is unsupported; modifyTimestamp is excluded as unreliable
// across replicas.
func (f *LDAPFeed) FetchSince(ctx context.Context, since time.Time) ([]Record, error) {
	return nil, ErrNoTimestampSupport
}

func (f *LDAPFeed) filter() string {
	if f.entity == "group" {
		return "(objectClass=rfc822MailGroup)"
	}
	return "(objectClass=umichPerson)"
}
