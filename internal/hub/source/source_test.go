package source

import (
	"context"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/config"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

// stubFetcher replays canned JSON responses and records requests.
type stubFetcher struct {
	responses []func(path string, query url.Values, out any) error
	calls     int
	paths     []string
	queries   []url.Values
}

func (s *stubFetcher) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	s.paths = append(s.paths, path)
	s.queries = append(s.queries, query)
	fn := s.responses[s.calls]
	s.calls++
	return fn(path, query, out)
}

func tdxItems(items []map[string]any, more bool) func(string, url.Values, any) error {
	return func(_ string, _ url.Values, out any) error {
		resp := out.(*tdxPage)
		resp.Items = items
		resp.More = more
		return nil
	}
}

func TestTDXFeed_FetchAll_Pages(t *testing.T) {
	stub := &stubFetcher{responses: []func(string, url.Values, any) error{
		tdxItems([]map[string]any{{"ID": float64(101), "FirstName": "Jane"}}, true),
		tdxItems([]map[string]any{{"ID": "102", "FirstName": "Alex"}}, false),
	}}
	feed := &TDXFeed{client: stub, appID: "48", entity: "person", path: "people"}

	records, err := feed.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "101", records[0].ExternalID)
	assert.Equal(t, "102", records[1].ExternalID)
	assert.Equal(t, 2, stub.calls)
	assert.Equal(t, "48/people", stub.paths[0])
	assert.Equal(t, "2", stub.queries[1].Get("page"))
}

func TestTDXFeed_SkipsItemsWithoutID(t *testing.T) {
	stub := &stubFetcher{responses: []func(string, url.Values, any) error{
		tdxItems([]map[string]any{{"FirstName": "NoID"}, {"ID": "7"}}, false),
	}}
	feed := &TDXFeed{client: stub, appID: "48", entity: "person", path: "people"}

	records, err := feed.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "7", records[0].ExternalID)
}

func TestTDXFeed_NoTimestampSupport(t *testing.T) {
	feed := &TDXFeed{entity: "person", path: "people"}
	assert.Equal(t, StrategyHash, feed.Strategy())
	_, err := feed.FetchSince(context.Background(), time.Now())
	assert.ErrorIs(t, err, ErrNoTimestampSupport)
}

func TestTDXFeed_DerivesFullName(t *testing.T) {
	feed := &TDXFeed{entity: "person"}
	derived := feed.Derive(map[string]any{"FirstName": "Jane", "LastName": "Doe"})
	assert.Equal(t, map[string]any{"full_name": "Jane Doe"}, derived)

	assert.Nil(t, feed.Derive(map[string]any{}))

	asset := &TDXFeed{entity: "computer"}
	assert.Nil(t, asset.Derive(map[string]any{"FirstName": "x"}))
}

func TestHRFeed_FetchSince_PassesMarker(t *testing.T) {
	stub := &stubFetcher{responses: []func(string, url.Values, any) error{
		func(_ string, _ url.Values, out any) error {
			resp := out.(*hrResponse)
			resp.Data = []map[string]any{{"emplid": "9000123", "uniqname": "jdoe"}}
			return nil
		},
	}}
	feed := &HRFeed{client: stub, entity: "person", path: "employees"}

	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	records, err := feed.FetchSince(context.Background(), since)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "9000123", records[0].ExternalID)
	assert.Equal(t, "2026-08-01T00:00:00Z", stub.queries[0].Get("changed_since"))
	assert.Equal(t, StrategyTimestamp, feed.Strategy())
}

func TestHRFeed_IDKeysPerEntity(t *testing.T) {
	assert.Equal(t, "hr_employees", (&HRFeed{entity: "person"}).Name())
	assert.Equal(t, "hr_departments", (&HRFeed{entity: "department"}).Name())
	assert.Equal(t, "hr_awards", (&HRFeed{entity: "award"}).Name())
}

func TestLDAPFeed_FetchAll(t *testing.T) {
	stub := &stubFetcher{responses: []func(string, url.Values, any) error{
		func(_ string, q url.Values, out any) error {
			assert.Equal(t, "(objectClass=umichPerson)", q.Get("filter"))
			resp := out.(*ldapSearchResponse)
			resp.Entries = []struct {
				DN         string         `json:"dn"`
				Attributes map[string]any `json:"attributes"`
			}{
				{DN: "uid=jdoe,ou=People", Attributes: map[string]any{"uid": "jdoe", "cn": "Jane Doe"}},
				{DN: "uid=bad,ou=People", Attributes: nil},
			}
			return nil
		},
	}}
	feed := &LDAPFeed{client: stub, baseDN: "ou=People", entity: "person"}

	records, err := feed.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "jdoe", records[0].ExternalID)
}

func TestMCommunityFeed_DeriveDisplayName(t *testing.T) {
	feed := &MCommunityFeed{entity: "person"}

	derived := feed.Derive(map[string]any{"givenName": "Jane", "surname": "Doe"})
	assert.Equal(t, map[string]any{"display_name": "Jane Doe"}, derived)

	// Existing displayName wins; nothing derived.
	assert.Nil(t, feed.Derive(map[string]any{"displayName": "J. Doe", "givenName": "Jane", "surname": "Doe"}))
}

func TestRegistry_SelectBySystemAndName(t *testing.T) {
	cfg := &config.Config{}
	r := NewRegistry(cfg)

	all, err := r.Select("", nil)
	require.NoError(t, err)
	assert.Len(t, all, 10)

	tdxOnly, err := r.Select("tdx", nil)
	require.NoError(t, err)
	require.Len(t, tdxOnly, 3)
	for _, s := range tdxOnly {
		assert.Equal(t, "tdx", s.System())
	}

	named, err := r.Select("", []string{"hr_awards", "ldap_groups"})
	require.NoError(t, err)
	require.Len(t, named, 2)
	assert.Equal(t, "hr_awards", named[0].Name())

	_, err = r.Select("", []string{"nope"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown feed")
}
