package source

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/fetcher"
)

// MCommunityFeed reads people or groups from the second directory service.
type MCommunityFeed struct {
	client fetcher.Fetcher
	entity string
}

func (f *MCommunityFeed) Name() string {
	if f.entity == "group" {
		return "mcommunity_groups"
	}
	return "mcommunity_people"
}

func (f *MCommunityFeed) System() string     { return "mcommunity" }
func (f *MCommunityFeed) Entity() string     { return f.entity }
func (f *MCommunityFeed) Strategy() Strategy { return StrategyHash }

// ExcludeFields drops the directory's sync envelope.
func (f *MCommunityFeed) ExcludeFields() []string {
	return []string{"etag", "syncedAt", "revision"}
}

// Derive computes a display name for person payloads when the directory
// omits one.
func (f *MCommunityFeed) Derive(payload map[string]any) map[string]any {
	if f.entity != "person" {
		return nil
	}
	if display, ok := payload["displayName"].(string); ok && display != "" {
		return nil
	}
	first, _ := payload["givenName"].(string)
	last, _ := payload["surname"].(string)
	if first == "" || last == "" {
		return nil
	}
	return map[string]any{"display_name": first + " " + last}
}

type mcommunityResponse struct {
	Results []map[string]any `json:"results"`
}

// FetchAll returns every entry of the feed's type.
func (f *MCommunityFeed) FetchAll(ctx context.Context) ([]Record, error) {
	q := url.Values{"type": {f.entity}}
	var resp mcommunityResponse
	if err := f.client.GetJSON(ctx, "directory", q, &resp); err != nil {
		return nil, eris.Wrapf(err, "mcommunity: fetch %s", f.entity)
	}

	idKey := "uid"
	if f.entity == "group" {
		idKey = "name"
	}

	var records []Record
	for _, item := range resp.Results {
		id, ok := stringField(item, idKey)
		if !ok {
			continue
		}
		records = append(records, Record{ExternalID: id, Payload: item})
	}
	return records, nil
}

// FetchSince is unsupported; the directory exposes no change feed.
func (f *MCommunityFeed) FetchSince(ctx context.Context, since time.Time) ([]Record, error) {
	return nil, ErrNoTimestampSupport
}
