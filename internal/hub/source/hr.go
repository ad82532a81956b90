package source

import (
	"context"
	"net/url"
	"time"

	"github.com/rotisserie/eris"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/fetcher"
)

// HRFeed reads one entity feed from the HR API. The API exposes a
// trustworthy changed_since filter, so every feed uses the timestamp
// strategy.
type HRFeed struct {
	client fetcher.Fetcher
	entity string
	path   string
}

func (f *HRFeed) Name() string {
	switch f.entity {
	case "award":
		return "hr_awards"
	case "department":
		return "hr_departments"
	default:
		return "hr_employees"
	}
}

func (f *HRFeed) System() string     { return "hr" }
func (f *HRFeed) Entity() string     { return f.entity }
func (f *HRFeed) Strategy() Strategy { return StrategyTimestamp }

// ExcludeFields still names the HR sync metadata so full resyncs hash
// consistently with incremental runs.
func (f *HRFeed) ExcludeFields() []string {
	return []string{"last_extract_at", "row_version"}
}

func (f *HRFeed) Derive(payload map[string]any) map[string]any { return nil }

type hrResponse struct {
	Data []map[string]any `json:"data"`
}

// FetchAll returns the complete feed.
func (f *HRFeed) FetchAll(ctx context.Context) ([]Record, error) {
	return f.fetch(ctx, nil)
}

// FetchSince returns records the HR system modified since the given time.
func (f *HRFeed) FetchSince(ctx context.Context, since time.Time) ([]Record, error) {
	q := url.Values{"changed_since": {since.UTC().Format(time.RFC3339)}}
	return f.fetch(ctx, q)
}

func (f *HRFeed) fetch(ctx context.Context, q url.Values) ([]Record, error) {
	var resp hrResponse
	if err := f.client.GetJSON(ctx, f.path, q, &resp); err != nil {
		return nil, eris.Wrapf(err, "hr: fetch %s", f.path)
	}

	idKey := f.idKey()
	var records []Record
	for _, item := range resp.Data {
		id, ok := stringField(item, idKey)
		if !ok {
			continue
		}
		records = append(records, Record{ExternalID: id, Payload: item})
	}
	return records, nil
}

func (f *HRFeed) idKey() string {
	switch f.entity {
	case "award":
		return "award_id"
	case "department":
		return "dept_id"
	default:
		return "emplid"
	}
}
