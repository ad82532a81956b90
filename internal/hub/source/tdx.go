package source

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/fetcher"
)

const tdxPageSize = 100

// TDXFeed reads one entity feed from the ticketing/asset system REST API.
// TDX exposes no trustworthy modification marker on its report endpoints, so
// every feed uses the content-hash strategy.
type TDXFeed struct {
	client fetcher.Fetcher
	appID  string
	entity string
	path   string
}

func (f *TDXFeed) Name() string       { return "tdx_" + f.path }
func (f *TDXFeed) System() string     { return "tdx" }
func (f *TDXFeed) Entity() string     { return f.entity }
func (f *TDXFeed) Strategy() Strategy { return StrategyHash }

// ExcludeFields removes TDX audit metadata that churns on every export.
func (f *TDXFeed) ExcludeFields() []string {
	return []string{"ModifiedDate", "ModifiedUid", "CreatedDate", "RefreshedAt", "ReportRowID"}
}

// Derive computes a display full name for person payloads.
func (f *TDXFeed) Derive(payload map[string]any) map[string]any {
	if f.entity != "person" {
		return nil
	}
	first, _ := payload["FirstName"].(string)
	last, _ := payload["LastName"].(string)
	if first == "" && last == "" {
		return nil
	}
	full := first
	if last != "" {
		if full != "" {
			full += " "
		}
		full += last
	}
	return map[string]any{"full_name": full}
}

type tdxPage struct {
	Items []map[string]any `json:"Items"`
	More  bool             `json:"More"`
}

// FetchAll pages through the feed until the API reports no more rows.
func (f *TDXFeed) FetchAll(ctx context.Context) ([]Record, error) {
	var records []Record
	page := 1

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		q := url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(tdxPageSize)},
		}
		var resp tdxPage
		path := fmt.Sprintf("%s/%s", f.appID, f.path)
		if err := f.client.GetJSON(ctx, path, q, &resp); err != nil {
			return nil, eris.Wrapf(err, "tdx: fetch %s page %d", f.path, page)
		}

		for _, item := range resp.Items {
			id, ok := stringField(item, "ID")
			if !ok {
				continue
			}
			records = append(records, Record{ExternalID: id, Payload: item})
		}

		if !resp.More {
			break
		}
		page++
	}

	return records, nil
}

// FetchSince is unsupported; TDX has no reliable modification marker.
func (f *TDXFeed) FetchSince(ctx context.Context, since time.Time) ([]Record, error) {
	return nil, ErrNoTimestampSupport
}

// stringField extracts a payload field as a string, converting numeric IDs.
func stringField(payload map[string]any, key string) (string, bool) {
	switch v := payload[key].(type) {
	case string:
		return v, v != ""
	case float64:
		return strconv.FormatInt(int64(v), 10), true
	default:
		return "", false
	}
}
