package extract

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// Payload values arrive as generic JSON, so every accessor tolerates the
// loose typing upstream systems produce (numbers where strings belong,
// scalars where lists belong).

// str returns the first non-empty string value among the given keys.
func str(p map[string]any, keys ...string) string {
	for _, k := range keys {
		switch v := p[k].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		case []any:
			// LDAP returns single-valued attributes as one-element lists.
			if len(v) > 0 {
				if s, ok := v[0].(string); ok && s != "" {
					return s
				}
			}
		}
	}
	return ""
}

// nullStr maps an empty string to SQL NULL.
func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// f64 returns a numeric value, accepting JSON numbers and numeric strings.
func f64(p map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := p[k].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

func nullF64(p map[string]any, keys ...string) any {
	if f, ok := f64(p, keys...); ok {
		return f
	}
	return nil
}

// boolVal returns a boolean value, defaulting when absent or unparseable.
func boolVal(p map[string]any, key string, def bool) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case string:
		if b, err := strconv.ParseBool(strings.ToLower(v)); err == nil {
			return b
		}
	}
	return def
}

// strList normalizes a list attribute: JSON arrays of strings, a single
// string, or a comma-separated string all yield a flat slice.
func strList(p map[string]any, keys ...string) []string {
	for _, k := range keys {
		switch v := p[k].(type) {
		case []any:
			out := make([]string, 0, len(v))
			for _, item := range v {
				if s, ok := item.(string); ok && s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		case string:
			if v == "" {
				continue
			}
			parts := strings.Split(v, ",")
			out := make([]string, 0, len(parts))
			for _, part := range parts {
				if s := strings.TrimSpace(part); s != "" {
					out = append(out, s)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}
	return nil
}

// jsonb marshals a value for a JSONB column, mapping nil to SQL NULL.
func jsonb(v any) any {
	if v == nil {
		return nil
	}
	if s, ok := v.([]string); ok && len(s) == 0 {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}

// nullTime parses a timestamp attribute, trying RFC 3339 then a bare date.
func nullTime(p map[string]any, keys ...string) any {
	s := str(p, keys...)
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return nil
}

// nullDate parses a date attribute, accepting bare dates and timestamps.
func nullDate(p map[string]any, keys ...string) any {
	s := str(p, keys...)
	if s == "" {
		return nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Truncate(24 * time.Hour)
		}
	}
	return nil
}
