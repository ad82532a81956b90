package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// DerivedPrefix is the reserved key prefix for fields the hub computes and
// merges into stored payloads. Source fields never use it: any source key
// that would collide is escaped under EscapePrefix, preserving the original
// value verbatim.
const (
	DerivedPrefix = "x_"
	EscapePrefix  = "x_src_"
)

// Canonicalize serializes the business-relevant fields of a payload
// deterministically: excluded volatile fields and hub-derived fields are
// dropped, keys are sorted, and no incidental whitespace is emitted.
// encoding/json already sorts map keys, which gives the determinism the
// content hash needs.
func Canonicalize(payload map[string]any, exclude []string) ([]byte, error) {
	filtered := make(map[string]any, len(payload))
	excluded := make(map[string]bool, len(exclude))
	for _, k := range exclude {
		excluded[k] = true
	}
	for k, v := range payload {
		if excluded[k] || strings.HasPrefix(k, DerivedPrefix) {
			continue
		}
		filtered[k] = v
	}

	data, err := json.Marshal(filtered)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: canonicalize payload")
	}
	return data, nil
}

// ContentHash returns the change-detection fingerprint for a payload: a
// SHA-256 digest over its canonical serialization. The second return value
// reports an inconclusive canonicalization (nothing left to hash after
// exclusions); the record is then hashed over its full serialized payload so
// it is still stored, and the run flags it.
func ContentHash(payload map[string]any, exclude []string) (string, bool, error) {
	canonical, err := Canonicalize(payload, exclude)
	if err != nil {
		return "", false, err
	}

	if string(canonical) == "{}" && len(payload) > 0 {
		raw, err := json.Marshal(payload)
		if err != nil {
			return "", false, eris.Wrap(err, "ingest: serialize payload verbatim")
		}
		sum := sha256.Sum256(raw)
		return hex.EncodeToString(sum[:]), true, nil
	}

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), false, nil
}

// MergeDerived returns a copy of the payload with computed fields merged in
// under the reserved prefix. Source keys already carrying the prefix are
// moved under the escape prefix first, so originals survive verbatim and
// derived keys can never shadow source data.
func MergeDerived(payload map[string]any, derived map[string]any) map[string]any {
	merged := make(map[string]any, len(payload)+len(derived))
	for k, v := range payload {
		if strings.HasPrefix(k, DerivedPrefix) {
			merged[EscapePrefix+strings.TrimPrefix(k, DerivedPrefix)] = v
			continue
		}
		merged[k] = v
	}
	for k, v := range derived {
		merged[DerivedPrefix+k] = v
	}
	return merged
}
