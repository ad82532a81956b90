package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalize_Deterministic(t *testing.T) {
	payload := map[string]any{
		"uid":        "jdoe",
		"first_name": "Jane",
		"nested":     map[string]any{"b": 2, "a": 1},
	}

	a, err := Canonicalize(payload, nil)
	require.NoError(t, err)
	b, err := Canonicalize(payload, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// Keys are sorted, no incidental whitespace.
	assert.Equal(t, `{"first_name":"Jane","nested":{"a":1,"b":2},"uid":"jdoe"}`, string(a))
}

func TestCanonicalize_DropsExcludedAndDerived(t *testing.T) {
	payload := map[string]any{
		"uid":            "jdoe",
		"ModifiedDate":   "2026-08-29T01:02:03Z",
		"x_full_name":    "Jane Doe",
		"x_src_whatever": "kept out",
	}

	data, err := Canonicalize(payload, []string{"ModifiedDate"})
	require.NoError(t, err)
	assert.Equal(t, `{"uid":"jdoe"}`, string(data))
}

func TestContentHash_VolatileFieldImmunity(t *testing.T) {
	exclude := []string{"ModifiedDate"}
	before := map[string]any{"uid": "jdoe", "title": "Lab Manager", "ModifiedDate": "2026-08-01"}
	after := map[string]any{"uid": "jdoe", "title": "Lab Manager", "ModifiedDate": "2026-08-29"}

	h1, inc1, err := ContentHash(before, exclude)
	require.NoError(t, err)
	h2, inc2, err := ContentHash(after, exclude)
	require.NoError(t, err)

	assert.False(t, inc1)
	assert.False(t, inc2)
	assert.Equal(t, h1, h2)
}

func TestContentHash_RealChangeChangesHash(t *testing.T) {
	h1, _, err := ContentHash(map[string]any{"uid": "jdoe", "title": "Lab Manager"}, nil)
	require.NoError(t, err)
	h2, _, err := ContentHash(map[string]any{"uid": "jdoe", "title": "Research Lab Specialist"}, nil)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
}

func TestContentHash_Inconclusive(t *testing.T) {
	// Every field excluded: nothing business-relevant to canonicalize, but
	// the record is still hashable verbatim.
	payload := map[string]any{"ModifiedDate": "2026-08-29", "RefreshedAt": "2026-08-29"}
	hash, inconclusive, err := ContentHash(payload, []string{"ModifiedDate", "RefreshedAt"})
	require.NoError(t, err)
	assert.True(t, inconclusive)
	assert.NotEmpty(t, hash)
}

func TestMergeDerived_ReservedPrefix(t *testing.T) {
	payload := map[string]any{
		"uid":      "jdoe",
		"x_rogue":  "source value",
		"LastName": "Doe",
	}
	merged := MergeDerived(payload, map[string]any{"full_name": "Jane Doe"})

	assert.Equal(t, "jdoe", merged["uid"])
	assert.Equal(t, "Jane Doe", merged["x_full_name"])
	// The colliding source key is preserved verbatim under the escape prefix.
	assert.Equal(t, "source value", merged["x_src_rogue"])
	_, rogue := merged["x_rogue"]
	assert.False(t, rogue)

	// Originals are untouched.
	assert.Equal(t, "source value", payload["x_rogue"])
}

func TestMergeDerived_NilDerived(t *testing.T) {
	payload := map[string]any{"uid": "jdoe"}
	merged := MergeDerived(payload, nil)
	assert.Equal(t, map[string]any{"uid": "jdoe"}, merged)
}
