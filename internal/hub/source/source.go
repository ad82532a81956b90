// Package source defines the adapter contract for the systems of record and
// the thin JSON-over-HTTP adapters implementing it.
package source

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
)

// Strategy selects how the ingest stage detects change for a source.
type Strategy string

const (
	// StrategyHash canonicalizes and hashes business-relevant payload fields;
	// used when the source has no reliable modification marker.
	StrategyHash Strategy = "hash"
	// StrategyTimestamp queries only records changed since the last
	// successful run; every fetched record is a real change.
	StrategyTimestamp Strategy = "timestamp"
)

// Record is one raw record fetched from a system of record.
type Record struct {
	ExternalID string
	Payload    map[string]any
}

// Source is the adapter contract one (system, entity type) feed implements.
type Source interface {
	// Name returns the unique feed identifier (e.g., "tdx_people").
	Name() string

	// System returns the source system name (e.g., "tdx").
	System() string

	// Entity returns the entity type this feed carries (e.g., "person").
	Entity() string

	// Strategy returns the change-detection strategy the feed supports.
	Strategy() Strategy

	// FetchAll returns every record the source currently holds.
	FetchAll(ctx context.Context) ([]Record, error)

	// FetchSince returns records modified since the given time. Only
	// meaningful for StrategyTimestamp feeds; hash feeds return an error.
	FetchSince(ctx context.Context, since time.Time) ([]Record, error)

	// ExcludeFields lists volatile payload fields (sync/audit metadata) that
	// must not participate in content hashing.
	ExcludeFields() []string

	// Derive computes fields from the payload that the ingest stage merges
	// back in under the reserved prefix. Keys are returned unprefixed.
	Derive(payload map[string]any) map[string]any
}

// ErrNoTimestampSupport is returned by FetchSince on hash-strategy feeds.
var ErrNoTimestampSupport = eris.New("source: feed has no modification marker")
