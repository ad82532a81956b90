package source

import (
	"github.com/rotisserie/eris"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/config"
	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/fetcher"
)

// Registry maps feed names to their adapters.
type Registry struct {
	sources map[string]Source
	order   []string // insertion order for deterministic iteration
}

// NewRegistry creates a registry populated with every feed from the four
// systems of record, each on its own rate-limited HTTP client.
func NewRegistry(cfg *config.Config) *Registry {
	r := &Registry{sources: make(map[string]Source)}

	tdx := fetcher.NewHTTPClient(cfg.TDX.BaseURL, fetcher.HTTPOptions{
		MaxRetries: cfg.Ingest.MaxRetries,
		Headers:    map[string]string{"Authorization": "Bearer " + cfg.TDX.Token},
	})
	hr := fetcher.NewHTTPClient(cfg.HR.BaseURL, fetcher.HTTPOptions{
		MaxRetries: cfg.Ingest.MaxRetries,
		Headers:    map[string]string{"X-Api-Key": cfg.HR.Key},
	})
	ldap := fetcher.NewHTTPClient(cfg.LDAP.BaseURL, fetcher.HTTPOptions{
		MaxRetries:        cfg.Ingest.MaxRetries,
		Headers:           map[string]string{"Authorization": "Bearer " + cfg.LDAP.Token},
		RequestsPerSecond: 5,
	})
	mc := fetcher.NewHTTPClient(cfg.MCommunity.BaseURL, fetcher.HTTPOptions{
		MaxRetries:        cfg.Ingest.MaxRetries,
		Headers:           map[string]string{"Authorization": "Bearer " + cfg.MCommunity.Token},
		RequestsPerSecond: 5,
	})

	r.Register(&TDXFeed{client: tdx, appID: cfg.TDX.AppID, entity: "person", path: "people"})
	r.Register(&TDXFeed{client: tdx, appID: cfg.TDX.AppID, entity: "department", path: "accounts"})
	r.Register(&TDXFeed{client: tdx, appID: cfg.TDX.AppID, entity: "computer", path: "assets"})
	r.Register(&HRFeed{client: hr, entity: "person", path: "employees"})
	r.Register(&HRFeed{client: hr, entity: "department", path: "departments"})
	r.Register(&HRFeed{client: hr, entity: "award", path: "research/awards"})
	r.Register(&LDAPFeed{client: ldap, baseDN: cfg.LDAP.BaseDN, entity: "person"})
	r.Register(&LDAPFeed{client: ldap, baseDN: cfg.LDAP.BaseDN, entity: "group"})
	r.Register(&MCommunityFeed{client: mc, entity: "person"})
	r.Register(&MCommunityFeed{client: mc, entity: "group"})

	return r
}

// Register adds a feed to the registry.
func (r *Registry) Register(s Source) {
	name := s.Name()
	r.sources[name] = s
	r.order = append(r.order, name)
}

// Get returns a feed by name.
func (r *Registry) Get(name string) (Source, error) {
	s, ok := r.sources[name]
	if !ok {
		return nil, eris.Errorf("source: unknown feed %q", name)
	}
	return s, nil
}

// Select returns feeds matching the given criteria in registration order.
// If system is non-empty, only feeds from that system are returned. If names
// is non-empty, only those named feeds are returned.
func (r *Registry) Select(system string, names []string) ([]Source, error) {
	if len(names) > 0 {
		var out []Source
		for _, name := range names {
			s, err := r.Get(name)
			if err != nil {
				return nil, err
			}
			if system != "" && s.System() != system {
				continue
			}
			out = append(out, s)
		}
		return out, nil
	}

	var out []Source
	for _, name := range r.order {
		s := r.sources[name]
		if system != "" && s.System() != system {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
