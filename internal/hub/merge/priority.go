// Package merge implements the consolidate stage: cascading-fill merge of
// per-source typed records into one canonical row per business key, with a
// deduction-based quality score.
package merge

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub"
)

// entityPriorities declares source orders for one entity type. Attributes
// without their own order fall back to the default order.
type entityPriorities struct {
	Default    []string            `yaml:"default"`
	Attributes map[string][]string `yaml:"attributes"`
}

// Priorities maps entity types to their per-attribute source priority
// orders. Loaded fresh at the start of every consolidate run so policy
// changes take effect without redeploying.
type Priorities struct {
	entities map[string]entityPriorities
}

// DefaultPriorities returns the built-in priority policy: HR is
// authoritative for employment attributes, the directory for identity
// display attributes, and the asset system for everything it alone tracks.
func DefaultPriorities() *Priorities {
	return &Priorities{entities: map[string]entityPriorities{
		hub.EntityPerson: {
			Default: []string{hub.SourceHR, hub.SourceTDX, hub.SourceLDAP, hub.SourceMCommunity},
			Attributes: map[string][]string{
				"display_name": {hub.SourceMCommunity, hub.SourceLDAP, hub.SourceHR},
				"email":        {hub.SourceMCommunity, hub.SourceLDAP, hub.SourceHR, hub.SourceTDX},
				"phone":        {hub.SourceTDX, hub.SourceHR},
				"location":     {hub.SourceTDX},
			},
		},
		hub.EntityDepartment: {
			Default: []string{hub.SourceHR, hub.SourceTDX},
			Attributes: map[string][]string{
				"manager_uniqname": {hub.SourceTDX, hub.SourceHR},
			},
		},
		hub.EntityGroup: {
			Default: []string{hub.SourceMCommunity, hub.SourceLDAP},
		},
		hub.EntityComputer: {
			Default: []string{hub.SourceTDX},
		},
	}}
}

// LoadPriorities reads a priority policy from a YAML file. An empty path
// returns the built-in defaults. File entries override per entity type;
// entity types absent from the file keep their defaults.
func LoadPriorities(path string) (*Priorities, error) {
	p := DefaultPriorities()
	if path == "" {
		return p, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "merge: read priorities file %s", path)
	}

	var loaded map[string]entityPriorities
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return nil, eris.Wrapf(err, "merge: parse priorities file %s", path)
	}

	for entity, ep := range loaded {
		if len(ep.Default) == 0 {
			return nil, eris.Errorf("merge: priorities for %s: no default order", entity)
		}
		p.entities[entity] = ep
	}
	return p, nil
}

// Order returns the source consultation order for one attribute of one
// entity type.
func (p *Priorities) Order(entity, attribute string) []string {
	ep, ok := p.entities[entity]
	if !ok {
		return nil
	}
	if order, ok := ep.Attributes[attribute]; ok {
		return order
	}
	return ep.Default
}
