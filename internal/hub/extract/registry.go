package extract

// Registry holds every extractor in a fixed order.
type Registry struct {
	extractors []Extractor
}

// NewRegistry creates a registry populated with the extractors for all ten
// typed tables.
func NewRegistry() *Registry {
	return &Registry{extractors: []Extractor{
		TDXPeople{},
		TDXDepartments{},
		TDXComputers{},
		HRPeople{},
		HRDepartments{},
		HRAwards{},
		LDAPPeople{},
		LDAPGroups{},
		MCommunityPeople{},
		MCommunityGroups{},
	}}
}

// All returns every registered extractor in order.
func (r *Registry) All() []Extractor {
	return r.extractors
}

// Select filters extractors by source system and entity types. Empty
// criteria match everything.
func (r *Registry) Select(system string, entities []string) []Extractor {
	want := make(map[string]bool, len(entities))
	for _, e := range entities {
		want[e] = true
	}

	var out []Extractor
	for _, ex := range r.extractors {
		if system != "" && ex.System() != system {
			continue
		}
		if len(want) > 0 && !want[ex.Entity()] {
			continue
		}
		out = append(out, ex)
	}
	return out
}
