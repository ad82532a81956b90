package aggregate

import (
	"sort"
	"strings"
)

// Rule assigns a role category when its predicate matches a member's title
// and status codes. Rules are evaluated top to bottom; the first match wins.
// Lower priority numbers mean higher confidence.
type Rule struct {
	Match    func(title string, codes []string) bool
	Category string
	Priority int
	Reason   string
}

func titleContains(substr string) func(string, []string) bool {
	return func(title string, _ []string) bool {
		return strings.Contains(strings.ToLower(title), substr)
	}
}

// DefaultRules returns the built-in classification cascade. Adding a rule
// never changes the evaluation engine.
func DefaultRules() []Rule {
	return []Rule{
		{
			Match:    titleContains("lab manager"),
			Category: "lab_manager",
			Priority: 1,
			Reason:   "title contains 'lab manager'",
		},
		{
			Match:    titleContains("laboratory manager"),
			Category: "lab_manager",
			Priority: 1,
			Reason:   "title contains 'laboratory manager'",
		},
		{
			Match:    titleContains("research lab specialist"),
			Category: "lab_specialist",
			Priority: 2,
			Reason:   "title contains 'research lab specialist'",
		},
		{
			Match:    titleContains("research laboratory tech"),
			Category: "lab_specialist",
			Priority: 3,
			Reason:   "title contains 'research laboratory tech'",
		},
		{
			Match:    titleContains("administrative specialist"),
			Category: "lab_administrator",
			Priority: 5,
			Reason:   "title contains 'administrative specialist'",
		},
		{
			Match: func(title string, codes []string) bool {
				if !strings.Contains(strings.ToLower(title), "senior") {
					return false
				}
				for _, c := range codes {
					if strings.EqualFold(c, "active") {
						return true
					}
				}
				return false
			},
			Category: "senior_staff",
			Priority: 10,
			Reason:   "senior title with active status",
		},
	}
}

// Classification is one persisted classifier result.
type Classification struct {
	Uniqname string
	Category string
	Priority int
	Reason   string
}

// Candidate is a lab member up for classification.
type Candidate struct {
	Uniqname string
	Title    string
	Codes    []string
}

// Classify evaluates the rule cascade over a lab's candidates and returns
// at most maxResults classifications. A candidate matching no rule is
// excluded, not an error. Eligible candidates are ranked by priority
// ascending with uniqname as the deterministic tiebreak; ties beyond the
// cap are dropped.
func Classify(rules []Rule, candidates []Candidate, maxResults int) []Classification {
	var eligible []Classification
	for _, c := range candidates {
		for _, r := range rules {
			if r.Match(c.Title, c.Codes) {
				eligible = append(eligible, Classification{
					Uniqname: c.Uniqname,
					Category: r.Category,
					Priority: r.Priority,
					Reason:   r.Reason,
				})
				break
			}
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		if eligible[i].Priority != eligible[j].Priority {
			return eligible[i].Priority < eligible[j].Priority
		}
		return eligible[i].Uniqname < eligible[j].Uniqname
	})

	if maxResults > 0 && len(eligible) > maxResults {
		eligible = eligible[:maxResults]
	}
	return eligible
}
