// Package aggregate implements the final stage: composite lab entities
// resolved from independent evidence signals, membership junctions, and
// rule-based role classification.
package aggregate

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/hub/merge"
)

// Evidence signal names carried in the data_source tag.
const (
	evidenceAwards    = "awards"
	evidenceHierarchy = "hierarchy"

	DataSourceAwardsOnly    = "awards_only"
	DataSourceHierarchyOnly = "hierarchy_only"
	DataSourceBoth          = "awards+hierarchy"
)

// Membership role types.
const (
	RolePI     = "pi"
	RoleCoPI   = "co_pi"
	RoleMember = "member"
)

// Person is the slice of a canonical person the aggregator needs.
type Person struct {
	Uniqname     string
	DisplayName  string
	Title        string
	DepartmentID string
	Supervisor   string
	Status       string
}

// Award is the slice of a research award the aggregator needs.
type Award struct {
	AwardID      string
	PIUniqname   string
	CoPIs        []string
	DepartmentID string
	Amount       float64
}

// Member is one person's role in a lab, with the evidence signal that put
// them there.
type Member struct {
	Uniqname   string
	Role       string
	Provenance string
}

// Lab is a composite entity keyed by its principal investigator. It exists
// only because at least one evidence signal says it does; the DataSource tag
// records which.
type Lab struct {
	ID           uuid.UUID
	PIUniqname   string
	Name         string
	DepartmentID string
	DataSource   string
	Members      []Member
	AwardCount   int
	TotalAmount  float64
	Score        float64
	Flags        []string
}

// piTitleMarkers identify a supervisor as a principal investigator from
// their canonical title alone, independent of award evidence.
var piTitleMarkers = []string{"professor", "principal investigator", "research scientist"}

func titleIsPI(title string) bool {
	t := strings.ToLower(title)
	for _, marker := range piTitleMarkers {
		if strings.Contains(t, marker) {
			return true
		}
	}
	return false
}

// BuildLabs resolves composite labs from the two evidence signals:
//
//   - awards: every PI named on a research award anchors a lab; co-PIs
//     become members.
//   - hierarchy: every PI-titled supervisor with at least one direct report
//     anchors a lab; direct reports become members.
//
// The lab key set is the union of both signals. existing maps PI uniqnames
// to previously assigned lab IDs so identifiers stay stable across runs.
// Output is sorted by PI uniqname.
func BuildLabs(people map[string]Person, awards []Award, existing map[string]uuid.UUID, scorer merge.Scorer) []Lab {
	awardPIs := make(map[string]bool)
	awardsByPI := make(map[string][]Award)
	for _, a := range awards {
		awardPIs[a.PIUniqname] = true
		awardsByPI[a.PIUniqname] = append(awardsByPI[a.PIUniqname], a)
	}

	reports := make(map[string][]string)
	for _, p := range people {
		if p.Supervisor != "" {
			reports[p.Supervisor] = append(reports[p.Supervisor], p.Uniqname)
		}
	}
	hierarchyPIs := make(map[string]bool)
	for sup := range reports {
		if titleIsPI(people[sup].Title) {
			hierarchyPIs[sup] = true
		}
	}

	pis := make([]string, 0, len(awardPIs)+len(hierarchyPIs))
	seen := make(map[string]bool)
	for pi := range awardPIs {
		if !seen[pi] {
			pis = append(pis, pi)
			seen[pi] = true
		}
	}
	for pi := range hierarchyPIs {
		if !seen[pi] {
			pis = append(pis, pi)
			seen[pi] = true
		}
	}
	sort.Strings(pis)

	labs := make([]Lab, 0, len(pis))
	for _, pi := range pis {
		labs = append(labs, buildLab(pi, people, awardsByPI[pi], reports[pi],
			awardPIs[pi], hierarchyPIs[pi], existing[pi], scorer))
	}
	return labs
}

func buildLab(pi string, people map[string]Person, awards []Award, reports []string, fromAwards, fromHierarchy bool, id uuid.UUID, scorer merge.Scorer) Lab {
	lab := Lab{ID: id, PIUniqname: pi}
	if lab.ID == uuid.Nil {
		lab.ID = uuid.New()
	}

	switch {
	case fromAwards && fromHierarchy:
		lab.DataSource = DataSourceBoth
	case fromAwards:
		lab.DataSource = DataSourceAwardsOnly
	default:
		lab.DataSource = DataSourceHierarchyOnly
	}

	piPerson := people[pi]
	if piPerson.DisplayName != "" {
		lab.Name = piPerson.DisplayName + " Lab"
	}
	lab.DepartmentID = piPerson.DepartmentID
	if lab.DepartmentID == "" {
		for _, a := range awards {
			if a.DepartmentID != "" {
				lab.DepartmentID = a.DepartmentID
				break
			}
		}
	}

	lab.addMember(pi, RolePI, lab.DataSource)
	for _, a := range awards {
		lab.AwardCount++
		lab.TotalAmount += a.Amount
		for _, copi := range a.CoPIs {
			lab.addMember(copi, RoleCoPI, evidenceAwards)
		}
	}
	sort.Strings(reports)
	for _, r := range reports {
		lab.addMember(r, RoleMember, evidenceHierarchy)
	}

	// Composite legitimacy depends on which signals agree the lab exists,
	// so a single evidence source deducts more than any field gap.
	var deds []merge.Deduction
	if lab.DataSource == DataSourceAwardsOnly {
		deds = append(deds, scorer.SingleEvidence(evidenceAwards))
	}
	if lab.DataSource == DataSourceHierarchyOnly {
		deds = append(deds, scorer.SingleEvidence(evidenceHierarchy))
	}
	if lab.Name == "" {
		deds = append(deds, scorer.CompositeFieldGap("name"))
	}
	if lab.DepartmentID == "" {
		deds = append(deds, scorer.CompositeFieldGap("department_id"))
	}
	lab.Score, lab.Flags = scorer.Score(deds)

	return lab
}

// addMember appends a member unless that (uniqname, role) pair is already
// present; a co-PI on two awards appears once.
func (l *Lab) addMember(uniqname, role, provenance string) {
	for _, m := range l.Members {
		if m.Uniqname == uniqname && m.Role == role {
			return
		}
	}
	l.Members = append(l.Members, Member{Uniqname: uniqname, Role: role, Provenance: provenance})
}

// MemberCount counts distinct people in the lab across all roles.
func (l *Lab) MemberCount() int {
	seen := make(map[string]bool, len(l.Members))
	for _, m := range l.Members {
		seen[m.Uniqname] = true
	}
	return len(seen)
}
