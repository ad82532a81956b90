package merge

import (
	"fmt"
	"strings"

	"github.com/3Bodhi/LSATS-Data-Hub-sub002/internal/config"
)

// Scorer computes deduction-based quality scores. Every deduction emits
// exactly one flag, so a score is always reconstructable from its flags.
type Scorer struct {
	weights config.QualityConfig
}

// NewScorer creates a scorer with the configured deduction weights.
func NewScorer(weights config.QualityConfig) Scorer {
	return Scorer{weights: weights}
}

// Deduction pairs a flag code with its score penalty.
type Deduction struct {
	flag   string
	amount float64
}

func (s Scorer) MissingSource(src string) Deduction {
	return Deduction{flag: "missing_source:" + src, amount: s.weights.MissingSource}
}

func (s Scorer) MissingField(attr string) Deduction {
	return Deduction{flag: "missing_field:" + attr, amount: s.weights.MissingField}
}

func (s Scorer) Conflict(attr string) Deduction {
	return Deduction{flag: "conflict:" + attr, amount: s.weights.Conflict}
}

func (s Scorer) SingleEvidence(signal string) Deduction {
	return Deduction{flag: "single_evidence:" + signal, amount: s.weights.SingleEvidence}
}

func (s Scorer) CompositeFieldGap(attr string) Deduction {
	return Deduction{flag: "composite_field_gap:" + attr, amount: s.weights.CompositeFieldGap}
}

// Score applies the deductions to a starting score of 1.0, clamped to
// [0, 1], and returns the final score with its ordered flag list.
func (s Scorer) Score(deds []Deduction) (float64, []string) {
	score := 1.0
	flags := make([]string, 0, len(deds))
	for _, d := range deds {
		score -= d.amount
		flags = append(flags, d.flag)
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score, flags
}

// normalize canonicalizes a value for cross-source comparison: case and
// surrounding whitespace never count as a conflict.
func normalize(v any) string {
	switch t := v.(type) {
	case string:
		return strings.ToLower(strings.TrimSpace(t))
	case []byte:
		return strings.ToLower(strings.TrimSpace(string(t)))
	default:
		return strings.ToLower(fmt.Sprint(t))
	}
}
