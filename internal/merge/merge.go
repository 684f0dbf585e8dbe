// Package merge combines two matched candidates into one richer record.
package merge

import (
	"github.com/perkscan/benefit-radar/internal/models"
	"github.com/perkscan/benefit-radar/internal/similarity"
)

// Merge combines primary and secondary into a new Candidate. List fields are
// unioned (primary's items first, deduplicated by normalized text), scalar
// fields keep primary's value unless empty, confidence takes the max.
// The output's field contents do not depend on argument order apart from the
// id kept as base; callers must rely on provenance, not id, for traceability.
func Merge(primary, secondary models.Candidate) models.Candidate {
	out := primary

	out.Conditions = unionLists(primary.Conditions, secondary.Conditions)
	out.Merchants = unionLists(primary.Merchants, secondary.Merchants)
	out.Partners = unionLists(primary.Partners, secondary.Partners)
	out.EligibleCategories = unionLists(primary.EligibleCategories, secondary.EligibleCategories)

	if out.Value == "" {
		out.Value = secondary.Value
	}
	if out.NumericValue == nil {
		out.NumericValue = secondary.NumericValue
	}
	if out.Unit == "" {
		out.Unit = secondary.Unit
	}
	if out.Frequency == "" {
		out.Frequency = secondary.Frequency
	}
	if out.MinimumSpend == "" {
		out.MinimumSpend = secondary.MinimumSpend
	}
	if out.MaximumBenefit == "" {
		out.MaximumBenefit = secondary.MaximumBenefit
	}
	if out.Description == "" {
		out.Description = secondary.Description
	}

	out.Confidence = max(primary.Confidence, secondary.Confidence)
	out.Tier = models.TierFor(out.Confidence)

	if isModelDerived(primary.Method) || isModelDerived(secondary.Method) {
		out.Method = models.MethodHybrid
	}

	out.Provenance = unionProvenance(primary, secondary)

	return out
}

func isModelDerived(m models.ExtractionMethod) bool {
	return m == models.MethodModel || m == models.MethodHybrid
}

func unionLists(primary, secondary []string) []string {
	seen := make(map[string]struct{}, len(primary)+len(secondary))
	var combined []string
	for _, item := range append(append([]string{}, primary...), secondary...) {
		if item == "" {
			continue
		}
		norm := similarity.NormalizeText(item)
		if norm == "" {
			continue
		}
		if _, ok := seen[norm]; ok {
			continue
		}
		seen[norm] = struct{}{}
		combined = append(combined, item)
	}
	return combined
}

func unionProvenance(primary, secondary models.Candidate) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(ids ...string) {
		for _, id := range ids {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	add(primary.Provenance...)
	add(primary.ID)
	add(secondary.Provenance...)
	add(secondary.ID)
	return out
}
