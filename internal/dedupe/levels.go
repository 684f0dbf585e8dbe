// Package dedupe reconciles near-duplicate candidates at three levels:
// within one document, across documents of one category, and across
// categories. Each level is progressively looser.
package dedupe

import (
	"sort"

	"github.com/perkscan/benefit-radar/internal/merge"
	"github.com/perkscan/benefit-radar/internal/models"
	"github.com/perkscan/benefit-radar/internal/similarity"
)

const (
	// Same-document candidates are cheap to confirm as duplicates.
	withinDocumentThreshold = 0.7
	// Different documents may phrase the same benefit differently.
	acrossDocumentsThreshold = 0.8
)

// WithinDocument merges duplicate candidates produced by rule- and
// model-based extraction over the same document (level 1).
func WithinDocument(candidates []models.Candidate) ([]models.Candidate, models.DedupStats) {
	stats := models.DedupStats{Input: len(candidates)}
	if len(candidates) <= 1 {
		stats.Output = len(candidates)
		return candidates, stats
	}

	out, merged := clusterAndMerge(candidates, withinDocumentThreshold)
	stats.Output = len(out)
	stats.Merged = merged
	return out, stats
}

// AcrossDocuments merges duplicates across all documents of one category
// (level 2). A first pass groups exact normalized title+value matches, a
// second pass runs fuzzy clustering over the reduced set.
func AcrossDocuments(candidates []models.Candidate) ([]models.Candidate, models.DedupStats) {
	stats := models.DedupStats{Input: len(candidates)}
	if len(candidates) <= 1 {
		stats.Output = len(candidates)
		return candidates, stats
	}

	groups := make(map[string][]models.Candidate)
	var order []string
	for _, c := range candidates {
		key := similarity.NormalizeText(c.Title) + "|" + similarity.NormalizeValue(c.Value)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], c)
	}

	reduced := make([]models.Candidate, 0, len(groups))
	for _, key := range order {
		folded, merged := foldByConfidence(groups[key])
		stats.Merged += merged
		reduced = append(reduced, folded)
	}

	out, merged := clusterAndMerge(reduced, acrossDocumentsThreshold)
	stats.Merged += merged
	stats.Output = len(out)
	return out, stats
}

// AcrossCategories merges duplicates that independent categories extracted
// from the same content (level 3). Candidates sharing a normalized title and
// value are true duplicates; the fold order follows the caller-supplied
// category priority list, then descending confidence, so the priority winner
// keeps the category attribution.
func AcrossCategories(candidates []models.Candidate, categoryPriority []string) ([]models.Candidate, models.DedupStats) {
	stats := models.DedupStats{Input: len(candidates)}
	if len(candidates) <= 1 {
		stats.Output = len(candidates)
		return candidates, stats
	}

	titleGroups := make(map[string][]models.Candidate)
	var titleOrder []string
	for _, c := range candidates {
		title := similarity.NormalizeText(c.Title)
		if title == "" {
			title = "_untitled_"
		}
		if _, ok := titleGroups[title]; !ok {
			titleOrder = append(titleOrder, title)
		}
		titleGroups[title] = append(titleGroups[title], c)
	}

	rank := make(map[string]int, len(categoryPriority))
	for i, name := range categoryPriority {
		rank[name] = i
	}
	priorityOf := func(c models.Candidate) int {
		if r, ok := rank[c.Category]; ok {
			return r
		}
		return len(categoryPriority) + 1
	}

	var out []models.Candidate
	for _, title := range titleOrder {
		group := titleGroups[title]
		if len(group) == 1 {
			out = append(out, group[0])
			continue
		}

		valueGroups := make(map[string][]models.Candidate)
		var valueOrder []string
		for _, c := range group {
			value := similarity.NormalizeValue(c.Value)
			if value == "" {
				value = "_no_value_"
			}
			if _, ok := valueGroups[value]; !ok {
				valueOrder = append(valueOrder, value)
			}
			valueGroups[value] = append(valueGroups[value], c)
		}

		for _, value := range valueOrder {
			vgroup := valueGroups[value]
			if len(vgroup) == 1 {
				out = append(out, vgroup[0])
				continue
			}

			sort.SliceStable(vgroup, func(i, j int) bool {
				pi, pj := priorityOf(vgroup[i]), priorityOf(vgroup[j])
				if pi != pj {
					return pi < pj
				}
				return vgroup[i].Confidence > vgroup[j].Confidence
			})

			folded := vgroup[0]
			for _, other := range vgroup[1:] {
				folded = merge.Merge(folded, other)
				stats.Merged++
			}
			out = append(out, folded)
		}
	}

	stats.Output = len(out)
	return out, stats
}

// clusterAndMerge greedily clusters: the first unconsumed candidate absorbs
// every later one similar to it, and each cluster folds into one candidate
// seeded with its highest-confidence member.
func clusterAndMerge(candidates []models.Candidate, threshold float64) ([]models.Candidate, int) {
	used := make([]bool, len(candidates))
	var out []models.Candidate
	mergedCount := 0

	for i, c := range candidates {
		if used[i] {
			continue
		}
		used[i] = true

		cluster := []models.Candidate{c}
		for j := i + 1; j < len(candidates); j++ {
			if used[j] {
				continue
			}
			if ok, _ := similarity.Similar(c, candidates[j], threshold); ok {
				cluster = append(cluster, candidates[j])
				used[j] = true
			}
		}

		folded, merged := foldByConfidence(cluster)
		mergedCount += merged
		out = append(out, folded)
	}

	return out, mergedCount
}

func foldByConfidence(cluster []models.Candidate) (models.Candidate, int) {
	if len(cluster) == 1 {
		return cluster[0], 0
	}
	sorted := append([]models.Candidate{}, cluster...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Confidence > sorted[j].Confidence
	})
	folded := sorted[0]
	for _, other := range sorted[1:] {
		folded = merge.Merge(folded, other)
	}
	return folded, len(sorted) - 1
}
