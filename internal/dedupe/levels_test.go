package dedupe_test

import (
	"testing"

	"github.com/perkscan/benefit-radar/internal/dedupe"
	"github.com/perkscan/benefit-radar/internal/models"
	"github.com/stretchr/testify/require"
)

func cand(id, category, title, value string, method models.ExtractionMethod, confidence float64) models.Candidate {
	return models.Candidate{
		ID:         id,
		Category:   category,
		Title:      title,
		Value:      value,
		Method:     method,
		Confidence: confidence,
		Tier:       models.TierFor(confidence),
		Provenance: []string{id},
	}
}

func TestWithinDocumentMergesRuleAndModel(t *testing.T) {
	rule := cand("r1", "cashback", "5% Cashback on Dining", "5%", models.MethodRule, 0.6)
	model := cand("m1", "cashback", "5% cashback on dining", "5%", models.MethodModel, 0.75)

	out, stats := dedupe.WithinDocument([]models.Candidate{rule, model})

	require.Len(t, out, 1)
	require.Equal(t, 2, stats.Input)
	require.Equal(t, 1, stats.Output)
	require.Equal(t, 1, stats.Merged)

	merged := out[0]
	require.Equal(t, models.MethodHybrid, merged.Method)
	require.Equal(t, 0.75, merged.Confidence)
	require.ElementsMatch(t, []string{"r1", "m1"}, merged.Provenance)
}

func TestWithinDocumentKeepsDistinctBenefits(t *testing.T) {
	a := cand("a", "cashback", "5% cashback on dining", "5%", models.MethodRule, 0.6)
	b := cand("b", "cashback", "airport transfers twice a year", "2", models.MethodRule, 0.6)

	out, stats := dedupe.WithinDocument([]models.Candidate{a, b})
	require.Len(t, out, 2)
	require.Equal(t, 0, stats.Merged)
}

func TestWithinDocumentIdempotent(t *testing.T) {
	in := []models.Candidate{
		cand("r1", "cashback", "5% Cashback on Dining", "5%", models.MethodRule, 0.6),
		cand("m1", "cashback", "5% cashback on dining", "5%", models.MethodModel, 0.75),
		cand("m2", "lounge_access", "Airport Lounge Access", "4 visits per year", models.MethodModel, 0.75),
	}

	once, _ := dedupe.WithinDocument(in)
	twice, stats := dedupe.WithinDocument(once)

	require.Equal(t, once, twice)
	require.Equal(t, 0, stats.Merged)
}

func TestWithinDocumentSingleCandidatePassthrough(t *testing.T) {
	a := cand("a", "cashback", "5% cashback", "5%", models.MethodRule, 0.6)
	out, stats := dedupe.WithinDocument([]models.Candidate{a})
	require.Len(t, out, 1)
	require.Equal(t, models.DedupStats{Input: 1, Output: 1}, stats)
}

func TestAcrossDocumentsExactKeyGrouping(t *testing.T) {
	doc1 := cand("a", "cashback", "5% Cashback on Dining", "5%", models.MethodModel, 0.75)
	doc2 := cand("b", "cashback", "5% cashback on dining!", "5 %", models.MethodModel, 0.8)

	out, stats := dedupe.AcrossDocuments([]models.Candidate{doc1, doc2})

	require.Len(t, out, 1)
	require.Equal(t, 1, stats.Merged)
	// Higher-confidence member seeds the fold.
	require.Equal(t, 0.8, out[0].Confidence)
	require.Equal(t, "b", out[0].ID)
	require.ElementsMatch(t, []string{"a", "b"}, out[0].Provenance)
}

func TestAcrossDocumentsFuzzySecondPass(t *testing.T) {
	a := cand("a", "lounge_access", "complimentary airport lounge access", "unlimited", models.MethodModel, 0.75)
	a.Description = "access to participating lounges"
	b := cand("b", "lounge_access", "complimentary airport lounge access worldwide", "unlimited", models.MethodModel, 0.7)
	b.Description = "access to participating lounges"

	out, stats := dedupe.AcrossDocuments([]models.Candidate{a, b})

	// Different exact keys, but containment makes the fuzzy pass merge them.
	require.Len(t, out, 1)
	require.Equal(t, 1, stats.Merged)
}

func TestAcrossCategoriesPriorityWinsAttribution(t *testing.T) {
	cashback := cand("a", "cashback", "10% off at restaurants", "10%", models.MethodModel, 0.9)
	dining := cand("b", "dining", "10% off at restaurants", "10%", models.MethodModel, 0.7)

	out, stats := dedupe.AcrossCategories(
		[]models.Candidate{cashback, dining},
		[]string{"dining", "cashback"},
	)

	require.Len(t, out, 1)
	require.Equal(t, 1, stats.Merged)
	// Priority outranks confidence for attribution.
	require.Equal(t, "dining", out[0].Category)
	require.Equal(t, 0.9, out[0].Confidence)
	require.ElementsMatch(t, []string{"a", "b"}, out[0].Provenance)
}

func TestAcrossCategoriesUnlistedCategorySortsLast(t *testing.T) {
	listed := cand("a", "cashback", "summer offer", "5%", models.MethodModel, 0.5)
	unlisted := cand("b", "mystery", "summer offer", "5%", models.MethodModel, 0.99)

	out, _ := dedupe.AcrossCategories(
		[]models.Candidate{unlisted, listed},
		[]string{"cashback"},
	)

	require.Len(t, out, 1)
	require.Equal(t, "cashback", out[0].Category)
}

func TestAcrossCategoriesDifferentValuesStaySeparate(t *testing.T) {
	a := cand("a", "cashback", "dining offer", "5%", models.MethodModel, 0.8)
	b := cand("b", "dining", "dining offer", "20%", models.MethodModel, 0.8)

	out, stats := dedupe.AcrossCategories([]models.Candidate{a, b}, []string{"cashback", "dining"})
	require.Len(t, out, 2)
	require.Equal(t, 0, stats.Merged)
}

func TestAcrossCategoriesUntitledGroupByValue(t *testing.T) {
	a := cand("a", "cashback", "", "5%", models.MethodModel, 0.8)
	b := cand("b", "dining", "", "5%", models.MethodModel, 0.8)
	c := cand("c", "dining", "real title", "5%", models.MethodModel, 0.8)

	out, _ := dedupe.AcrossCategories([]models.Candidate{a, b, c}, nil)
	// Untitled candidates group together only when values also match.
	require.Len(t, out, 2)
}
