package similarity

import (
	"regexp"
	"strings"

	"github.com/agnivade/levenshtein"

	"github.com/perkscan/benefit-radar/internal/models"
)

var (
	whitespace    = regexp.MustCompile(`\s+`)
	specialChars  = regexp.MustCompile(`[^\p{L}\p{N}\s%$]`)
	currencyRuns  = regexp.MustCompile(`(aed|usd|eur|gbp)\s*`)
	percentGap    = regexp.MustCompile(`(\d)\s*%`)
	thousandComma = regexp.MustCompile(`(\d),(\d)`)
)

// NormalizeText lowercases, collapses whitespace and strips punctuation so
// two phrasings of the same benefit compare equal.
func NormalizeText(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	text = whitespace.ReplaceAllString(text, " ")
	text = specialChars.ReplaceAllString(text, "")
	return text
}

// NormalizeValue normalizes benefit values: currency prefix spacing,
// percentage spacing, thousands separators.
func NormalizeValue(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = currencyRuns.ReplaceAllString(value, "$1 ")
	value = percentGap.ReplaceAllString(value, "$1%")
	for thousandComma.MatchString(value) {
		value = thousandComma.ReplaceAllString(value, "$1$2")
	}
	return value
}

// TextSimilarity returns a ratio in [0,1] between two free-text fields.
// Equal normalized forms score 1.0, containment scores 0.9, anything else is
// scored by edit-distance ratio.
func TextSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}

	na := NormalizeText(a)
	nb := NormalizeText(b)
	if na == "" || nb == "" {
		return 0
	}
	if na == nb {
		return 1.0
	}
	if strings.Contains(na, nb) || strings.Contains(nb, na) {
		return 0.9
	}

	dist := levenshtein.ComputeDistance(na, nb)
	longest := len([]rune(na))
	if l := len([]rune(nb)); l > longest {
		longest = l
	}
	if longest == 0 {
		return 0
	}
	return 1.0 - float64(dist)/float64(longest)
}

// Similar scores whether two candidates describe the same real-world benefit.
// Title similarity dominates, value equality and description similarity add;
// same-category pairs get a small boost. Exact normalized-title equality
// short-circuits to a perfect match.
func Similar(a, b models.Candidate, threshold float64) (bool, float64) {
	if NormalizeText(a.Title) != "" && NormalizeText(a.Title) == NormalizeText(b.Title) {
		return true, 1.0
	}

	titleSim := TextSimilarity(a.Title, b.Title)
	valueSim := 0.0
	if NormalizeValue(a.Value) == NormalizeValue(b.Value) && a.Value != "" && b.Value != "" {
		valueSim = 1.0
	}
	descSim := TextSimilarity(a.Description, b.Description)

	score := titleSim*0.5 + valueSim*0.3 + descSim*0.2
	if a.Category == b.Category {
		score = min(score*1.1, 1.0)
	}

	return score >= threshold, score
}
