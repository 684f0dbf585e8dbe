package content

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

var noisePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)choose your language.*`),
	regexp.MustCompile(`(?i)^our websites.*`),
	regexp.MustCompile(`(?i)copyright.*`),
	regexp.MustCompile(`(?i)all rights reserved.*`),
	regexp.MustCompile(`(?i)privacy policy\s*$`),
	regexp.MustCompile(`(?i)cookie settings.*`),
	regexp.MustCompile(`^\s*\|\s*$`),
}

var (
	blankLines = regexp.MustCompile(`\n{3,}`)
	spaces     = regexp.MustCompile(`[ \t]+`)
)

// benefitIndicators are generic tokens that mark benefit-rich paragraphs
// regardless of category.
var benefitIndicators = []string{
	"free", "complimentary", "discount", "%", "offer",
	"eligible", "valid", "terms", "conditions", "benefit",
}

// HighValueURLPatterns mark pages (terms, fee schedules, key facts) that get
// a flat relevance bonus even without keyword hits.
var HighValueURLPatterns = []string{
	"terms", "conditions", "key-facts", "keyfacts", "fee-schedule",
	"fee_schedule", "tariff", "charges", "schedule-of-charges",
}

// RemoveNoise strips navigation, footer, and language-selector lines.
func RemoveNoise(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		noisy := false
		for _, p := range noisePatterns {
			if p.MatchString(strings.TrimSpace(line)) {
				noisy = true
				break
			}
		}
		if !noisy {
			kept = append(kept, line)
		}
	}
	out := strings.Join(kept, "\n")
	out = blankLines.ReplaceAllString(out, "\n\n")
	out = spaces.ReplaceAllString(out, " ")
	return strings.TrimSpace(out)
}

// Prepare selects the highest-relevance windows of text within maxChars.
// Paragraphs are scored by keyword occurrences plus benefit indicators and
// concatenated by descending score. Non-empty input never yields empty output:
// if not even one paragraph fits, the best one is truncated.
func Prepare(text string, keywords []string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}

	cleaned := RemoveNoise(text)
	if cleaned == "" {
		cleaned = text
	}
	if len(cleaned) <= maxChars {
		return cleaned
	}

	type scored struct {
		score float64
		order int
		text  string
	}

	paragraphs := strings.Split(cleaned, "\n\n")
	ranked := make([]scored, 0, len(paragraphs))
	for i, p := range paragraphs {
		if len(strings.TrimSpace(p)) < 20 {
			continue
		}
		lower := strings.ToLower(p)
		score := 0.0
		for _, kw := range keywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				score++
			}
		}
		for _, ind := range benefitIndicators {
			if strings.Contains(lower, ind) {
				score += 0.5
			}
		}
		ranked = append(ranked, scored{score: score, order: i, text: p})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].score == ranked[j].score {
			return ranked[i].order < ranked[j].order
		}
		return ranked[i].score > ranked[j].score
	})

	var parts []string
	length := 0
	for _, r := range ranked {
		if length+len(r.text)+2 <= maxChars {
			parts = append(parts, r.text)
			length += len(r.text) + 2
		} else if len(parts) == 0 {
			parts = append(parts, truncate(r.text, maxChars))
			break
		}
	}

	if len(parts) == 0 {
		return truncate(cleaned, maxChars)
	}
	return strings.TrimSpace(strings.Join(parts, "\n\n"))
}

// Relevance estimates how likely text contains content for a category.
// Any negative keyword vetoes the document outright. The score maps keyword
// counts through fixed thresholds; high-value URLs add a flat bonus that
// applies even with zero keyword hits.
func Relevance(text, url string, keywords, negativeKeywords []string) (float64, int) {
	lower := strings.ToLower(text)

	for _, neg := range negativeKeywords {
		if neg != "" && strings.Contains(lower, strings.ToLower(neg)) {
			return 0, 0
		}
	}

	bonus := 0.0
	urlLower := strings.ToLower(url)
	for _, p := range HighValueURLPatterns {
		if strings.Contains(urlLower, p) {
			bonus = 0.3
			break
		}
	}

	if len(keywords) == 0 {
		return capScore(0.5 + bonus), 0
	}

	matches := 0
	exact := 0
	for _, kw := range keywords {
		kwLower := strings.ToLower(kw)
		if !strings.Contains(lower, kwLower) {
			continue
		}
		matches++
		if wordBoundaryMatch(lower, kwLower) {
			exact++
		}
	}

	var score float64
	switch {
	case matches == 0:
		score = 0
	case matches == 1:
		score = 0.2
	case matches >= 5 || exact >= 3:
		score = 1.0
	case matches >= 3 || exact >= 2:
		score = 0.8
	default:
		score = 0.5
	}

	return capScore(score + bonus), matches
}

// truncate cuts text to at most maxChars bytes without splitting a rune.
func truncate(text string, maxChars int) string {
	if len(text) <= maxChars {
		return text
	}
	cut := maxChars
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func wordBoundaryMatch(text, word string) bool {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(word) + `\b`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

func capScore(s float64) float64 {
	if s > 1.0 {
		return 1.0
	}
	return s
}
