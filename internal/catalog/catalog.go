// Package catalog ships the built-in category specs. Each spec bundles the
// relevance keywords, source interest patterns, rule-based extraction
// patterns, and the model prompt/parser pair for one benefit category.
package catalog

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/perkscan/benefit-radar/internal/llm"
	"github.com/perkscan/benefit-radar/internal/models"
)

const defaultMaxModelChars = 6000

// Specs returns fresh copies of all built-in category specs.
func Specs() []*models.CategorySpec {
	return []*models.CategorySpec{
		cashbackSpec(),
		loungeSpec(),
		diningSpec(),
	}
}

// SpecsByName resolves requested category names against the built-in set,
// preserving the built-in order. Unknown names are reported, not ignored.
func SpecsByName(names []string) ([]*models.CategorySpec, []string) {
	if len(names) == 0 {
		return Specs(), nil
	}
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[strings.ToLower(strings.TrimSpace(n))] = true
	}

	var specs []*models.CategorySpec
	for _, spec := range Specs() {
		if wanted[spec.Name] {
			specs = append(specs, spec)
			delete(wanted, spec.Name)
		}
	}
	var unknown []string
	for n := range wanted {
		unknown = append(unknown, n)
	}
	return specs, unknown
}

func cashbackSpec() *models.CategorySpec {
	return &models.CategorySpec{
		Name: "cashback",
		Keywords: []string{
			"cashback", "cash back", "rebate", "money back",
			"rewards", "earn back", "statement credit",
		},
		NegativeKeywords: []string{
			"cashback fraud", "cashback scam",
		},
		MinRelevance:  0.1,
		URLPatterns:   []string{"cashback", "cash-back", "rewards"},
		MaxModelChars: defaultMaxModelChars,
		RulePatterns: map[string]*regexp.Regexp{
			"percent_on_category": regexp.MustCompile(
				`(?i)(?P<value>\d+(?:\.\d+)?)\s*%\s*(?:cash\s*back|cashback|rebate)\s+on\s+(?P<title>[a-z][a-z &]+)`),
			"flat_cashback": regexp.MustCompile(
				`(?i)(?:up to\s+)?(?P<value>(?:aed|usd|eur|gbp|\$)\s*\d+(?:,\d{3})*)\s+(?:cash\s*back|cashback)`),
			"percent_cashback": regexp.MustCompile(
				`(?i)(?P<value>\d+(?:\.\d+)?)\s*%\s*(?:cash\s*back|cashback)`),
		},
		BuildPrompt:   cashbackPrompt,
		ParseResponse: parseBenefitList("cashback"),
	}
}

func loungeSpec() *models.CategorySpec {
	return &models.CategorySpec{
		Name: "lounge_access",
		Keywords: []string{
			"lounge", "airport lounge", "priority pass", "lounge access",
			"complimentary access", "lounge key", "airport",
		},
		NegativeKeywords: []string{
			"lounge closed", "lounge unavailable",
		},
		MinRelevance:  0.1,
		URLPatterns:   []string{"lounge", "travel", "airport"},
		MaxModelChars: defaultMaxModelChars,
		RulePatterns: map[string]*regexp.Regexp{
			"visits_per_year": regexp.MustCompile(
				`(?i)(?P<value>\d+|unlimited)\s+(?:complimentary\s+)?(?:lounge\s+)?visits?\s+(?:per|a)\s+year`),
			"lounge_access": regexp.MustCompile(
				`(?i)(?:complimentary|free|unlimited)\s+(?:airport\s+)?lounge\s+access`),
		},
		BuildPrompt:   loungePrompt,
		ParseResponse: parseBenefitList("lounge_access"),
	}
}

func diningSpec() *models.CategorySpec {
	return &models.CategorySpec{
		Name: "dining",
		Keywords: []string{
			"dining", "restaurant", "restaurants", "food", "buy one get one",
			"discount", "offer", "meal",
		},
		NegativeKeywords: []string{
			"dining suspended",
		},
		MinRelevance:  0.1,
		URLPatterns:   []string{"dining", "restaurant", "food"},
		MaxModelChars: defaultMaxModelChars,
		RulePatterns: map[string]*regexp.Regexp{
			"percent_off_dining": regexp.MustCompile(
				`(?i)(?P<value>\d+(?:\.\d+)?)\s*%\s*(?:off|discount)\s+(?:at|on)\s+(?P<title>[a-z][a-z &']+)`),
			"bogo": regexp.MustCompile(
				`(?i)buy\s+one\s+get\s+one(?:\s+free)?`),
		},
		BuildPrompt:   diningPrompt,
		ParseResponse: parseBenefitList("dining"),
	}
}

func cashbackPrompt(content, url, title string) string {
	return benefitPrompt("cashback", "cashback rates, earn categories, caps, and minimum spend requirements", content, url, title)
}

func loungePrompt(content, url, title string) string {
	return benefitPrompt("airport lounge access", "number of visits, guest policy, eligible lounges or networks, and conditions", content, url, title)
}

func diningPrompt(content, url, title string) string {
	return benefitPrompt("dining offers", "discount percentages, participating restaurants, validity, and conditions", content, url, title)
}

func benefitPrompt(category, focus, content, url, title string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Extract %s benefits from the page below. Focus on %s.\n\n", category, focus)
	b.WriteString("Respond with ONLY a JSON array. Each element:\n")
	b.WriteString(`{"title": "...", "value": "...", "description": "...", "conditions": [], "merchants": [], "frequency": "", "minimum_spend": ""}`)
	b.WriteString("\n\nReturn [] if the page describes no such benefit.\n\n")
	if title != "" {
		fmt.Fprintf(&b, "Page title: %s\n", title)
	}
	if url != "" {
		fmt.Fprintf(&b, "Page URL: %s\n", url)
	}
	fmt.Fprintf(&b, "\nPage content:\n%s\n", content)
	return b.String()
}

// parseBenefitList builds a parser for the shared response shape: a JSON
// array of benefit objects, possibly wrapped in markdown fences or an
// {"benefits": [...]} envelope.
func parseBenefitList(category string) func(response string, doc models.Document) []models.Candidate {
	return func(response string, doc models.Document) []models.Candidate {
		parsed, err := llm.ExtractJSON(response)
		if err != nil {
			return nil
		}

		var out []models.Candidate
		for _, item := range llm.ItemList(parsed, "benefits", "offers", "items") {
			title := strings.TrimSpace(llm.ToString(item["title"]))
			if title == "" {
				title = strings.TrimSpace(llm.ToString(item["name"]))
			}
			if title == "" {
				continue
			}
			value := strings.TrimSpace(llm.ToString(item["value"]))
			if value == "" {
				value = strings.TrimSpace(llm.ToString(item["amount"]))
			}

			cand := models.Candidate{
				ID:                 models.CandidateID(category, title+"|"+value+"|"+doc.ID),
				Category:           category,
				Title:              title,
				Value:              value,
				Description:        strings.TrimSpace(llm.ToString(item["description"])),
				Unit:               strings.TrimSpace(llm.ToString(item["unit"])),
				Frequency:          strings.TrimSpace(llm.ToString(item["frequency"])),
				MinimumSpend:       strings.TrimSpace(llm.ToString(item["minimum_spend"])),
				MaximumBenefit:     strings.TrimSpace(llm.ToString(item["maximum_benefit"])),
				Conditions:         llm.ToStringList(item["conditions"]),
				Merchants:          llm.ToStringList(item["merchants"]),
				Partners:           llm.ToStringList(item["partners"]),
				EligibleCategories: llm.ToStringList(item["eligible_categories"]),
				SourceDocumentID:   doc.ID,
				ExtractedAt:        time.Now().UTC(),
			}
			out = append(out, cand)
		}
		return out
	}
}
