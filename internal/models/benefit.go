package models

import (
	"crypto/sha1"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Document is one fetched page of content supplied by the caller.
// The engine never fetches; it only consumes text.
type Document struct {
	ID    string `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title"`
	Text  string `json:"text"`
}

// ExtractionMethod records which strategy produced a candidate.
type ExtractionMethod string

const (
	MethodRule   ExtractionMethod = "rule"
	MethodModel  ExtractionMethod = "model"
	MethodHybrid ExtractionMethod = "hybrid"
)

// ConfidenceTier is the coarse bucket derived from a numeric confidence.
type ConfidenceTier string

const (
	TierLow    ConfidenceTier = "low"
	TierMedium ConfidenceTier = "medium"
	TierHigh   ConfidenceTier = "high"
)

// Candidate is a single extracted benefit fact, possibly provisional.
// Merging never mutates a Candidate in place; it produces a new one.
type Candidate struct {
	ID          string `json:"id"`
	Category    string `json:"category"`
	Title       string `json:"title"`
	Description string `json:"description"`

	Value        string   `json:"value,omitempty"`
	NumericValue *float64 `json:"numeric_value,omitempty"`
	Unit         string   `json:"unit,omitempty"`

	Conditions         []string `json:"conditions,omitempty"`
	Merchants          []string `json:"merchants,omitempty"`
	Partners           []string `json:"partners,omitempty"`
	EligibleCategories []string `json:"eligible_categories,omitempty"`

	Frequency      string `json:"frequency,omitempty"`
	MinimumSpend   string `json:"minimum_spend,omitempty"`
	MaximumBenefit string `json:"maximum_benefit,omitempty"`

	SourceDocumentID string           `json:"source_document_id"`
	Method           ExtractionMethod `json:"extraction_method"`
	Confidence       float64          `json:"confidence"`
	Tier             ConfidenceTier   `json:"confidence_tier"`

	// Provenance lists the original candidate ids folded into this one.
	// Seeded with the candidate's own id at creation so it is never empty.
	Provenance []string `json:"provenance"`

	RunID       string    `json:"run_id,omitempty"`
	ExtractedAt time.Time `json:"extracted_at"`
}

// CategorySpec is static per-category strategy data. The engine only knows
// how to execute a pattern table and call a prompt builder/parser pair.
type CategorySpec struct {
	Name             string
	Keywords         []string
	NegativeKeywords []string
	MinRelevance     float64

	// URLPatterns route documents to this category by URL/title substring.
	// An empty list means the category is interested in every document.
	URLPatterns []string

	// RulePatterns are applied to the full document text, one candidate per match.
	RulePatterns map[string]*regexp.Regexp

	// MaxModelChars bounds the windowed content handed to the prompt builder.
	MaxModelChars int

	BuildPrompt   func(content, url, title string) string
	ParseResponse func(response string, doc Document) []Candidate
}

// MatchesSource reports whether this category is interested in a document
// based on its URL and title. Categories without URL patterns match everything.
func (s *CategorySpec) MatchesSource(url, title string) bool {
	if len(s.URLPatterns) == 0 {
		return true
	}
	combined := strings.ToLower(url + " " + title)
	for _, p := range s.URLPatterns {
		if strings.Contains(combined, strings.ToLower(p)) {
			return true
		}
	}
	return false
}

// DedupStats counts one deduplication pass.
type DedupStats struct {
	Input  int `json:"input"`
	Output int `json:"output"`
	Merged int `json:"merged"`
}

// Add accumulates another pass into this one.
func (s *DedupStats) Add(other DedupStats) {
	s.Input += other.Input
	s.Output += other.Output
	s.Merged += other.Merged
}

// DocumentResult is the bookkeeping from processing one document in one category.
type DocumentResult struct {
	DocumentID    string
	Relevant      bool
	Relevance     float64
	KeywordHits   int
	ContentLength int

	Candidates []Candidate

	RuleCount     int
	ModelCount    int
	RuleDuration  time.Duration
	ModelDuration time.Duration

	Level1Stats DedupStats

	LastError string
	Warnings  []string
}

// PipelineRunResult is everything one category pipeline produced in a run.
type PipelineRunResult struct {
	Category   string      `json:"category"`
	Candidates []Candidate `json:"candidates"`

	DocumentsSeen      int `json:"documents_seen"`
	DocumentsRelevant  int `json:"documents_relevant"`
	DocumentsProcessed int `json:"documents_processed"`
	RuleExtractions    int `json:"rule_extractions"`
	ModelExtractions   int `json:"model_extractions"`
	ContentChars       int `json:"content_chars"`

	HighConfidence   int `json:"high_confidence"`
	MediumConfidence int `json:"medium_confidence"`
	LowConfidence    int `json:"low_confidence"`

	Level1Stats DedupStats `json:"level1_stats"`
	Level2Stats DedupStats `json:"level2_stats"`

	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`

	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// AggregatedResult is the final, cross-category output of one run.
// A run always yields a result object, possibly with zero candidates
// and a populated error list.
type AggregatedResult struct {
	RunID      string      `json:"run_id"`
	Categories []string    `json:"categories"`
	Candidates []Candidate `json:"candidates"`

	TotalBeforeDedup int            `json:"total_before_dedup"`
	ByCategory       map[string]int `json:"by_category"`

	HighConfidence   int `json:"high_confidence"`
	MediumConfidence int `json:"medium_confidence"`
	LowConfidence    int `json:"low_confidence"`

	PipelineResults map[string]*PipelineRunResult `json:"pipeline_results"`
	DedupStats      map[string]DedupStats         `json:"deduplication_stats"`

	FailedPipelines []string `json:"failed_pipelines,omitempty"`
	Errors          []string `json:"errors,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`

	StartedAt   time.Time     `json:"started_at"`
	CompletedAt time.Time     `json:"completed_at"`
	Duration    time.Duration `json:"duration"`
}

// TierFor maps a confidence score to its tier.
func TierFor(confidence float64) ConfidenceTier {
	switch {
	case confidence >= 0.8:
		return TierHigh
	case confidence >= 0.5:
		return TierMedium
	default:
		return TierLow
	}
}

// RelevanceTier buckets a relevance score for callers that need a
// categorical signal; the engine itself compares against MinRelevance.
func RelevanceTier(score float64) ConfidenceTier {
	switch {
	case score >= 0.15:
		return TierHigh
	case score >= 0.05:
		return TierMedium
	default:
		return TierLow
	}
}

// CandidateID hashes the most stable fields to form deterministic ids.
func CandidateID(category, seed string) string {
	s := sha1.Sum([]byte(category + "|" + seed))
	return category + "_" + hex.EncodeToString(s[:])[:8]
}

var firstNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

// NumericValueOf extracts the leading number from a raw value string
// ("5% cashback" yields 5, "AED 1,500" yields 1500). Returns nil when the
// value holds no number.
func NumericValueOf(value string) *float64 {
	cleaned := strings.ReplaceAll(value, ",", "")
	match := firstNumber.FindString(cleaned)
	if match == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return nil
	}
	return &parsed
}
