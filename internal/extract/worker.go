// Package extract runs rule-based and model-based extraction for a single
// document and applies the first, narrow deduplication pass over its results.
package extract

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/perkscan/benefit-radar/internal/content"
	"github.com/perkscan/benefit-radar/internal/dedupe"
	"github.com/perkscan/benefit-radar/internal/llm"
	"github.com/perkscan/benefit-radar/internal/models"
)

// minContentLength is the shortest document worth extracting from.
const minContentLength = 50

const (
	ruleConfidence  = 0.6
	modelConfidence = 0.75
)

// Generator issues a model-inference call. Satisfied by *llm.Client.
type Generator interface {
	Generate(ctx context.Context, prompt string, params llm.GenerateParams) (string, error)
}

// Worker extracts candidates from documents for one category.
type Worker struct {
	Spec        *models.CategorySpec
	Generator   Generator
	ModelParams llm.GenerateParams
	Log         *slog.Logger
}

// Run processes one document: relevance gating, rule extraction over the full
// text, model extraction over the windowed excerpt, then level-1 dedup.
// force bypasses the relevance threshold for explicitly selected documents.
// Model failures degrade to rule-only results; they never abort the document.
func (w *Worker) Run(ctx context.Context, doc models.Document, force bool) models.DocumentResult {
	result := models.DocumentResult{
		DocumentID:    doc.ID,
		ContentLength: len(doc.Text),
	}

	if len(doc.Text) < minContentLength {
		return result
	}

	score, hits := content.Relevance(doc.Text, doc.URL, w.Spec.Keywords, w.Spec.NegativeKeywords)
	result.Relevance = score
	result.KeywordHits = hits

	if !force && score < w.Spec.MinRelevance {
		return result
	}
	result.Relevant = true

	ruleStart := time.Now()
	ruleCandidates := w.extractWithRules(doc)
	result.RuleDuration = time.Since(ruleStart)
	result.RuleCount = len(ruleCandidates)

	modelStart := time.Now()
	modelCandidates, err := w.extractWithModel(ctx, doc)
	result.ModelDuration = time.Since(modelStart)
	result.ModelCount = len(modelCandidates)
	if err != nil {
		result.LastError = err.Error()
		switch {
		case errors.Is(err, llm.ErrModelUnavailable):
			result.Warnings = append(result.Warnings, "model backend unreachable, rule-only results for "+doc.ID)
		case errors.Is(err, llm.ErrModelTimeout):
			result.Warnings = append(result.Warnings, "model call timed out, rule-only results for "+doc.ID)
		default:
			result.Warnings = append(result.Warnings, "model extraction failed for "+doc.ID+": "+err.Error())
		}
	}

	combined := append(ruleCandidates, modelCandidates...)
	if len(combined) == 0 {
		return result
	}

	result.Candidates, result.Level1Stats = dedupe.WithinDocument(combined)

	w.log().Debug("document processed",
		slog.String("category", w.Spec.Name),
		slog.String("doc", doc.ID),
		slog.Int("rule", result.RuleCount),
		slog.Int("model", result.ModelCount),
		slog.Int("merged", len(result.Candidates)),
	)

	return result
}

// extractWithRules applies every named pattern to the full document text,
// one candidate per match. Rule extraction never suspends.
func (w *Worker) extractWithRules(doc models.Document) []models.Candidate {
	names := make([]string, 0, len(w.Spec.RulePatterns))
	for name := range w.Spec.RulePatterns {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []models.Candidate
	for _, name := range names {
		pattern := w.Spec.RulePatterns[name]
		if pattern == nil {
			continue
		}
		for _, match := range pattern.FindAllStringSubmatchIndex(doc.Text, -1) {
			if c := w.candidateFromMatch(doc, name, pattern, match); c != nil {
				out = append(out, *c)
			}
		}
	}
	return out
}

func (w *Worker) candidateFromMatch(doc models.Document, patternName string, pattern *regexp.Regexp, match []int) *models.Candidate {
	matched := doc.Text[match[0]:match[1]]
	groups := namedGroups(pattern, doc.Text, match)

	title := groups["title"]
	if title == "" {
		title = defaultTitle(w.Spec.Name)
	}

	id := models.CandidateID(w.Spec.Name, patternName+"|"+matched)
	c := models.Candidate{
		ID:               id,
		Category:         w.Spec.Name,
		Title:            title,
		Description:      strings.TrimSpace(matched),
		Value:            groups["value"],
		NumericValue:     models.NumericValueOf(groups["value"]),
		SourceDocumentID: doc.ID,
		Method:           models.MethodRule,
		Confidence:       ruleConfidence,
		Tier:             models.TierFor(ruleConfidence),
		Provenance:       []string{id},
		ExtractedAt:      time.Now().UTC(),
	}
	return &c
}

// extractWithModel windows the content, builds the category prompt, issues it
// through the shared gate, and parses the response. Runs unconditionally, not
// as a fallback. A parse failure yields zero candidates, not an error.
func (w *Worker) extractWithModel(ctx context.Context, doc models.Document) ([]models.Candidate, error) {
	if w.Generator == nil || w.Spec.BuildPrompt == nil || w.Spec.ParseResponse == nil {
		return nil, nil
	}

	windowed := content.Prepare(doc.Text, w.Spec.Keywords, w.Spec.MaxModelChars)
	prompt := w.Spec.BuildPrompt(windowed, doc.URL, doc.Title)

	response, err := w.Generator.Generate(ctx, prompt, w.ModelParams)
	if err != nil {
		return nil, err
	}

	candidates := w.Spec.ParseResponse(response, doc)
	for i := range candidates {
		c := &candidates[i]
		if c.ID == "" {
			c.ID = models.CandidateID(w.Spec.Name, c.Title+"|"+c.Value+"|"+doc.ID)
		}
		c.Category = w.Spec.Name
		c.SourceDocumentID = doc.ID
		if c.NumericValue == nil {
			c.NumericValue = models.NumericValueOf(c.Value)
		}
		c.Method = models.MethodModel
		c.Confidence = modelConfidence
		c.Tier = models.TierFor(modelConfidence)
		if len(c.Provenance) == 0 {
			c.Provenance = []string{c.ID}
		}
		if c.ExtractedAt.IsZero() {
			c.ExtractedAt = time.Now().UTC()
		}
	}
	return candidates, nil
}

func namedGroups(pattern *regexp.Regexp, text string, match []int) map[string]string {
	groups := make(map[string]string)
	for i, name := range pattern.SubexpNames() {
		if name == "" || 2*i+1 >= len(match) {
			continue
		}
		start, end := match[2*i], match[2*i+1]
		if start >= 0 && end >= start {
			groups[name] = strings.TrimSpace(text[start:end])
		}
	}
	return groups
}

func defaultTitle(category string) string {
	words := strings.Split(strings.ReplaceAll(category, "_", " "), " ")
	for i, word := range words {
		if word != "" {
			words[i] = strings.ToUpper(word[:1]) + word[1:]
		}
	}
	return strings.Join(words, " ") + " Benefit"
}

func (w *Worker) log() *slog.Logger {
	if w.Log != nil {
		return w.Log
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
