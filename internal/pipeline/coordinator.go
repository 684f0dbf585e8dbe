// Package pipeline assigns documents to interested categories, runs
// per-category extraction pipelines, and aggregates their results into one
// deduplicated set. No failure propagates past the coordinator: a run always
// returns a result object, possibly with zero candidates and populated errors.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/perkscan/benefit-radar/internal/dedupe"
	"github.com/perkscan/benefit-radar/internal/extract"
	"github.com/perkscan/benefit-radar/internal/llm"
	"github.com/perkscan/benefit-radar/internal/models"
)

// Coordinator runs category pipelines over a document set. The generator is
// an explicit dependency carrying the shared model-call gate.
type Coordinator struct {
	Generator   extract.Generator
	ModelParams llm.GenerateParams
	Log         *slog.Logger
}

// Options select per-run behavior.
type Options struct {
	RunID string

	// Parallel runs category pipelines concurrently. Documents within one
	// pipeline are always processed sequentially, and all model calls funnel
	// through the shared gate regardless of mode.
	Parallel bool

	// CategoryPriority breaks level-3 ties; first-listed category wins.
	// Defaults to the spec order when empty.
	CategoryPriority []string

	// ForceDocumentIDs bypass the relevance threshold: explicitly selected
	// documents are processed no matter how they score.
	ForceDocumentIDs []string
}

// Assign routes each document to the specs whose URL/title interest patterns
// match it. A document matching no spec goes to all of them, so unclassified
// content is never silently dropped.
func Assign(documents []models.Document, specs []*models.CategorySpec) map[string][]models.Document {
	assigned := make(map[string][]models.Document, len(specs))
	for _, spec := range specs {
		assigned[spec.Name] = nil
	}

	for _, doc := range documents {
		var matched []string
		for _, spec := range specs {
			if spec.MatchesSource(doc.URL, doc.Title) {
				matched = append(matched, spec.Name)
			}
		}
		// A document no spec claims goes to every category so that
		// unclassified content is never silently dropped.
		if len(matched) == 0 {
			for _, spec := range specs {
				matched = append(matched, spec.Name)
			}
		}
		for _, name := range matched {
			assigned[name] = append(assigned[name], doc)
		}
	}

	return assigned
}

// Run executes every spec's pipeline over its assigned documents and applies
// the final cross-category dedup pass over the union.
func (c *Coordinator) Run(ctx context.Context, documents []models.Document, specs []*models.CategorySpec, opts Options) *models.AggregatedResult {
	result := &models.AggregatedResult{
		RunID:           opts.RunID,
		ByCategory:      make(map[string]int),
		PipelineResults: make(map[string]*models.PipelineRunResult),
		DedupStats:      make(map[string]models.DedupStats),
		StartedAt:       time.Now().UTC(),
	}

	assigned := Assign(documents, specs)
	forced := make(map[string]bool, len(opts.ForceDocumentIDs))
	for _, id := range opts.ForceDocumentIDs {
		forced[id] = true
	}

	type pipelineOutcome struct {
		spec *models.CategorySpec
		res  *models.PipelineRunResult
		err  error
	}
	outcomes := make([]pipelineOutcome, len(specs))

	runOne := func(i int, spec *models.CategorySpec) {
		defer func() {
			if r := recover(); r != nil {
				outcomes[i] = pipelineOutcome{spec: spec, err: fmt.Errorf("pipeline panic: %v", r)}
			}
		}()
		docs := assigned[spec.Name]
		if len(docs) == 0 {
			c.log().Info("skipping pipeline, no assigned documents", slog.String("category", spec.Name))
			outcomes[i] = pipelineOutcome{spec: spec}
			return
		}
		outcomes[i] = pipelineOutcome{spec: spec, res: c.runPipeline(ctx, spec, docs, forced)}
	}

	if opts.Parallel {
		var wg sync.WaitGroup
		for i, spec := range specs {
			wg.Add(1)
			go func(i int, spec *models.CategorySpec) {
				defer wg.Done()
				runOne(i, spec)
			}(i, spec)
		}
		wg.Wait()
	} else {
		for i, spec := range specs {
			runOne(i, spec)
		}
	}

	level1 := models.DedupStats{}
	level2 := models.DedupStats{}
	var union []models.Candidate

	for _, outcome := range outcomes {
		if outcome.spec == nil {
			continue
		}
		name := outcome.spec.Name
		if outcome.err != nil {
			result.FailedPipelines = append(result.FailedPipelines, name)
			result.Errors = append(result.Errors, name+": "+outcome.err.Error())
			c.log().Error("pipeline failed", slog.String("category", name), slog.Any("err", outcome.err))
			continue
		}
		if outcome.res == nil {
			continue
		}
		result.Categories = append(result.Categories, name)
		result.PipelineResults[name] = outcome.res
		union = append(union, outcome.res.Candidates...)
		level1.Add(outcome.res.Level1Stats)
		level2.Add(outcome.res.Level2Stats)
		for _, e := range outcome.res.Errors {
			result.Errors = append(result.Errors, name+": "+e)
		}
		for _, warning := range outcome.res.Warnings {
			result.Warnings = append(result.Warnings, name+": "+warning)
		}
	}

	result.TotalBeforeDedup = len(union)

	priority := opts.CategoryPriority
	if len(priority) == 0 {
		for _, spec := range specs {
			priority = append(priority, spec.Name)
		}
	}

	final, level3 := dedupe.AcrossCategories(union, priority)
	for i := range final {
		final[i].RunID = opts.RunID
	}
	result.Candidates = final
	result.DedupStats["level1"] = level1
	result.DedupStats["level2"] = level2
	result.DedupStats["level3"] = level3

	for _, cand := range final {
		result.ByCategory[cand.Category]++
		switch cand.Tier {
		case models.TierHigh:
			result.HighConfidence++
		case models.TierMedium:
			result.MediumConfidence++
		default:
			result.LowConfidence++
		}
	}

	result.CompletedAt = time.Now().UTC()
	result.Duration = result.CompletedAt.Sub(result.StartedAt)

	c.log().Info("run complete",
		slog.String("run", opts.RunID),
		slog.Int("candidates", len(final)),
		slog.Int("before_dedup", result.TotalBeforeDedup),
		slog.Int("failed_pipelines", len(result.FailedPipelines)),
	)

	return result
}

// runPipeline processes one category's documents sequentially, then applies
// level-2 dedup and evidence-based scoring.
func (c *Coordinator) runPipeline(ctx context.Context, spec *models.CategorySpec, docs []models.Document, forced map[string]bool) *models.PipelineRunResult {
	res := &models.PipelineRunResult{
		Category:  spec.Name,
		StartedAt: time.Now().UTC(),
	}

	worker := &extract.Worker{
		Spec:        spec,
		Generator:   c.Generator,
		ModelParams: c.ModelParams,
		Log:         c.Log,
	}

	var all []models.Candidate
	for _, doc := range docs {
		res.DocumentsSeen++
		docResult := worker.Run(ctx, doc, forced[doc.ID])

		res.ContentChars += docResult.ContentLength
		if !docResult.Relevant {
			continue
		}
		res.DocumentsRelevant++
		if len(docResult.Candidates) > 0 {
			res.DocumentsProcessed++
		}
		res.RuleExtractions += docResult.RuleCount
		res.ModelExtractions += docResult.ModelCount
		res.Level1Stats.Add(docResult.Level1Stats)
		res.Warnings = append(res.Warnings, docResult.Warnings...)
		if docResult.LastError != "" {
			res.Errors = append(res.Errors, "document "+doc.ID+": "+docResult.LastError)
		}
		all = append(all, docResult.Candidates...)
	}

	deduped, stats := dedupe.AcrossDocuments(all)
	res.Level2Stats = stats

	res.Candidates = scoreCandidates(deduped)
	for _, cand := range res.Candidates {
		switch cand.Tier {
		case models.TierHigh:
			res.HighConfidence++
		case models.TierMedium:
			res.MediumConfidence++
		default:
			res.LowConfidence++
		}
	}

	res.CompletedAt = time.Now().UTC()
	res.Duration = res.CompletedAt.Sub(res.StartedAt)

	c.log().Info("pipeline complete",
		slog.String("category", spec.Name),
		slog.Int("documents", res.DocumentsSeen),
		slog.Int("relevant", res.DocumentsRelevant),
		slog.Int("candidates", len(res.Candidates)),
	)

	return res
}

// scoreCandidates re-scores confidence from extraction evidence: richer
// candidates (values, conditions, merchants, substantial descriptions) score
// higher. Returns the list sorted by descending confidence.
func scoreCandidates(candidates []models.Candidate) []models.Candidate {
	out := append([]models.Candidate{}, candidates...)
	for i := range out {
		c := &out[i]
		score := c.Confidence
		switch c.Method {
		case models.MethodHybrid:
			score = max(score, 0.75)
		case models.MethodModel:
			score = max(score, 0.7)
		}
		if c.Value != "" {
			score += 0.05
			if c.NumericValue != nil {
				score += 0.05
			}
		}
		if len(c.Conditions) > 0 {
			score += 0.05
		}
		if len(c.Merchants) > 0 || len(c.Partners) > 0 {
			score += 0.05
		}
		if len(c.Description) > 50 {
			score += 0.05
		}
		c.Confidence = min(score, 1.0)
		c.Tier = models.TierFor(c.Confidence)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Confidence > out[j].Confidence
	})
	return out
}

func (c *Coordinator) log() *slog.Logger {
	if c.Log != nil {
		return c.Log
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
