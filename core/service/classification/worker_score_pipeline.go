package classification

import (
	"context"
	"time"

	"mailparser_server/core/domain"
	"mailparser_server/core/port/out"
)

// =============================================================================
// Score Pipeline (3-Stage Intent Classification)
// =============================================================================

// ScorePipeline orchestrates the staged intent classification.
//
// Stage 0: Subject   → offer request phrases (0.90)
// Stage 1: Body      → offer phrases (0.80), bare "quote" (0.70)
// Stage 2: LLM       → extended flags, only while best score < LLMFallbackThreshold
type ScorePipeline struct {
	config *ScorePipelineConfig

	// Classifiers, run in order
	stages        []ScoreClassifier
	llmClassifier *LLMScoreClassifier
}

// NewScorePipeline creates a new score-based intent pipeline.
// A nil llm disables the LLM stage.
func NewScorePipeline(llm out.IntentLLM, config *ScorePipelineConfig) *ScorePipeline {
	if config == nil {
		config = DefaultScorePipelineConfig()
	}

	p := &ScorePipeline{
		config: config,
		stages: []ScoreClassifier{
			NewSubjectScoreClassifier(),
			NewBodyScoreClassifier(),
		},
	}

	// LLM fallback
	if llm != nil {
		p.llmClassifier = NewLLMScoreClassifier(llm)
	}

	return p
}

// PipelineResult is the final result from the score pipeline.
type PipelineResult struct {
	domain.IntentResult

	Stage            string                   // Stage that produced the winning score
	AllResults       []*ScoreClassifierResult // Results from all stages
	Signals          []string                 // All detected signals
	LLMUsed          bool
	ProcessingTimeMs int64
}

// Classify runs subject and body through the pipeline.
func (p *ScorePipeline) Classify(ctx context.Context, input *ScoreClassifierInput) (*PipelineResult, error) {
	startTime := time.Now()

	if input.Empty() {
		return p.skipResult(startTime), nil
	}

	var allResults []*ScoreClassifierResult
	var bestResult *ScoreClassifierResult
	flags, allSignals := ScanCues(input)

	record := func(result *ScoreClassifierResult) {
		allResults = append(allResults, result)
		allSignals = append(allSignals, result.Signals...)
		if bestResult == nil || result.Score > bestResult.Score {
			bestResult = result
		}
	}

	// Stage 0-1: rules
	for _, stage := range p.stages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := stage.Classify(ctx, input)
		if err != nil || result == nil {
			continue
		}
		record(result)
		if result.Score >= p.config.EarlyExitThreshold {
			return p.buildResult(bestResult, flags, allResults, allSignals, startTime), nil
		}
	}

	// Stage 2: LLM Fallback (only if best score is below threshold)
	var llmResult *ScoreClassifierResult
	if p.llmClassifier != nil && (bestResult == nil || bestResult.Score < p.config.LLMFallbackThreshold) {
		if result, err := p.llmClassifier.Classify(ctx, input); err == nil && result != nil {
			record(result)
			llmResult = result
		}
	}
	if llmResult != nil && llmResult.Flags != nil {
		flags = *llmResult.Flags
	}

	// Default result if nothing matched
	if bestResult == nil {
		bestResult = &ScoreClassifierResult{
			Intent: domain.IntentRequest,
			Score:  0.50,
			Source: SourceDefault,
		}
	}

	result := p.buildResult(bestResult, flags, allResults, allSignals, startTime)
	if llmResult != nil {
		result.Warnings = llmResult.Warnings
	}
	return result, nil
}

// buildResult converts the best score result to the final pipeline result.
// Rule decisions settle StatusAngebot; an LLM answer of 1 always means offer.
func (p *ScorePipeline) buildResult(best *ScoreClassifierResult, flags domain.IntentFlags, all []*ScoreClassifierResult, signals []string, startTime time.Time) *PipelineResult {
	intent := best.Intent
	if best.Flags == nil && intent == domain.IntentOffer {
		flags.StatusAngebot = domain.FlagYes
	}
	if flags.StatusAngebot == domain.FlagYes {
		intent = domain.IntentOffer
	}

	llmUsed := false
	for _, r := range all {
		llmUsed = llmUsed || r.LLMUsed
	}

	return &PipelineResult{
		IntentResult: domain.IntentResult{
			Intent:         intent,
			Confidence:     best.Score,
			Source:         best.Source,
			Flags:          flags,
			ActiveCategory: flags.ActiveCategories(),
			UnsureFlags:    flags.UnsureFlags(),
		},
		Stage:            p.stageNameFromSource(best.Source),
		AllResults:       all,
		Signals:          signals,
		LLMUsed:          llmUsed,
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	}
}

func (p *ScorePipeline) skipResult(startTime time.Time) *PipelineResult {
	flags := domain.IntentFlags{StatusAngebot: domain.FlagUnsure, Universitaet: domain.FlagUnsure}
	return &PipelineResult{
		IntentResult: domain.IntentResult{
			Intent:      domain.IntentRequest,
			Source:      SourceSkipEmpty,
			Reason:      "no subject and no body",
			Flags:       flags,
			UnsureFlags: flags.UnsureFlags(),
			Skipped:     true,
		},
		Stage:            "skip",
		ProcessingTimeMs: time.Since(startTime).Milliseconds(),
	}
}

// stageNameFromSource extracts stage name from source string.
func (p *ScorePipeline) stageNameFromSource(source string) string {
	if len(source) == 0 {
		return "unknown"
	}

	// Source format: "stage:detail" (e.g., "subject:angebot", "llm:classified")
	for i, c := range source {
		if c == ':' {
			return source[:i]
		}
	}
	return source
}
