// Package classification implements the score-based intent classification pipeline.
//
// 3-Stage Pipeline (LLM only when the rules are not confident):
//
//	Stage 0: Subject   → offer/quotation request phrases
//	Stage 1: Body      → offer phrases in the message text
//	Stage 2: LLM       → extended flags as JSON, last resort
//
// Each stage returns a score (0.0-1.0), and the highest score wins.
package classification

import (
	"context"

	"mailparser_server/core/domain"
)

// =============================================================================
// Score Classifier Interface
// =============================================================================

// ScoreClassifierInput contains all inputs needed for intent classification
type ScoreClassifierInput struct {
	Subject string
	Body    string
}

// Empty reports whether there is nothing to classify.
func (in *ScoreClassifierInput) Empty() bool {
	return in == nil || (isBlank(in.Subject) && isBlank(in.Body))
}

// ScoreClassifierResult contains the result from a score classifier
type ScoreClassifierResult struct {
	Intent   domain.Intent
	Flags    *domain.IntentFlags // set only by stages that decide every flag
	Score    float64             // 0.0 - 1.0
	Source   string              // "stage:detail"
	Signals  []string            // detected signals (for debugging)
	Warnings []string
	LLMUsed  bool
}

// ScoreClassifier is the interface for all score-based classifiers
type ScoreClassifier interface {
	// Name returns the classifier name (for logging)
	Name() string

	// Stage returns the pipeline stage number (0-2)
	Stage() int

	// Classify performs classification and returns a scored result
	// Returns nil if the classifier cannot classify the input (skip to next stage)
	Classify(ctx context.Context, input *ScoreClassifierInput) (*ScoreClassifierResult, error)
}

// =============================================================================
// Score Pipeline Configuration
// =============================================================================

// ScorePipelineConfig holds configuration for the score pipeline
type ScorePipelineConfig struct {
	// EarlyExitThreshold: stop pipeline if score >= this value
	EarlyExitThreshold float64 // Default: 0.85

	// LLMFallbackThreshold: call LLM if best score < this value
	LLMFallbackThreshold float64 // Default: 0.85
}

// DefaultScorePipelineConfig returns the default configuration
func DefaultScorePipelineConfig() *ScorePipelineConfig {
	return &ScorePipelineConfig{
		EarlyExitThreshold:   0.85,
		LLMFallbackThreshold: 0.85,
	}
}

// =============================================================================
// Signal Constants
// =============================================================================

// Subject Signals
const (
	SignalSubjectOfferPhrase = "subject-offer-phrase"
	SignalSubjectOfferWord   = "subject-offer-word"
)

// Body Signals
const (
	SignalBodyOfferPhrase = "body-offer-phrase"
	SignalBodyQuote       = "body-quote"
	SignalUniversity      = "university"
	SignalPhaseCube       = "phasecube"
	SignalPhaseTube       = "phasetube"
	SignalPhaseDrum       = "phasedrum"
)

// LLM Signals
const (
	SignalLLMClassified = "llm-classified"
	SignalLLMError      = "llm-error"
)

// Source values not produced by a stage.
const (
	SourceDefault   = "default"
	SourceSkipEmpty = "skip:empty"
)
