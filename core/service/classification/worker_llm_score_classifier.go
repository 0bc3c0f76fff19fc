package classification

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"mailparser_server/core/domain"
	"mailparser_server/core/port/out"
)

// =============================================================================
// LLM Fallback Score Classifier (Stage 2)
// =============================================================================

// LLMScoreClassifier asks the LLM for the extended intent flags.
// This is the fallback when previous stages don't have high enough confidence.
type LLMScoreClassifier struct {
	llm out.IntentLLM
}

// NewLLMScoreClassifier creates a new LLM score classifier.
func NewLLMScoreClassifier(llm out.IntentLLM) *LLMScoreClassifier {
	return &LLMScoreClassifier{llm: llm}
}

// Name returns the classifier name.
func (c *LLMScoreClassifier) Name() string {
	return "llm"
}

// Stage returns the pipeline stage number.
func (c *LLMScoreClassifier) Stage() int {
	return 2
}

// Classify performs LLM-based classification.
func (c *LLMScoreClassifier) Classify(ctx context.Context, input *ScoreClassifierInput) (*ScoreClassifierResult, error) {
	if c.llm == nil || input.Empty() {
		return nil, nil
	}

	raw, err := c.llm.PredictIntentFlags(ctx, input.Subject, input.Body)
	if err != nil {
		// Return low-confidence default on error
		return &ScoreClassifierResult{
			Intent:   domain.IntentRequest,
			Score:    0.50,
			Source:   "llm:error",
			Signals:  []string{SignalLLMError},
			Warnings: []string{"llm: " + err.Error()},
			LLMUsed:  true,
		}, nil
	}

	flags, warnings := NormalizeFlags(raw)

	result := &ScoreClassifierResult{
		Intent:   domain.IntentRequest,
		Flags:    &flags,
		Score:    0.90,
		Source:   "llm:classified",
		Signals:  []string{SignalLLMClassified},
		Warnings: warnings,
		LLMUsed:  true,
	}
	switch flags.StatusAngebot {
	case domain.FlagYes:
		result.Intent = domain.IntentOffer
	case domain.FlagUnsure:
		result.Score = 0.60
		result.Source = "llm:unsure"
	}

	return result, nil
}

// =============================================================================
// Flag Normalization
// =============================================================================

type flagField struct {
	name   string
	keys   []string
	unsure bool // 2 allowed
	dst    func(*domain.IntentFlags) *int
}

var flagFields = []flagField{
	{
		name:   "status_angebot",
		keys:   []string{"StatusAngebot", "status_angebot", "statusangebot"},
		unsure: true,
		dst:    func(f *domain.IntentFlags) *int { return &f.StatusAngebot },
	},
	{
		name:   "universitaet",
		keys:   []string{"Universität", "Universitaet", "universitaet", "universität"},
		unsure: true,
		dst:    func(f *domain.IntentFlags) *int { return &f.Universitaet },
	},
	{
		name: "phasecube",
		keys: []string{"PhaseCube", "phasecube"},
		dst:  func(f *domain.IntentFlags) *int { return &f.PhaseCube },
	},
	{
		name: "phasetube",
		keys: []string{"PhaseTube", "phasetube"},
		dst:  func(f *domain.IntentFlags) *int { return &f.PhaseTube },
	},
	{
		name: "phasedrum",
		keys: []string{"PhaseDrum", "phasedrum"},
		dst:  func(f *domain.IntentFlags) *int { return &f.PhaseDrum },
	},
}

var (
	trueTokens  = map[string]bool{"1": true, "ja": true, "yes": true, "true": true, "y": true}
	falseTokens = map[string]bool{"0": true, "nein": true, "no": true, "false": true, "n": true}
)

// NormalizeFlags coerces loosely typed LLM values into the allowed flag sets.
// Every value that had to be fixed up produces a warning.
func NormalizeFlags(raw map[string]any) (domain.IntentFlags, []string) {
	var flags domain.IntentFlags
	var warnings []string

	for _, f := range flagFields {
		original, present := lookupFlag(raw, f.keys)
		value := f.coerce(original, present)
		*f.dst(&flags) = value

		if !present || original == nil {
			warnings = append(warnings, fmt.Sprintf("%s: missing -> %d", f.name, value))
			continue
		}
		if repr := tokenString(original); repr != strconv.Itoa(value) {
			warnings = append(warnings, fmt.Sprintf("%s: '%s' -> %d", f.name, displayString(original), value))
		}
	}

	return flags, warnings
}

func lookupFlag(raw map[string]any, keys []string) (any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok {
			return v, true
		}
	}
	return nil, false
}

func (f flagField) fallback() int {
	if f.unsure {
		return domain.FlagUnsure
	}
	return domain.FlagNo
}

func (f flagField) allowed(v int) bool {
	return v == domain.FlagNo || v == domain.FlagYes || (f.unsure && v == domain.FlagUnsure)
}

func (f flagField) coerce(raw any, present bool) int {
	if !present || raw == nil {
		return f.fallback()
	}
	switch v := raw.(type) {
	case int:
		return f.intOrFallback(v)
	case int64:
		return f.intOrFallback(int(v))
	case float64:
		if v != math.Trunc(v) {
			return f.fallback()
		}
		return f.intOrFallback(int(v))
	}

	s := tokenString(raw)
	if trueTokens[s] {
		return domain.FlagYes
	}
	if falseTokens[s] {
		return domain.FlagNo
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return f.fallback()
	}
	return f.intOrFallback(n)
}

func (f flagField) intOrFallback(v int) int {
	if f.allowed(v) {
		return v
	}
	return f.fallback()
}

// tokenString is the trimmed lower-case form used for token matching.
func tokenString(v any) string {
	return strings.ToLower(strings.TrimSpace(displayString(v)))
}

func displayString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
