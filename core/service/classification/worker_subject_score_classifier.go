package classification

import (
	"context"
	"regexp"
	"strings"

	"mailparser_server/core/domain"
)

// =============================================================================
// Subject Pattern Score Classifier (Stage 0)
// =============================================================================

// SubjectScoreClassifier recognizes offer and quotation requests by subject.
type SubjectScoreClassifier struct {
	patterns []subjectPattern
}

type subjectPattern struct {
	pattern  *regexp.Regexp
	keywords []string // Simple keyword matching (faster than regex)
	intent   domain.Intent
	score    float64
	source   string
	signal   string
}

// NewSubjectScoreClassifier creates a new subject pattern classifier.
func NewSubjectScoreClassifier() *SubjectScoreClassifier {
	c := &SubjectScoreClassifier{}
	c.initPatterns()
	return c
}

// Name returns the classifier name.
func (c *SubjectScoreClassifier) Name() string {
	return "subject"
}

// Stage returns the pipeline stage number.
func (c *SubjectScoreClassifier) Stage() int {
	return 0
}

// Classify matches the subject against the offer patterns in order.
func (c *SubjectScoreClassifier) Classify(ctx context.Context, input *ScoreClassifierInput) (*ScoreClassifierResult, error) {
	if input == nil || isBlank(input.Subject) {
		return nil, nil
	}

	subject := strings.ToLower(normalizeSpace(input.Subject))

	for _, p := range c.patterns {
		if len(p.keywords) > 0 && !containsAnyOf(subject, p.keywords) {
			continue
		}
		if p.pattern != nil && !p.pattern.MatchString(subject) {
			continue
		}

		return &ScoreClassifierResult{
			Intent:  p.intent,
			Score:   p.score,
			Source:  p.source,
			Signals: []string{p.signal},
		}, nil
	}

	return nil, nil
}

func (c *SubjectScoreClassifier) initPatterns() {
	c.patterns = []subjectPattern{
		{
			keywords: []string{
				"anfrage angebot",
				"anfrage für ein angebot",
				"anfrage fuer ein angebot",
				"angebotsanfrage",
				"bitte um angebot",
				"bitte um ein angebot",
				"angebotserstellung",
				"request for quotation",
				"request for quote",
				"request for pricing",
				"request for offer",
				"quotation request",
				"quote request",
				"rfq",
			},
			intent: domain.IntentOffer,
			score:  0.90,
			source: "subject:offer-request",
			signal: SignalSubjectOfferPhrase,
		},
		{
			pattern: regexp.MustCompile(`(?:^|[^\p{L}])angebot(?:$|[^\p{L}])`),
			intent:  domain.IntentOffer,
			score:   0.90,
			source:  "subject:angebot",
			signal:  SignalSubjectOfferWord,
		},
	}
}

// =============================================================================
// Helpers
// =============================================================================

func isBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func containsAnyOf(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
