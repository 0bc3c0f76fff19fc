package classification

import (
	"context"
	"regexp"
	"strings"

	"mailparser_server/core/domain"
)

// =============================================================================
// Body Phrase Score Classifier (Stage 1)
// =============================================================================

// BodyScoreClassifier looks for offer requests in the message text.
type BodyScoreClassifier struct {
	offerPhrases []*regexp.Regexp
	quoteWord    *regexp.Regexp
}

// NewBodyScoreClassifier creates a new body phrase classifier.
func NewBodyScoreClassifier() *BodyScoreClassifier {
	return &BodyScoreClassifier{
		offerPhrases: []*regexp.Regexp{
			regexp.MustCompile(`(?i)ein\s+angebot\s+(?:\S+\s+){0,3}zukommen\s+lassen`),
			regexp.MustCompile(`(?is)angebot\b.{0,80}?\berstellen`),
			regexp.MustCompile(`(?i)entsprechendes\s+angebot`),
			regexp.MustCompile(`(?i)um\s+ein\s+angebot`),
			regexp.MustCompile(`(?is)preise\b.{0,120}?\bmitzuteilen`),
			regexp.MustCompile(`(?i)provide\s+(?:\w+\s+){0,2}(?:offer|quotation|quote)`),
			regexp.MustCompile(`(?i)send\s+(?:me|us)\s+(?:\w+\s+){0,2}(?:quotation|quote|offer)`),
			regexp.MustCompile(`(?i)request\s+for\s+(?:quotation|quote|pricing)`),
		},
		quoteWord: regexp.MustCompile(`(?i)\b(?:quote|quotation)\b`),
	}
}

// Name returns the classifier name.
func (c *BodyScoreClassifier) Name() string {
	return "body"
}

// Stage returns the pipeline stage number.
func (c *BodyScoreClassifier) Stage() int {
	return 1
}

// Classify reports an offer when the body asks for one.
// A bare "quote" is a weaker signal that leaves room for the LLM stage.
func (c *BodyScoreClassifier) Classify(ctx context.Context, input *ScoreClassifierInput) (*ScoreClassifierResult, error) {
	if input == nil || isBlank(input.Body) {
		return nil, nil
	}

	for _, re := range c.offerPhrases {
		if re.MatchString(input.Body) {
			return &ScoreClassifierResult{
				Intent:  domain.IntentOffer,
				Score:   0.80,
				Source:  "body:offer-phrase",
				Signals: []string{SignalBodyOfferPhrase},
			}, nil
		}
	}

	if c.quoteWord.MatchString(input.Body) {
		return &ScoreClassifierResult{
			Intent:  domain.IntentOffer,
			Score:   0.70,
			Source:  "body:quote",
			Signals: []string{SignalBodyQuote},
		}, nil
	}

	return nil, nil
}

// =============================================================================
// Cue Scanner
// =============================================================================

var (
	universityRe = wordRe(
		"student", "studentin", "studenten", "studierende", "studierender",
		"universität", "universitaet", "hochschule", "masterarbeit", "bachelorarbeit",
		"doktorand", "doktorandin", "forschungsgruppe", "lehrstuhl",
		"university", "phd", "graduate student", "research team", "research group",
		"lab", "laboratory", "thesis",
	)
	phaseCubeRe = regexp.MustCompile(`(?i)(?:phase|pcm)[\s-]*cubes?\b`)
	phaseTubeRe = regexp.MustCompile(`(?i)(?:phase|pcm)[\s-]*tubes?\b`)
	phaseDrumRe = regexp.MustCompile(`(?i)(?:phase|pcm)[\s-]*drums?\b`)
)

// wordRe matches any of words as a whole word. Go's \b is ASCII-only,
// so boundaries are spelled out for umlauts.
func wordRe(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(?:` + strings.Join(quoted, "|") + `)(?:$|[^\p{L}\p{N}])`)
}

// ScanCues derives the university and product flags from subject and body.
// StatusAngebot is left unsure; the pipeline settles it.
func ScanCues(input *ScoreClassifierInput) (domain.IntentFlags, []string) {
	flags := domain.IntentFlags{StatusAngebot: domain.FlagUnsure}
	if input == nil {
		return flags, nil
	}
	text := input.Subject + "\n" + input.Body

	var signals []string
	mark := func(re *regexp.Regexp, dst *int, signal string) {
		if re.MatchString(text) {
			*dst = domain.FlagYes
			signals = append(signals, signal)
		}
	}
	mark(universityRe, &flags.Universitaet, SignalUniversity)
	mark(phaseCubeRe, &flags.PhaseCube, SignalPhaseCube)
	mark(phaseTubeRe, &flags.PhaseTube, SignalPhaseTube)
	mark(phaseDrumRe, &flags.PhaseDrum, SignalPhaseDrum)

	return flags, signals
}
