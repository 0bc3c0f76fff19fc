// Package nlp provides the named-entity recognizer used by contact extraction.
package nlp

import (
	"strings"
	"sync"

	"mailparser_server/core/port/out"

	"github.com/jdkato/prose/v2"
	"github.com/rs/zerolog"
)

// ProseRecognizer implements out.EntityRecognizer with prose's averaged
// perceptron NER. It labels PERSON and GPE.
//
// Signature text is one short fragment per line ("John Miller", "Sales
// Director", "London"). Each line is closed as its own sentence before
// tagging, otherwise the tagger merges neighbouring lines into one entity
// or finds nothing on a bare name.
type ProseRecognizer struct {
	log zerolog.Logger

	once  sync.Once
	model *prose.Model
}

func NewProseRecognizer(log zerolog.Logger) *ProseRecognizer {
	return &ProseRecognizer{log: log}
}

// Warmup loads the tagging model so the first email does not pay for it.
func (r *ProseRecognizer) Warmup() {
	r.loadModel()
}

// loadModel builds prose's default model once; every document after
// that reuses it.
func (r *ProseRecognizer) loadModel() *prose.Model {
	r.once.Do(func() {
		doc, err := prose.NewDocument("", prose.WithSegmentation(false))
		if err != nil {
			r.log.Warn().Err(err).Msg("ner model load failed")
			return
		}
		r.model = doc.Model
	})
	return r.model
}

// Entities returns PERSON and GPE entities in text order, each tied to
// the line it was found on. Tagging errors yield no entities.
func (r *ProseRecognizer) Entities(text string) []out.Entity {
	lines, prepared := sentenceLines(text)
	if len(lines) == 0 {
		return nil
	}

	opts := []prose.DocOpt{prose.WithSegmentation(false)}
	if model := r.loadModel(); model != nil {
		opts = append(opts, prose.UsingModel(model))
	}
	doc, err := prose.NewDocument(prepared, opts...)
	if err != nil {
		r.log.Debug().Err(err).Msg("ner failed")
		return nil
	}

	var ents []out.Entity
	cursor := 0
	for _, e := range doc.Entities() {
		if e.Label != out.EntityPerson && e.Label != out.EntityLocation {
			continue
		}
		entText := strings.TrimSpace(strings.TrimRight(e.Text, ".!? "))
		if entText == "" {
			continue
		}
		line := -1
		if idx := lineOf(lines, cursor, entText); idx >= 0 {
			line, cursor = idx, idx
		}
		ents = append(ents, out.Entity{Text: entText, Label: e.Label, Line: line})
	}
	return ents
}

// sentenceLines trims the non-empty lines of text and joins them with each
// line closed by a full stop.
func sentenceLines(text string) ([]string, string) {
	var lines []string
	var b strings.Builder
	for _, l := range strings.Split(text, "\n") {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		lines = append(lines, l)
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l)
		if !strings.ContainsAny(l[len(l)-1:], ".!?") {
			b.WriteByte('.')
		}
	}
	return lines, b.String()
}

// lineOf finds the first line at or after from that contains s. prose
// joins tokens with spaces, so "Berlin , Germany" also matches "Berlin,
// Germany".
func lineOf(lines []string, from int, s string) int {
	alt := strings.ReplaceAll(s, " ,", ",")
	for i := from; i < len(lines); i++ {
		if strings.Contains(lines[i], s) || strings.Contains(lines[i], alt) {
			return i
		}
	}
	return -1
}

var _ out.EntityRecognizer = (*ProseRecognizer)(nil)
