// Package extraction pulls contact data out of inbound email bodies.
//
// The customer block (from the last quoted sender header to the end) is
// routed to one of two strategies: a labelled web-form reader, or a
// free-form reader working on the sender header and signature block.
package extraction

import (
	"mailparser_server/core/domain"
	"mailparser_server/core/port/out"
)

// Extractor dispatches email bodies to the form or direct strategy.
type Extractor struct {
	rules *Rules
	ner   out.EntityRecognizer
}

// NewExtractor creates an extractor. ner may be nil, which disables the
// name and address fallbacks that need entity recognition.
func NewExtractor(rules *Rules, ner out.EntityRecognizer) *Extractor {
	if rules == nil {
		rules = DefaultRules()
	}
	return &Extractor{rules: rules, ner: ner}
}

// Rules returns the active rule set.
func (e *Extractor) Rules() *Rules {
	return e.rules
}

// Extract never fails: unmatched fields are left nil or empty.
func (e *Extractor) Extract(text string) *domain.ExtractionResult {
	block := CustomerBlock(normalizeSpaces(text))
	tags := e.rules.ExtractTags(block)

	var result *domain.ExtractionResult
	if isFormInquiry(block) {
		result = e.rules.extractForm(block)
	} else {
		result = e.rules.extractDirect(block, e.ner)
	}

	result.Data.Tags = nonNil(tags)
	return result
}
